package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForUpdate adds a row lock when the dialect supports it. SQLite serializes
// writers on its own and rejects the clause.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == DriverPostgres {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
