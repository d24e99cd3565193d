package models

import "github.com/google/uuid"

// assignID fills a zero primary key; the schema carries no UUID default so
// the same models work on Postgres and SQLite.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
