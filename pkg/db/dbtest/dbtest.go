// Package dbtest opens migrated in-memory SQLite databases for package tests.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/xymail/xymail-backend/pkg/db"
	"github.com/xymail/xymail-backend/pkg/migrate"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var seq atomic.Int64

// Open returns a client backed by a fresh schema built from the embedded
// goose migrations. The database lives until the test finishes.
func Open(t *testing.T) *db.Client {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=on", name, seq.Add(1))

	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		NowFunc:                db.NowUTC,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrate.UpEmbedded(context.Background(), sqlDB, db.DriverSQLite); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db.NewFromConn(conn)
}
