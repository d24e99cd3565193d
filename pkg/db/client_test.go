package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/xymail/xymail-backend/pkg/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	conn := newTestDB(t)
	client := NewFromConn(conn)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := conn.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := conn.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestIsUniqueViolationSQLite(t *testing.T) {
	conn := newTestDB(t)
	if err := conn.Create(&testModel{Name: "dup"}).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	err := conn.Create(&testModel{Name: "dup"}).Error
	if err == nil {
		t.Fatal("expected duplicate insert to fail")
	}
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if !IsUniqueViolation(err, "test_models.name") {
		t.Fatalf("expected column match, got %v", err)
	}
	if IsUniqueViolation(errors.New("other failure"), "") {
		t.Fatal("plain error should not match")
	}
}

func TestForUpdateSkipsSQLite(t *testing.T) {
	conn := newTestDB(t)
	var rows []testModel
	if err := ForUpdate(conn).Find(&rows).Error; err != nil {
		t.Fatalf("find with lock helper: %v", err)
	}
}

func TestDialectorForRejectsUnknownDriver(t *testing.T) {
	if _, err := dialectorFor(config.DBConfig{Driver: "mysql"}); err == nil {
		t.Fatal("expected unsupported driver error")
	}
	if _, err := dialectorFor(config.DBConfig{Driver: DriverPostgres}); err == nil {
		t.Fatal("expected missing dsn error")
	}
}

func TestPing(t *testing.T) {
	client := NewFromConn(newTestDB(t))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
	if client.Dialect() != DriverSQLite {
		t.Fatalf("unexpected dialect %q", client.Dialect())
	}
}
