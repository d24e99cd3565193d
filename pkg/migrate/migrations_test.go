package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one %s migration, got %d", suffix, len(matches))
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsCarryLifecycleConstraints(t *testing.T) {
	cases := map[string][]string{
		"create_users_and_roles": {
			"CREATE UNIQUE INDEX IF NOT EXISTS user_roles_user_id_key ON user_roles (user_id)",
			"FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE",
		},
		"create_emails_and_messages": {
			"CONSTRAINT emails_address_key UNIQUE (address)",
			"FOREIGN KEY (email_id) REFERENCES emails(id) ON DELETE CASCADE",
		},
		"create_card_keys": {
			"CONSTRAINT card_keys_code_key UNIQUE (code)",
			"CONSTRAINT card_keys_email_address_key UNIQUE (email_address)",
			"CHECK (is_used OR (used_by IS NULL AND used_at IS NULL))",
			"FOREIGN KEY (used_by) REFERENCES users(id) ON DELETE SET NULL",
		},
		"create_temp_accounts": {
			"FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE SET NULL",
			"FOREIGN KEY (card_key_id) REFERENCES card_keys(id) ON DELETE SET NULL",
		},
	}

	for suffix, checks := range cases {
		content := readMigration(t, suffix)
		for _, sub := range checks {
			if !strings.Contains(content, sub) {
				t.Errorf("%s: missing expected statement %q", suffix, sub)
			}
		}
	}
}

func TestValidateDirAcceptsRepoMigrations(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

	path, err := CreateSQLMigration(dir, "Add Inbound Index!", now)
	if err != nil {
		t.Fatalf("CreateSQLMigration: %v", err)
	}
	if filepath.Base(path) != "20261019093000_add_inbound_index.sql" {
		t.Fatalf("unexpected filename %s", filepath.Base(path))
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
	if _, err := CreateSQLMigration(dir, "Add Inbound Index!", now); err == nil {
		t.Fatal("expected duplicate create to fail")
	}
}
