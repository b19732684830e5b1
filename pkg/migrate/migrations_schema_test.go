package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/safetrackhq/safetrack-backend/pkg/migrate"
)

func TestInitSchemaMigrationContainsCoreTables(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_init_schema.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no init schema migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TYPE finding_status AS ENUM ('open', 'in_progress', 'resolved', 'closed')",
		"CREATE TABLE findings",
		"CREATE UNIQUE INDEX ux_findings_report_id ON findings (report_id)",
		"CREATE TABLE status_history",
		"CREATE TABLE notification_settings",
		"CREATE TABLE outbox_events",
		"DROP TABLE outbox_events",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}
