package postgres

import (
	"strings"
	"testing"
)

func TestMigrations_Order(t *testing.T) {
	up, err := Migrations("up")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(up) == 0 || up[0].Name != "001_summary_runs.up.sql" {
		t.Fatalf("unexpected up migrations: %+v", up)
	}
	if !strings.Contains(up[0].SQL, "CREATE TABLE IF NOT EXISTS summary_runs") {
		t.Error("first migration should create summary_runs")
	}

	down, err := Migrations("down")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(down) != len(up) {
		t.Errorf("expected %d down migrations, got %d", len(up), len(down))
	}
}

func TestMigrations_UnknownDirection(t *testing.T) {
	if _, err := Migrations("sideways"); err == nil {
		t.Fatal("expected error for unknown direction")
	}
}
