package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migration is one embedded SQL file.
type Migration struct {
	Name string
	SQL  string
}

// Migrations returns the embedded migrations for direction "up" or "down".
// Up migrations are in ascending order, down migrations in descending order.
func Migrations(direction string) ([]Migration, error) {
	suffix := "." + direction + ".sql"
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, err
	}

	var out []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		data, err := migrationFS.ReadFile("migrations/" + e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{Name: e.Name(), SQL: string(data)})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no %s migrations", direction)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if direction == "down" {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

// Migrate applies every migration for direction in order.
func (db *DB) Migrate(ctx context.Context, direction string, applied func(name string)) error {
	migrations, err := Migrations(direction)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("exec %s: %w", m.Name, err)
		}
		if applied != nil {
			applied(m.Name)
		}
	}
	return nil
}
