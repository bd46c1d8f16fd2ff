package history

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// schemaStep is one migration file. Files are named NNN_description.sql and
// NNN becomes the schema version recorded in PRAGMA user_version.
type schemaStep struct {
	version int
	name    string
	stmts   []string
}

func schemaSteps() ([]schemaStep, error) {
	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	steps := make([]schemaStep, 0, len(names))
	for _, name := range names {
		base := strings.TrimPrefix(name, "migrations/")
		prefix, _, _ := strings.Cut(base, "_")
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %s: name must start with a number", base)
		}
		data, err := migrationFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", base, err)
		}
		steps = append(steps, schemaStep{version: version, name: base, stmts: splitStatements(string(data))})
	}
	slices.SortFunc(steps, func(a, b schemaStep) int { return a.version - b.version })
	return steps, nil
}

// migrate applies every step newer than the database's user_version inside
// one transaction.
func (s *Store) migrate(ctx context.Context) error {
	steps, err := schemaSteps()
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current int
	if err := tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	applied := current
	for _, step := range steps {
		if step.version <= current {
			continue
		}
		for _, stmt := range step.stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", step.name, err)
			}
		}
		applied = step.version
	}
	if applied == current {
		return nil
	}
	// PRAGMA does not take bound parameters.
	if _, err := tx.ExecContext(ctx, "PRAGMA user_version = "+strconv.Itoa(applied)); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

// splitStatements breaks a migration file on semicolons. Migrations do not
// contain semicolons inside literals.
func splitStatements(sql string) []string {
	var stmts []string
	for part := range strings.SplitSeq(sql, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
