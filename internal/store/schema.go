package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/composite/internal/ir"
)

// EnsureSchema creates the tables of every entity type known to the
// resolver. Idempotent: existing tables are left untouched.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.types == nil {
		return fmt.Errorf("ensure schema: no entity types configured")
	}

	return s.WithUnitOfWork(ctx, func(ctx context.Context) error {
		conn := s.conn(ctx)
		for _, def := range s.types.EntityTypes() {
			for _, stmt := range entityTableDDL(def) {
				if _, err := conn.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("ensure schema for %s: %w", def.Name, err)
				}
			}
			s.logger.Debug("entity tables ready", "entity_type", def.Name, "revisionable", def.Revisionable)
		}
		return nil
	})
}

// entityTableDDL returns the CREATE TABLE statements for one entity type.
func entityTableDDL(def ir.EntityTypeDef) []string {
	var stmts []string

	stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid        TEXT    NOT NULL UNIQUE,
    revision_id INTEGER
)`, BaseTable(def.Name)))

	extra := columnDefs(dataColumns(def))
	stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id          INTEGER PRIMARY KEY,
    revision_id INTEGER,
    label       TEXT    NOT NULL DEFAULT '',
    data        TEXT    NOT NULL DEFAULT '{}'%s
)`, DataTable(def.Name), extra))

	if def.Revisionable {
		revData, _ := RevisionDataTable(def)
		stmts = append(stmts,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    revision_id INTEGER PRIMARY KEY AUTOINCREMENT,
    id          INTEGER NOT NULL
)`, RevisionTable(def.Name)),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    revision_id INTEGER PRIMARY KEY,
    id          INTEGER NOT NULL,
    label       TEXT    NOT NULL DEFAULT '',
    data        TEXT    NOT NULL DEFAULT '{}'%s
)`, revData, extra),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_id ON %s(id)`, revData, revData),
		)
	}

	for _, f := range dedicatedReferenceFields(def) {
		cols := columnDefs(fieldColumns(f))
		table := DedicatedTableName(f)
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    entity_id   INTEGER NOT NULL,
    revision_id INTEGER,
    delta       INTEGER NOT NULL%s,
    PRIMARY KEY (entity_id, delta)
)`, table, cols))

		if def.Revisionable {
			revTable := DedicatedRevisionTableName(f)
			stmts = append(stmts,
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    entity_id   INTEGER NOT NULL,
    revision_id INTEGER NOT NULL,
    delta       INTEGER NOT NULL%s,
    PRIMARY KEY (revision_id, delta)
)`, revTable, cols),
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_entity ON %s(entity_id)`, revTable, revTable),
			)
		}
	}

	return stmts
}

// columnDefs renders nullable INTEGER column definitions, each prefixed by
// a comma and newline so they can be appended to a column list.
func columnDefs(cols []string) string {
	var sb strings.Builder
	for _, c := range cols {
		fmt.Fprintf(&sb, ",\n    %-11s INTEGER", c)
	}
	return sb.String()
}
