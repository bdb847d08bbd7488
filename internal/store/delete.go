package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/composite/internal/ir"
)

// DeleteRecord is one row of the delete log.
type DeleteRecord struct {
	Seq       int64        `json:"seq"`
	FlowToken string       `json:"flow_token"`
	Ref       ir.EntityRef `json:"entity"`
	UUID      string       `json:"uuid"`
	Depth     int          `json:"depth"`
}

// Delete removes an entity with all of its revisions and field rows.
//
// Delete runs in a unit of work. Before-delete hooks run before any row is
// removed and after-delete hooks run after, both inside the same unit of
// work; a hook error rolls back every delete made in it. Deleting an entity
// whose delete is already in progress, or that no longer exists, is a no-op.
func (s *Store) Delete(ctx context.Context, e *ir.Entity) error {
	if e == nil || e.IsNew() {
		return fmt.Errorf("delete: entity has not been saved")
	}
	def, err := s.entityType(e.Type)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	return s.WithUnitOfWork(ctx, func(ctx context.Context) error {
		u := s.unitOfWork(ctx)
		ref := e.Ref()
		if u.deleting[ref] {
			s.logger.Debug("delete already in progress", "entity", ref.String())
			return nil
		}

		exists, err := s.exists(ctx, def, e.ID)
		if err != nil {
			return fmt.Errorf("delete %s: %w", ref, err)
		}
		if !exists {
			s.logger.Debug("entity already deleted", "entity", ref.String())
			return nil
		}
		u.deleting[ref] = true

		depth := deleteDepth(ctx)
		token := FlowTokenFrom(ctx)
		if _, err := s.conn(ctx).ExecContext(ctx,
			"INSERT INTO delete_log (flow_token, entity_type, entity_id, uuid, depth) VALUES (?, ?, ?, ?, ?)",
			token, e.Type, e.ID, e.UUID, depth); err != nil {
			return fmt.Errorf("delete %s: log: %w", ref, err)
		}

		hookCtx := context.WithValue(ctx, deleteDepthKey, depth+1)
		if s.hooks != nil {
			if err := s.hooks.ExecuteHooks(hookCtx, ir.BeforeDelete, e); err != nil {
				return fmt.Errorf("delete %s: %s hook: %w", ref, ir.BeforeDelete, err)
			}
		}

		if err := s.removeRows(ctx, def, e.ID); err != nil {
			return fmt.Errorf("delete %s: %w", ref, err)
		}

		if s.hooks != nil {
			if err := s.hooks.ExecuteHooks(hookCtx, ir.AfterDelete, e); err != nil {
				return fmt.Errorf("delete %s: %s hook: %w", ref, ir.AfterDelete, err)
			}
		}

		s.logger.Debug("entity deleted", "entity", ref.String(), "flow_token", token, "depth", depth)
		return nil
	})
}

func (s *Store) exists(ctx context.Context, def ir.EntityTypeDef, id int64) (bool, error) {
	var found int64
	err := s.conn(ctx).QueryRowContext(ctx,
		"SELECT id FROM "+BaseTable(def.Name)+" WHERE id = ?", id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check existence: %w", err)
	}
	return true, nil
}

// removeRows deletes every row belonging to an entity.
func (s *Store) removeRows(ctx context.Context, def ir.EntityTypeDef, id int64) error {
	type target struct {
		table string
		key   string
	}
	targets := []target{
		{BaseTable(def.Name), IDKey},
		{DataTable(def.Name), IDKey},
	}
	if def.Revisionable {
		revData, _ := RevisionDataTable(def)
		targets = append(targets,
			target{RevisionTable(def.Name), IDKey},
			target{revData, IDKey},
		)
	}
	for _, f := range dedicatedReferenceFields(def) {
		targets = append(targets, target{DedicatedTableName(f), dedicatedIDKey})
		if def.Revisionable {
			targets = append(targets, target{DedicatedRevisionTableName(f), dedicatedIDKey})
		}
	}

	conn := s.conn(ctx)
	for _, t := range targets {
		if _, err := conn.ExecContext(ctx, "DELETE FROM "+t.table+" WHERE "+t.key+" = ?", id); err != nil {
			return fmt.Errorf("remove from %s: %w", t.table, err)
		}
	}
	return nil
}

// ReadDeleteLog returns the deletes recorded under a flow token, in the
// order they started.
func (s *Store) ReadDeleteLog(ctx context.Context, flowToken string) ([]DeleteRecord, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT seq, flow_token, entity_type, entity_id, uuid, depth
		FROM delete_log
		WHERE flow_token = ?
		ORDER BY seq ASC
	`, flowToken)
	if err != nil {
		return nil, fmt.Errorf("read delete log: %w", err)
	}
	defer rows.Close()

	var records []DeleteRecord
	for rows.Next() {
		var r DeleteRecord
		if err := rows.Scan(&r.Seq, &r.FlowToken, &r.Ref.Type, &r.Ref.ID, &r.UUID, &r.Depth); err != nil {
			return nil, fmt.Errorf("scan delete log: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delete log: %w", err)
	}
	return records, nil
}
