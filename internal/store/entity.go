package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/composite/internal/ir"
)

// Create inserts a new entity. Assigns ID, a UUIDv7 when UUID is empty, and
// for revisionable types the first RevisionID.
func (s *Store) Create(ctx context.Context, e *ir.Entity) error {
	if !e.IsNew() {
		return fmt.Errorf("create %s: entity already has id %d", e.Type, e.ID)
	}
	def, err := s.entityType(e.Type)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	if err := validateEntity(def, e); err != nil {
		return fmt.Errorf("create %s: %w", e.Type, err)
	}
	data, err := marshalValues(e.Values)
	if err != nil {
		return fmt.Errorf("create %s: %w", e.Type, err)
	}

	entityUUID := e.UUID
	if entityUUID == "" {
		u, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("create %s: generate uuid: %w", e.Type, err)
		}
		entityUUID = u.String()
	}

	var id, rev int64
	err = s.WithUnitOfWork(ctx, func(ctx context.Context) error {
		conn := s.conn(ctx)

		res, err := conn.ExecContext(ctx,
			"INSERT INTO "+BaseTable(def.Name)+" (uuid) VALUES (?)", entityUUID)
		if err != nil {
			return fmt.Errorf("insert %s: %w", def.Name, err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("insert %s: %w", def.Name, err)
		}

		if def.Revisionable {
			if rev, err = s.insertRevision(ctx, def, id); err != nil {
				return err
			}
		}
		if err := s.writeValues(ctx, def, e, id, rev, data); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", e.Type, err)
	}

	e.ID = id
	e.UUID = entityUUID
	e.RevisionID = rev
	e.NewRevision = false
	s.logger.Debug("entity created", "entity", e.Ref().String(), "revision_id", rev)
	return nil
}

// Save persists an entity. New entities are created. For existing entities
// of a revisionable type, NewRevision creates a new current revision and
// leaves the previous one untouched; otherwise the current revision is
// updated in place.
func (s *Store) Save(ctx context.Context, e *ir.Entity) error {
	if e.IsNew() {
		return s.Create(ctx, e)
	}
	def, err := s.entityType(e.Type)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := validateEntity(def, e); err != nil {
		return fmt.Errorf("save %s: %w", e.Ref(), err)
	}
	data, err := marshalValues(e.Values)
	if err != nil {
		return fmt.Errorf("save %s: %w", e.Ref(), err)
	}

	newRevision := e.NewRevision && def.Revisionable
	var rev int64
	err = s.WithUnitOfWork(ctx, func(ctx context.Context) error {
		var current sql.NullInt64
		err := s.conn(ctx).QueryRowContext(ctx,
			"SELECT revision_id FROM "+BaseTable(def.Name)+" WHERE id = ?", e.ID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, e.Ref())
		}
		if err != nil {
			return fmt.Errorf("read revision: %w", err)
		}

		rev = current.Int64
		if newRevision {
			if rev, err = s.insertRevision(ctx, def, e.ID); err != nil {
				return err
			}
		}
		return s.writeValues(ctx, def, e, e.ID, rev, data)
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", e.Ref(), err)
	}

	e.RevisionID = rev
	e.NewRevision = false
	s.logger.Debug("entity saved", "entity", e.Ref().String(), "revision_id", rev, "new_revision", newRevision)
	return nil
}

// insertRevision allocates a revision id and makes it current.
func (s *Store) insertRevision(ctx context.Context, def ir.EntityTypeDef, id int64) (int64, error) {
	conn := s.conn(ctx)
	res, err := conn.ExecContext(ctx, "INSERT INTO "+RevisionTable(def.Name)+" (id) VALUES (?)", id)
	if err != nil {
		return 0, fmt.Errorf("insert revision: %w", err)
	}
	rev, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert revision: %w", err)
	}
	if _, err := conn.ExecContext(ctx,
		"UPDATE "+BaseTable(def.Name)+" SET revision_id = ? WHERE id = ?", rev, id); err != nil {
		return 0, fmt.Errorf("set current revision: %w", err)
	}
	return rev, nil
}

// writeValues writes the current-value rows and, for revisionable types,
// the rows of revision rev.
func (s *Store) writeValues(ctx context.Context, def ir.EntityTypeDef, e *ir.Entity, id, rev int64, data string) error {
	shared := sharedReferenceFields(def)
	cols := append([]string{"id", "revision_id", "label", "data"}, dataColumns(def)...)
	args := append([]any{id, nullInt(rev), e.Label, data}, sharedFieldArgs(shared, e)...)
	if err := s.replaceRow(ctx, DataTable(def.Name), cols, args); err != nil {
		return err
	}

	if def.Revisionable {
		revData, _ := RevisionDataTable(def)
		cols[0], cols[1] = "revision_id", "id"
		args[0], args[1] = rev, id
		if err := s.replaceRow(ctx, revData, cols, args); err != nil {
			return err
		}
	}

	for _, f := range dedicatedReferenceFields(def) {
		if err := s.replaceItems(ctx, DedicatedTableName(f), dedicatedIDKey, id, f, id, rev, e.Get(f.Name)); err != nil {
			return err
		}
		if def.Revisionable {
			if err := s.replaceItems(ctx, DedicatedRevisionTableName(f), "revision_id", rev, f, id, rev, e.Get(f.Name)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) replaceRow(ctx context.Context, table string, cols []string, args []any) error {
	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), placeholders(len(cols)))
	if _, err := s.conn(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("write %s: %w", table, err)
	}
	return nil
}

// replaceItems rewrites the item rows of one dedicated table, scoped by
// keyCol = keyVal (entity_id for current values, revision_id for revisions).
func (s *Store) replaceItems(ctx context.Context, table, keyCol string, keyVal int64, f ir.FieldDescriptor, id, rev int64, items []ir.ReferenceItem) error {
	conn := s.conn(ctx)
	if _, err := conn.ExecContext(ctx, "DELETE FROM "+table+" WHERE "+keyCol+" = ?", keyVal); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}

	cols := append([]string{dedicatedIDKey, "revision_id", "delta"}, fieldColumns(f)...)
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), placeholders(len(cols)))

	delta := 0
	for _, item := range items {
		if item.TargetID == 0 {
			continue
		}
		args := []any{id, nullInt(rev), delta, item.TargetID}
		if f.Kind == ir.KindEntityReferenceRevisions {
			args = append(args, nullInt(item.TargetRevisionID))
		}
		if _, err := conn.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("write %s: %w", table, err)
		}
		delta++
	}
	return nil
}

// sharedFieldArgs returns the column values of single-valued reference
// fields, matching the order of dataColumns.
func sharedFieldArgs(fields []ir.FieldDescriptor, e *ir.Entity) []any {
	var args []any
	for _, f := range fields {
		var item ir.ReferenceItem
		for _, it := range e.Get(f.Name) {
			if it.TargetID != 0 {
				item = it
				break
			}
		}
		args = append(args, nullInt(item.TargetID))
		if f.Kind == ir.KindEntityReferenceRevisions {
			args = append(args, nullInt(item.TargetRevisionID))
		}
	}
	return args
}

// Load returns one entity at its current revision.
// Returns ErrNotFound if no entity has the id.
func (s *Store) Load(ctx context.Context, entityType string, id int64) (*ir.Entity, error) {
	loaded, err := s.LoadMultiple(ctx, entityType, []int64{id})
	if err != nil {
		return nil, err
	}
	e, ok := loaded[id]
	if !ok {
		return nil, fmt.Errorf("load %s/%d: %w", entityType, id, ErrNotFound)
	}
	return e, nil
}

// LoadMultiple returns the entities with the given ids, keyed by id.
// Ids that do not exist are skipped; it is not an error to ask for them.
func (s *Store) LoadMultiple(ctx context.Context, entityType string, ids []int64) (map[int64]*ir.Entity, error) {
	def, err := s.entityType(entityType)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	out := make(map[int64]*ir.Entity)
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return out, nil
	}

	if err := s.loadRows(ctx, def, ids, out); err != nil {
		return nil, fmt.Errorf("load %s: %w", entityType, err)
	}
	if len(out) == 0 {
		return out, nil
	}

	for _, f := range dedicatedReferenceFields(def) {
		if err := s.loadItems(ctx, f, ids, out); err != nil {
			return nil, fmt.Errorf("load %s: %w", entityType, err)
		}
	}
	return out, nil
}

func (s *Store) loadRows(ctx context.Context, def ir.EntityTypeDef, ids []int64, out map[int64]*ir.Entity) error {
	extra := dataColumns(def)
	selectCols := []string{"b.id", "b.uuid", "b.revision_id", "d.label", "d.data"}
	for _, c := range extra {
		selectCols = append(selectCols, "d."+c)
	}

	query := fmt.Sprintf("SELECT %s FROM %s b JOIN %s d ON d.id = b.id WHERE b.id IN (%s) ORDER BY b.id ASC",
		strings.Join(selectCols, ", "), BaseTable(def.Name), DataTable(def.Name), placeholders(len(ids)))

	rows, err := s.conn(ctx).QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("query %s: %w", def.Name, err)
	}
	defer rows.Close()

	shared := sharedReferenceFields(def)
	for rows.Next() {
		var (
			e    = &ir.Entity{Type: def.Name, References: make(map[string][]ir.ReferenceItem)}
			rev  sql.NullInt64
			data string
		)
		colVals := make([]sql.NullInt64, len(extra))
		dest := []any{&e.ID, &e.UUID, &rev, &e.Label, &data}
		for i := range colVals {
			dest = append(dest, &colVals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scan %s: %w", def.Name, err)
		}

		e.RevisionID = rev.Int64
		if e.Values, err = unmarshalValues(data); err != nil {
			return fmt.Errorf("%s: %w", e.Ref(), err)
		}

		i := 0
		for _, f := range shared {
			item := ir.ReferenceItem{TargetID: colVals[i].Int64}
			i++
			if f.Kind == ir.KindEntityReferenceRevisions {
				item.TargetRevisionID = colVals[i].Int64
				i++
			}
			if item.TargetID != 0 {
				e.References[f.Name] = []ir.ReferenceItem{item}
			}
		}
		out[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", def.Name, err)
	}
	return nil
}

func (s *Store) loadItems(ctx context.Context, f ir.FieldDescriptor, ids []int64, out map[int64]*ir.Entity) error {
	table := DedicatedTableName(f)
	cols := append([]string{dedicatedIDKey}, fieldColumns(f)...)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE entity_id IN (%s) ORDER BY entity_id ASC, delta ASC",
		strings.Join(cols, ", "), table, placeholders(len(ids)))

	rows, err := s.conn(ctx).QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id        int64
			target    sql.NullInt64
			targetRev sql.NullInt64
		)
		dest := []any{&id, &target}
		if f.Kind == ir.KindEntityReferenceRevisions {
			dest = append(dest, &targetRev)
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
		e, ok := out[id]
		if !ok {
			continue
		}
		e.References[f.Name] = append(e.References[f.Name], ir.ReferenceItem{
			TargetID:         target.Int64,
			TargetRevisionID: targetRev.Int64,
		})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", table, err)
	}
	return nil
}

// ReferencedEntities loads the entities a reference field currently points
// at, in delta order. Targets that no longer exist are skipped.
func (s *Store) ReferencedEntities(ctx context.Context, e *ir.Entity, field string) ([]*ir.Entity, error) {
	def, err := s.entityType(e.Type)
	if err != nil {
		return nil, fmt.Errorf("referenced entities: %w", err)
	}
	f, ok := def.Field(field)
	if !ok || !f.IsReference() {
		return nil, fmt.Errorf("referenced entities: %s.%s is not a reference field", e.Type, field)
	}

	ids := e.TargetIDs(field)
	loaded, err := s.LoadMultiple(ctx, f.TargetType, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*ir.Entity, 0, len(ids))
	for _, id := range ids {
		if target, ok := loaded[id]; ok {
			out = append(out, target)
		}
	}
	return out, nil
}

// validateEntity checks references and scalar values against the type.
func validateEntity(def ir.EntityTypeDef, e *ir.Entity) error {
	names := make([]string, 0, len(e.References))
	for name := range e.References {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f, ok := def.Field(name)
		if !ok {
			return fmt.Errorf("unknown field %q", name)
		}
		if !f.IsReference() {
			return fmt.Errorf("field %q is not a reference field", name)
		}
		if !f.HasDedicatedStorage() && len(e.TargetIDs(name)) > 1 {
			return fmt.Errorf("field %q holds a single value, got %d", name, len(e.TargetIDs(name)))
		}
	}

	for _, key := range e.Values.SortedKeys() {
		f, ok := def.Field(key)
		if !ok {
			return fmt.Errorf("unknown field %q", key)
		}
		v := e.Values[key]
		if _, isNull := v.(ir.IRNull); isNull {
			continue
		}
		switch f.Kind {
		case ir.KindString:
			if _, ok := v.(ir.IRString); !ok {
				return fmt.Errorf("field %q expects a string, got %T", key, v)
			}
		case ir.KindInt:
			if _, ok := v.(ir.IRInt); !ok {
				return fmt.Errorf("field %q expects an int, got %T", key, v)
			}
		default:
			return fmt.Errorf("field %q is a %s field, set it as a reference", key, f.Kind)
		}
	}
	return nil
}

// marshalValues converts scalar values to canonical JSON TEXT for storage.
func marshalValues(values ir.IRObject) (string, error) {
	if len(values) == 0 {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(values)
	if err != nil {
		return "", fmt.Errorf("marshal values: %w", err)
	}
	return string(data), nil
}

// unmarshalValues parses stored values. ir.IRObject decodes numbers with
// json.Number, so large integers keep full precision.
func unmarshalValues(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal values: %w", err)
	}
	return obj, nil
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// uniqueIDs drops zero and duplicate ids, keeping first-seen order.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
