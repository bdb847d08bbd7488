package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/composite/internal/ir"
	"github.com/roach88/composite/internal/queryir"
)

// Conjunction joins the conditions of an EntityQuery.
type Conjunction int

const (
	ConjunctionAnd Conjunction = iota
	ConjunctionOr
)

func (c Conjunction) String() string {
	if c == ConjunctionOr {
		return "OR"
	}
	return "AND"
}

type condition struct {
	field string
	value ir.IRValue
}

// EntityQuery finds entity ids of one type by field values.
//
// Conditions name a field as it appears on the entity:
//
//	id, uuid, label, revision_id
//	<field>                      (the target_id of a reference field)
//	<field>.target_id
//	<field>.target_revision_id   (entity_reference_revisions only)
//
// Build resolves each condition to the table holding the field. Conditions
// on the same table become one Select; conditions spread over tables are
// combined with UNION (ConjunctionOr) or INTERSECT (ConjunctionAnd).
type EntityQuery struct {
	store        *Store
	entityType   string
	conjunction  Conjunction
	conditions   []condition
	allRevisions bool
	err          error
}

// Query starts a query over entities of one type.
func (s *Store) Query(entityType string, conjunction Conjunction) *EntityQuery {
	return &EntityQuery{store: s, entityType: entityType, conjunction: conjunction}
}

// Condition adds a field = value condition. The value is converted with
// ir.ToIRValue; a conversion error is reported by Build.
func (q *EntityQuery) Condition(field string, value any) *EntityQuery {
	v, err := ir.ToIRValue(value)
	if err != nil && q.err == nil {
		q.err = fmt.Errorf("condition %s: %w", field, err)
	}
	q.conditions = append(q.conditions, condition{field: field, value: v})
	return q
}

// AllRevisions matches conditions against every revision instead of only
// the current one. Ignored for types that are not revisionable.
func (q *EntityQuery) AllRevisions() *EntityQuery {
	q.allRevisions = true
	return q
}

type queryPart struct {
	table string
	idCol string
	preds []queryir.Predicate
}

// Build returns the query as QueryIR.
func (q *EntityQuery) Build() (queryir.Query, error) {
	if q.err != nil {
		return nil, q.err
	}
	def, err := q.store.entityType(q.entityType)
	if err != nil {
		return nil, err
	}

	revisions := q.allRevisions && def.Revisionable
	if q.allRevisions && !def.Revisionable {
		q.store.logger.Debug("all revisions ignored for non-revisionable type", "entity_type", def.Name)
	}

	var parts []*queryPart
	byTable := make(map[string]*queryPart)
	for _, c := range q.conditions {
		table, idCol, column, err := resolveCondition(def, c.field, revisions)
		if err != nil {
			return nil, err
		}
		p, ok := byTable[table]
		if !ok {
			p = &queryPart{table: table, idCol: idCol}
			byTable[table] = p
			parts = append(parts, p)
		}
		p.preds = append(p.preds, queryir.Equals{Field: column, Value: c.value})
	}

	if len(parts) == 0 {
		table, _ := dataTableFor(def, revisions)
		return queryir.Select{
			From:     table,
			Columns:  []queryir.Column{{Name: IDKey}},
			Distinct: true,
		}, nil
	}

	selects := make([]queryir.Query, 0, len(parts))
	for _, p := range parts {
		var filter queryir.Predicate = queryir.And{Predicates: p.preds}
		if q.conjunction == ConjunctionOr {
			filter = queryir.Or{Predicates: p.preds}
		}
		selects = append(selects, queryir.Select{
			From:     p.table,
			Columns:  []queryir.Column{{Name: p.idCol, As: IDKey}},
			Filter:   filter,
			Distinct: true,
		})
	}

	switch {
	case len(selects) == 1:
		return selects[0], nil
	case q.conjunction == ConjunctionOr:
		return queryir.Union{Queries: selects}, nil
	default:
		return queryir.Intersect{Queries: selects}, nil
	}
}

// Execute runs the query and returns matching entity ids in ascending order.
func (q *EntityQuery) Execute(ctx context.Context) ([]int64, error) {
	query, err := q.Build()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.entityType, err)
	}
	return q.store.executeIDs(ctx, query)
}

// executeIDs compiles and runs a query selecting one integer column.
// NULL values are skipped.
func (s *Store) executeIDs(ctx context.Context, query queryir.Query) ([]int64, error) {
	if result := queryir.Validate(query); !result.IsClean {
		s.logger.Debug("query warnings", "warnings", result.Warnings)
	}

	sqlStr, params, err := s.compiler.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("compile query: %w", err)
	}
	s.logger.Debug("executing query", "sql", sqlStr, "params", params)

	rows, err := s.conn(ctx).QueryContext(ctx, sqlStr, params...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id *int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan query result: %w", err)
		}
		if id != nil {
			ids = append(ids, *id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate query result: %w", err)
	}
	return ids, nil
}

// resolveCondition maps a condition field to (table, id column, column).
func resolveCondition(def ir.EntityTypeDef, field string, revisions bool) (string, string, string, error) {
	switch field {
	case "uuid":
		return BaseTable(def.Name), IDKey, "uuid", nil
	case IDKey, "label", "revision_id":
		table, _ := dataTableFor(def, revisions)
		return table, IDKey, field, nil
	}

	name, property, found := strings.Cut(field, ".")
	if !found {
		property = PropertyTargetID
	}
	f, ok := def.Field(name)
	if !ok {
		return "", "", "", fmt.Errorf("unknown field %s.%s", def.Name, name)
	}
	if !f.IsReference() {
		return "", "", "", fmt.Errorf("field %s.%s is a %s field and cannot be queried", def.Name, name, f.Kind)
	}
	switch {
	case property == PropertyTargetID:
	case property == PropertyTargetRevisionID && f.Kind == ir.KindEntityReferenceRevisions:
	default:
		return "", "", "", fmt.Errorf("field %s.%s has no property %q", def.Name, name, property)
	}

	column := FieldColumnName(f, property)
	if f.HasDedicatedStorage() {
		if revisions {
			return DedicatedRevisionTableName(f), dedicatedIDKey, column, nil
		}
		return DedicatedTableName(f), dedicatedIDKey, column, nil
	}
	table, _ := dataTableFor(def, revisions)
	return table, IDKey, column, nil
}

// dataTableFor returns the revision data table when revisions are scanned,
// the current data table otherwise.
func dataTableFor(def ir.EntityTypeDef, revisions bool) (string, error) {
	if revisions {
		return RevisionDataTable(def)
	}
	return DataTable(def.Name), nil
}
