package querysql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/composite/internal/ir"
	"github.com/roach88/composite/internal/queryir"
)

// identPattern matches every table and column name the store generates.
// Names outside it are rejected rather than quoted.
var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// SQLCompiler compiles QueryIR to parameterized SQL for SQLite.
//
// Every query carries an ORDER BY so results are deterministic.
// All values are parameterized, never interpolated.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a QueryIR query to parameterized SQL.
// Returns (sql, params, error).
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileOrderedSelect(query)
	case *queryir.Select:
		return c.compileOrderedSelect(*query)
	case queryir.Union:
		return c.compileCompound("UNION", query.Queries)
	case *queryir.Union:
		return c.compileCompound("UNION", query.Queries)
	case queryir.Intersect:
		return c.compileCompound("INTERSECT", query.Queries)
	case *queryir.Intersect:
		return c.compileCompound("INTERSECT", query.Queries)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileOrderedSelect(q queryir.Select) (string, []any, error) {
	sql, params, err := c.compileSelect(q)
	if err != nil {
		return "", nil, err
	}
	return sql + " ORDER BY " + stableOrderKey(q), params, nil
}

// compileSelect compiles a Select without ORDER BY, so it can also be used
// as one part of a compound query.
func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	if err := checkIdent(q.From); err != nil {
		return "", nil, fmt.Errorf("table: %w", err)
	}

	columns, err := compileColumns(q.Columns)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if q.Distinct {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString(columns)
	sb.WriteString(" FROM ")
	sb.WriteString(q.From)

	var params []any
	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(filterSQL)
		params = filterParams
	}

	if len(q.GroupBy) > 0 {
		for _, g := range q.GroupBy {
			if err := checkIdent(g); err != nil {
				return "", nil, fmt.Errorf("group by: %w", err)
			}
		}
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(q.GroupBy, ", "))
	}

	return sb.String(), params, nil
}

// compileCompound joins Select parts with UNION or INTERSECT. SQLite only
// allows ORDER BY on the whole compound, so parts are compiled unordered
// and the result is ordered by its first column.
func (c *SQLCompiler) compileCompound(op string, parts []queryir.Query) (string, []any, error) {
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("%s requires at least one query", op)
	}

	sqlParts := make([]string, 0, len(parts))
	var allParams []any
	for i, part := range parts {
		sel, ok := asSelect(part)
		if !ok {
			return "", nil, fmt.Errorf("%s part %d must be Select, got %T", op, i, part)
		}
		sql, params, err := c.compileSelect(sel)
		if err != nil {
			return "", nil, fmt.Errorf("%s part %d: %w", op, i, err)
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}

	return strings.Join(sqlParts, " "+op+" ") + " ORDER BY 1 ASC", allParams, nil
}

// compileColumns renders the column list. Empty means SELECT *.
func compileColumns(cols []queryir.Column) (string, error) {
	if len(cols) == 0 {
		return "*", nil
	}

	parts := make([]string, 0, len(cols))
	for _, col := range cols {
		if err := checkIdent(col.Name); err != nil {
			return "", fmt.Errorf("column: %w", err)
		}
		if col.As == "" || col.As == col.Name {
			parts = append(parts, col.Name)
			continue
		}
		if err := checkIdent(col.As); err != nil {
			return "", fmt.Errorf("column alias: %w", err)
		}
		parts = append(parts, col.Name+" AS "+col.As)
	}
	return strings.Join(parts, ", "), nil
}

// stableOrderKey returns the ORDER BY clause for a Select.
func stableOrderKey(q queryir.Select) string {
	if len(q.Columns) == 0 {
		return "1 ASC"
	}
	return q.Columns[0].OutputName() + " ASC"
}

// compilePredicate compiles a predicate to a WHERE clause fragment.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	if p == nil {
		return "1 = 1", nil, nil
	}

	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileEquals(pred)
	case *queryir.Equals:
		return c.compileEquals(*pred)
	case queryir.NotNull:
		return c.compileNotNull(pred)
	case *queryir.NotNull:
		return c.compileNotNull(*pred)
	case queryir.In:
		return c.compileIn(pred)
	case *queryir.In:
		return c.compileIn(*pred)
	case queryir.And:
		return c.compileJunction(" AND ", "1 = 1", pred.Predicates)
	case *queryir.And:
		return c.compileJunction(" AND ", "1 = 1", pred.Predicates)
	case queryir.Or:
		return c.compileJunction(" OR ", "1 = 0", pred.Predicates)
	case *queryir.Or:
		return c.compileJunction(" OR ", "1 = 0", pred.Predicates)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileEquals compiles an Equals predicate to "field = ?".
func (c *SQLCompiler) compileEquals(eq queryir.Equals) (string, []any, error) {
	if err := checkIdent(eq.Field); err != nil {
		return "", nil, err
	}
	param, err := irValueToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	return eq.Field + " = ?", []any{param}, nil
}

func (c *SQLCompiler) compileNotNull(nn queryir.NotNull) (string, []any, error) {
	if err := checkIdent(nn.Field); err != nil {
		return "", nil, err
	}
	return nn.Field + " IS NOT NULL", nil, nil
}

// compileIn compiles "field IN (?, ?)". An empty list never matches.
func (c *SQLCompiler) compileIn(in queryir.In) (string, []any, error) {
	if err := checkIdent(in.Field); err != nil {
		return "", nil, err
	}
	if len(in.Values) == 0 {
		return "1 = 0", nil, nil
	}

	params := make([]any, 0, len(in.Values))
	for i, v := range in.Values {
		param, err := irValueToParam(v)
		if err != nil {
			return "", nil, fmt.Errorf("convert value %d: %w", i, err)
		}
		params = append(params, param)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(params)), ", ")
	return in.Field + " IN (" + placeholders + ")", params, nil
}

// compileJunction joins sub-predicates. Nested junctions are parenthesised
// so precedence never depends on SQL operator binding.
func (c *SQLCompiler) compileJunction(sep, empty string, preds []queryir.Predicate) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}

	sqlParts := make([]string, 0, len(preds))
	var allParams []any
	for _, pred := range preds {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}

	if len(sqlParts) == 1 {
		return sqlParts[0], allParams, nil
	}
	return "(" + strings.Join(sqlParts, sep) + ")", allParams, nil
}

func asSelect(q queryir.Query) (queryir.Select, bool) {
	switch query := q.(type) {
	case queryir.Select:
		return query, true
	case *queryir.Select:
		return *query, true
	default:
		return queryir.Select{}, false
	}
}

func checkIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

// irValueToParam converts an ir.IRValue to a Go native type for a SQL parameter.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case ir.IRNull:
		return nil, nil
	case ir.IRArray:
		return nil, fmt.Errorf("IRArray cannot be used as SQL parameter directly")
	case ir.IRObject:
		return nil, fmt.Errorf("IRObject cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
