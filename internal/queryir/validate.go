package queryir

import (
	"fmt"

	"github.com/roach88/composite/internal/ir"
)

// ValidationResult contains the findings of a query check.
//
// Warnings never block execution; they flag queries that are legal but
// almost certainly not what the caller meant (a NULL comparison that can
// never match, a disjunction with no branches).
type ValidationResult struct {
	IsClean  bool
	Warnings []string
}

// Validate walks a query and reports suspicious constructs.
//
// Rules:
//  1. Explicit columns - no SELECT *
//  2. No comparisons against NULL (always false in SQL)
//  3. Empty Or / empty In match nothing
//  4. Compound parts must agree on column count
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{warnings: []string{}}
	v.validateQuery(query)

	return ValidationResult{
		IsClean:  len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	if q == nil {
		v.addWarning("nil query")
		return
	}

	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	case Union:
		v.validateCompound("UNION", query.Queries)
	case *Union:
		v.validateCompound("UNION", query.Queries)
	case Intersect:
		v.validateCompound("INTERSECT", query.Queries)
	case *Intersect:
		v.validateCompound("INTERSECT", query.Queries)
	default:
		v.addWarning("Unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if len(sel.Columns) == 0 {
		v.addWarning("Empty columns (SELECT *) on %s - select explicit columns", sel.From)
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validateCompound(op string, parts []Query) {
	if len(parts) == 0 {
		v.addWarning("%s with no parts", op)
		return
	}

	width := -1
	for i, part := range parts {
		v.validateQuery(part)

		n := columnCount(part)
		if n < 0 {
			continue
		}
		if width < 0 {
			width = n
		} else if n != width {
			v.addWarning("%s part %d selects %d columns, expected %d", op, i, n, width)
		}
	}
}

// columnCount returns the width of a Select, or -1 for anything else.
func columnCount(q Query) int {
	switch query := q.(type) {
	case Select:
		return len(query.Columns)
	case *Select:
		return len(query.Columns)
	default:
		return -1
	}
}

func (v *validator) validatePredicate(p Predicate) {
	if p == nil {
		return
	}

	switch pred := p.(type) {
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case NotNull, *NotNull:
	case In:
		v.validateIn(pred)
	case *In:
		v.validateIn(*pred)
	case And:
		v.validateAll(pred.Predicates)
	case *And:
		v.validateAll(pred.Predicates)
	case Or:
		v.validateOr(pred)
	case *Or:
		v.validateOr(*pred)
	default:
		v.addWarning("Unknown predicate type: %T", p)
	}
}

func (v *validator) validateEquals(eq Equals) {
	if eq.Value == nil {
		v.addWarning("Field '%s' compared to nil value", eq.Field)
		return
	}
	if _, isNull := eq.Value.(ir.IRNull); isNull {
		v.addWarning("Field '%s' compared to NULL - never matches, use NotNull", eq.Field)
	}
}

func (v *validator) validateIn(in In) {
	if len(in.Values) == 0 {
		v.addWarning("Field '%s' IN () - never matches", in.Field)
	}
	for _, val := range in.Values {
		if _, isNull := val.(ir.IRNull); isNull {
			v.addWarning("Field '%s' IN list contains NULL", in.Field)
		}
	}
}

func (v *validator) validateOr(or Or) {
	if len(or.Predicates) == 0 {
		v.addWarning("Empty OR - never matches")
	}
	v.validateAll(or.Predicates)
}

func (v *validator) validateAll(preds []Predicate) {
	for _, p := range preds {
		v.validatePredicate(p)
	}
}
