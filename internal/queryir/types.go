package queryir

import "github.com/roach88/composite/internal/ir"

// Query represents an abstract query.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode()
}

// Predicate represents a filter condition on a single table.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Column is one selected column, optionally renamed.
type Column struct {
	Name string // Column in the source table
	As   string // Output name ("" = Name)
}

// OutputName returns the name the column has in the result set.
func (c Column) OutputName() string {
	if c.As != "" {
		return c.As
	}
	return c.Name
}

// Select represents single-table access.
//
// Semantics:
//
//	SELECT [DISTINCT] <columns> FROM <from> WHERE <filter> GROUP BY <group_by>
//
// Example, the referencing ids held by a configured field:
//
//	Select{
//	  From:    "node__ref",
//	  Columns: []Column{{Name: "entity_id", As: "id"}},
//	  Filter:  Equals{Field: "ref_target_id", Value: ir.IRInt(3)},
//	}
//
// Rows are always returned ordered by the first column.
type Select struct {
	From     string    // Table name
	Columns  []Column  // Explicit columns (empty = SELECT *, flagged by Validate)
	Filter   Predicate // WHERE conditions (nil = no filter)
	GroupBy  []string  // GROUP BY columns
	Distinct bool
}

func (Select) queryNode() {}

// Union combines the rows of several Select queries, removing duplicates.
// Every part must select the same number of columns.
type Union struct {
	Queries []Query
}

func (Union) queryNode() {}

// Intersect keeps the rows present in every part.
type Intersect struct {
	Queries []Query
}

func (Intersect) queryNode() {}

// Equals represents a field-equals-literal predicate.
//
//	<field> = <value>
//
// Comparing against IRNull never matches; use NotNull for presence checks.
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// NotNull holds when the field has a value.
//
//	<field> IS NOT NULL
type NotNull struct {
	Field string
}

func (NotNull) predicateNode() {}

// In holds when the field equals any of the values.
// An empty Values list never matches.
//
//	<field> IN (<values>)
type In struct {
	Field  string
	Values []ir.IRValue
}

func (In) predicateNode() {}

// And represents a conjunction. Empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or represents a disjunction. Empty Or is always false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}
