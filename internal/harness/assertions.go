package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails. It carries the trace
// so a failure shows what the cascade actually did.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", ev.Seq, ev.Type, ev.Entity)
			if ev.Field != "" {
				fmt.Fprintf(&buf, ".%s", ev.Field)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

func (h *Harness) evaluate(ctx context.Context, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertExists:
			err = h.assertPresence(ctx, a, true)
		case AssertMissing:
			err = h.assertPresence(ctx, a, false)
		case AssertReferencing:
			err = h.assertReferencing(ctx, a)
		case AssertDeleteCount:
			err = assertDeleteCount(h.result.Trace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func (h *Harness) assertPresence(ctx context.Context, a Assertion, want bool) error {
	var wrong []string
	for _, alias := range a.Entities {
		ok, err := h.exists(ctx, alias)
		if err != nil {
			return err
		}
		if ok != want {
			wrong = append(wrong, alias)
		}
	}
	if len(wrong) == 0 {
		return nil
	}

	state := "missing"
	if !want {
		state = "still present"
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s %v", a.Type, a.Entities),
		Actual:   fmt.Sprintf("%s %v", state, wrong),
		Trace:    h.result.Trace,
	}
}

func (h *Harness) assertReferencing(ctx context.Context, a Assertion) error {
	target, ok := h.aliases[a.Target]
	if !ok {
		return fmt.Errorf("unknown alias %q", a.Target)
	}

	set, err := h.manager.ReferencingEntities(ctx, target)
	if err != nil {
		return err
	}
	actual := make([]string, 0, len(set))
	for _, ref := range set.Refs() {
		actual = append(actual, h.name(ref))
	}

	expected := a.Expect
	if expected == nil {
		expected = []string{}
	}
	if slices.Equal(actual, expected) {
		return nil
	}
	return &AssertionError{
		Type:     AssertReferencing,
		Expected: fmt.Sprintf("%s referenced by %v", a.Target, expected),
		Actual:   fmt.Sprintf("%s referenced by %v", a.Target, actual),
	}
}

func assertDeleteCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Type == TraceDeleted {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertDeleteCount,
		Expected: fmt.Sprintf("%d deleted entities", a.Count),
		Actual:   fmt.Sprintf("%d deleted entities", count),
		Trace:    trace,
	}
}
