package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/composite/internal/composite"
)

// FieldInfo describes one reference field.
type FieldInfo struct {
	Name               string `json:"name"`
	Kind               string `json:"kind"`
	Origin             string `json:"origin"`
	Composite          bool   `json:"composite"`
	CompositeRevisions bool   `json:"composite_revisions"`
}

// OwnerFields lists the fields of one owner type.
type OwnerFields struct {
	Type   string      `json:"type"`
	Fields []FieldInfo `json:"fields"`
}

// FieldsResult lists every field that can reference a target type.
type FieldsResult struct {
	Target string        `json:"target"`
	Owners []OwnerFields `json:"owners"`
}

func (r FieldsResult) String() string {
	if len(r.Owners) == 0 {
		return fmt.Sprintf("No reference fields target %s.", r.Target)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Fields referencing %s:", r.Target)
	for _, o := range r.Owners {
		for _, fi := range o.Fields {
			flags := ""
			if fi.Composite {
				flags = " composite"
			}
			if fi.CompositeRevisions {
				flags += " revisions"
			}
			fmt.Fprintf(&b, "\n  %s.%s (%s, %s)%s", o.Type, fi.Name, fi.Kind, fi.Origin, flags)
		}
	}
	return b.String()
}

// NewFieldsCommand creates the fields command.
func NewFieldsCommand(rootOpts *RootOptions) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "fields --target <type>",
		Short: "List reference fields targeting an entity type",
		Long: `List every reference field, of any entity type, whose target is the
given type, with the composite settings in effect.

Example:
  composite fields --specs ./specs --target paragraph`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFields(rootOpts, target, cmd)
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "target entity type (required)")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func runFields(opts *RootOptions, target string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	cat, _, logger, err := loadCatalog(opts, cmd)
	if err != nil {
		return report(f, ErrCodeNotFound, err)
	}
	if _, ok := cat.EntityType(target); !ok {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("unknown entity type %q", target), nil)
	}

	// Field discovery needs only the catalog.
	mgr := composite.NewManager(cat, nil, nil, composite.WithLogger(logger))
	fieldMap := mgr.ReferenceFields(target)

	out := FieldsResult{Target: target, Owners: []OwnerFields{}}
	for _, owner := range fieldMap.OwnerTypes() {
		of := OwnerFields{Type: owner}
		for _, fd := range fieldMap[owner] {
			of.Fields = append(of.Fields, FieldInfo{
				Name:               fd.Name,
				Kind:               string(fd.Kind),
				Origin:             string(fd.Origin),
				Composite:          fd.Composite,
				CompositeRevisions: fd.CompositeRevisions,
			})
		}
		out.Owners = append(out.Owners, of)
	}
	return f.Success(out)
}
