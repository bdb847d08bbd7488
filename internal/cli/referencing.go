package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/composite/internal/ir"
)

// ReferencingResult lists the entities referencing a target.
type ReferencingResult struct {
	Target      ir.EntityRef   `json:"target"`
	Referencing []ir.EntityRef `json:"referencing"`
}

func (r ReferencingResult) String() string {
	if len(r.Referencing) == 0 {
		return fmt.Sprintf("%s is not referenced.", r.Target)
	}
	refs := make([]string, len(r.Referencing))
	for i, ref := range r.Referencing {
		refs[i] = ref.String()
	}
	return fmt.Sprintf("%s is referenced by %s", r.Target, strings.Join(refs, ", "))
}

// NewReferencingCommand creates the referencing command.
func NewReferencingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "referencing <type> <id>",
		Short: "List entities referencing an entity",
		Long: `List every entity that references the given entity through any
reference field, in any revision of a revisionable owner.

Example:
  composite referencing --db ./site.db node 3`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReferencing(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runReferencing(opts *RootOptions, entityType, id string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	e, err := openEnv(opts, cmd)
	if err != nil {
		return report(f, ErrCodeGeneric, err)
	}
	defer e.Close()

	target, err := e.loadEntity(cmd.Context(), entityType, id)
	if err != nil {
		return report(f, ErrCodeNotFound, err)
	}

	set, err := e.manager.ReferencingEntities(cmd.Context(), target)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeGeneric, "failed to query referencing entities", err)
	}
	return f.Success(ReferencingResult{Target: target.Ref(), Referencing: set.Refs()})
}
