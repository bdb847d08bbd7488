package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/composite/internal/store"
)

// DeleteResult reports a delete and everything it cascaded to.
type DeleteResult struct {
	FlowToken string               `json:"flow_token"`
	Deleted   []store.DeleteRecord `json:"deleted"`
}

func (r DeleteResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Deleted %d entities (flow %s):", len(r.Deleted), r.FlowToken)
	for _, rec := range r.Deleted {
		fmt.Fprintf(&b, "\n  %s%s", strings.Repeat("  ", rec.Depth), rec.Ref)
	}
	return b.String()
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Delete an entity and its orphaned composite targets",
		Long: `Delete an entity. Targets of its composite reference fields that no
other entity references are deleted too, recursively, in one transaction.

Exit codes:
  0 - Deleted
  1 - Delete failed and was rolled back (hook error, quota exceeded)
  2 - Command error (unknown type, entity not found)

Example:
  composite delete --db ./site.db node 3
  composite delete --db ./site.db node 3 --max-deletes 50 --format json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runDelete(opts *RootOptions, entityType, id string, cmd *cobra.Command) error {
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

	token, err := e.dispatcher.Delete(cmd.Context(), target)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeDeleteFailed, fmt.Sprintf("delete %s failed, nothing was deleted", target.Ref()), err)
	}
	f.VerboseLog("flow token: %s", token)

	records, err := e.store.ReadDeleteLog(cmd.Context(), token)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeGeneric, "failed to read delete log", err)
	}
	return f.SuccessWithFlow(DeleteResult{FlowToken: token, Deleted: records}, token)
}
