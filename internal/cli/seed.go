package cli

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/composite/internal/ir"
)

// Fixture is a seed file: entities created in order, referencing earlier
// entries by name.
type Fixture struct {
	Entities []FixtureEntity `yaml:"entities"`
}

// FixtureEntity is one entity of a seed file.
type FixtureEntity struct {
	Name  string              `yaml:"name"`
	Type  string              `yaml:"type"`
	Label string              `yaml:"label,omitempty"`
	Refs  map[string][]string `yaml:"refs,omitempty"`
}

// SeededEntity reports a created entity.
type SeededEntity struct {
	Name string `json:"name"`
	Type string `json:"type"`
	ID   int64  `json:"id"`
	UUID string `json:"uuid"`
}

// SeedResult lists the created entities in creation order.
type SeedResult struct {
	Entities []SeededEntity `json:"entities"`
}

func (r SeedResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Created %d entities:", len(r.Entities))
	for _, e := range r.Entities {
		fmt.Fprintf(&b, "\n  %s = %s/%d", e.Name, e.Type, e.ID)
	}
	return b.String()
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixture.yaml>",
		Short: "Create entities from a fixture file",
		Long: `Create entities from a YAML fixture in one transaction per entity.

Fixture format:
  entities:
    - {name: R, type: node}
    - {name: N, type: node, refs: {ref: [R]}}

Example:
  composite seed --db ./site.db --specs ./specs fixture.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(rootOpts, args[0], cmd)
		},
	}
}

// LoadFixture reads a seed file, rejecting unknown fields.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}

	var fx Fixture
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}

	seen := make(map[string]bool)
	for i, e := range fx.Entities {
		if e.Name == "" || e.Type == "" {
			return nil, fmt.Errorf("entities[%d]: name and type are required", i)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("entities[%d]: duplicate name %q", i, e.Name)
		}
		seen[e.Name] = true
	}
	return &fx, nil
}

func runSeed(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	fx, err := LoadFixture(path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalid, "invalid fixture", err)
	}

	e, err := openEnv(opts, cmd)
	if err != nil {
		return report(f, ErrCodeGeneric, err)
	}
	defer e.Close()

	created := make(map[string]*ir.Entity)
	out := SeedResult{Entities: []SeededEntity{}}
	for _, fe := range fx.Entities {
		label := fe.Label
		if label == "" {
			label = fe.Name
		}
		ent := ir.NewEntity(fe.Type, label)

		fields := make([]string, 0, len(fe.Refs))
		for field := range fe.Refs {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			var items []ir.ReferenceItem
			for _, name := range fe.Refs[field] {
				target, ok := created[name]
				if !ok {
					return f.Fail(ExitCommandError, ErrCodeInvalid,
						fmt.Sprintf("%s.%s references %q before it is created", fe.Name, field, name), nil)
				}
				items = append(items, ir.ReferenceItem{TargetID: target.ID, TargetRevisionID: target.RevisionID})
			}
			ent.Set(field, items...)
		}

		if err := e.store.Create(cmd.Context(), ent); err != nil {
			return f.Fail(ExitFailure, ErrCodeGeneric, fmt.Sprintf("failed to create %s", fe.Name), err)
		}
		e.logger.Debug("entity created", "name", fe.Name, "entity", ent.Ref().String())

		created[fe.Name] = ent
		out.Entities = append(out.Entities, SeededEntity{Name: fe.Name, Type: ent.Type, ID: ent.ID, UUID: ent.UUID})
	}
	return f.Success(out)
}
