package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mickamy/fabricator"
)

// Step is one fixture operation.
type Step struct {
	Op    string         `yaml:"op"` // create, update, remove or select
	Table string         `yaml:"table"`
	Data  map[string]any `yaml:"data"`
	Where any            `yaml:"where"`
}

// Fixture is an ordered list of steps applied inside one session.
type Fixture struct {
	Steps []Step `yaml:"steps"`
}

func loadFixture(path string) (Fixture, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}
	var fx Fixture
	if err := yaml.Unmarshal(b, &fx); err != nil {
		return Fixture{}, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	for i, s := range fx.Steps {
		if s.Table == "" {
			return Fixture{}, fmt.Errorf("step %d: table is required", i+1)
		}
		switch s.Op {
		case "create", "update", "remove", "select":
		default:
			return Fixture{}, fmt.Errorf("step %d: unknown op %q", i+1, s.Op)
		}
	}
	return fx, nil
}

func (fx Fixture) apply(ctx context.Context, f *fabricator.Fabricator, out io.Writer) error {
	for i, s := range fx.Steps {
		switch s.Op {
		case "create":
			id, err := f.Create(ctx, s.Table, s.Data)
			if err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
			_, _ = fmt.Fprintf(out, "created %s id=%v\n", s.Table, id)
		case "update":
			if err := f.Update(ctx, s.Table, s.Data, s.Where); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
			_, _ = fmt.Fprintf(out, "updated %s\n", s.Table)
		case "remove":
			if err := f.Remove(ctx, s.Table, s.Where); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
			_, _ = fmt.Fprintf(out, "removed from %s\n", s.Table)
		case "select":
			rows, err := f.Select(ctx, s.Table, nil, s.Where)
			if err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
			_, _ = fmt.Fprintf(out, "%s: %d row(s)\n", s.Table, len(rows))
			for _, r := range rows {
				_, _ = fmt.Fprintf(out, "  %v\n", r)
			}
		}
	}
	return nil
}
