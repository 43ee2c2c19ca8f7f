// Package kpi re-executes the derived-view definitions after a committed
// load. Artifacts are plain SQL files run in lexicographic name order, so
// numbering the files is how dependencies between views are expressed.
package kpi

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// Artifact is one named SQL definition. Artifacts are idempotent view
// definitions, not deltas; re-running one is always safe.
type Artifact struct {
	Name string
	SQL  string
}

// Executor runs one statement outside any load transaction.
type Executor interface {
	Exec(ctx context.Context, query string) error
}

//go:embed artifacts/*.sql
var builtin embed.FS

// Default returns the artifact set shipped with the binary.
func Default() ([]Artifact, error) {
	sub, err := fs.Sub(builtin, "artifacts")
	if err != nil {
		return nil, err
	}
	return LoadArtifacts(sub)
}

// LoadArtifacts reads every .sql file at the root of fsys and returns them
// sorted by name. The sort happens here so callers can hand over any
// directory without caring about enumeration order.
func LoadArtifacts(fsys fs.FS) ([]Artifact, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read artifacts: %w", err)
	}

	var arts []Artifact
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		text, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read artifact %s: %w", e.Name(), err)
		}
		arts = append(arts, Artifact{Name: e.Name(), SQL: string(text)})
	}

	sort.Slice(arts, func(i, j int) bool { return arts[i].Name < arts[j].Name })
	return arts, nil
}

// Rebuild executes artifacts in order, stopping at the first failure. It
// returns the names that completed before the failure; on success that is
// every name. A failure here never unwinds the load that preceded it.
func Rebuild(ctx context.Context, ex Executor, artifacts []Artifact) ([]string, error) {
	completed := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		if err := ex.Exec(ctx, a.SQL); err != nil {
			return completed, fmt.Errorf("artifact %s: %w", a.Name, err)
		}
		completed = append(completed, a.Name)
	}
	return completed, nil
}
