package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
)

// Compile validates the graph and creates an executable Pipeline.
// Returns an error if validation fails. Multiple errors are joined together.
//
// Validation checks (in order):
//  1. Entry point must be set
//  2. Entry point must reference an existing stage
//  3. All edge sources must reference existing stages
//  4. All edge targets must reference existing stages or END
//  5. All branch targets and defaults must reference existing stages or END
//  6. All stages must have a path to END
//
// Unreachable stages (not reachable from entry) are logged as warnings
// but do not cause compilation to fail.
func (g *Graph[S]) Compile() (*Pipeline[S], error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error

	// 1. Validate entry point is set
	if g.entryPoint == "" {
		errs = append(errs, ErrNoEntryPoint)
	} else if _, exists := g.stages[g.entryPoint]; !exists {
		// 2. Validate entry point references existing stage
		errs = append(errs, fmt.Errorf("%w: %s", ErrEntryNotFound, g.entryPoint))
	}

	// 3 & 4. Validate edge references
	for from, targets := range g.edges {
		if from != END {
			if _, exists := g.stages[from]; !exists {
				errs = append(errs, fmt.Errorf("%w: edge source '%s' does not exist", ErrStageNotFound, from))
			}
		}

		for _, to := range targets {
			if to != END {
				if _, exists := g.stages[to]; !exists {
					errs = append(errs, fmt.Errorf("%w: edge target '%s' does not exist", ErrStageNotFound, to))
				}
			}
		}
	}

	// 5. Validate branch references; the table must be usable without ever
	// raising past the executor, so every target and the default are checked.
	for from, branch := range g.branches {
		if _, exists := g.stages[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: branch source '%s' does not exist", ErrStageNotFound, from))
		}
		for value, to := range branch.Targets {
			if to != END {
				if _, exists := g.stages[to]; !exists {
					errs = append(errs, fmt.Errorf("%w: branch target '%s' (value %q) does not exist", ErrStageNotFound, to, value))
				}
			}
		}
		if branch.Default != END {
			if _, exists := g.stages[branch.Default]; !exists {
				errs = append(errs, fmt.Errorf("%w: branch default '%s' does not exist", ErrStageNotFound, branch.Default))
			}
		}
	}

	// 6. Validate path to END exists from entry
	if g.entryPoint != "" {
		if _, exists := g.stages[g.entryPoint]; exists {
			if !g.hasPathToEnd() {
				errs = append(errs, ErrNoPathToEnd)
			}
		}
	}

	// Check for unreachable stages (warning only)
	g.warnUnreachableStages()

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return g.buildPipeline(), nil
}

// hasPathToEnd checks if there's a path from entry to END.
// This uses a simple reachability analysis over both simple edges and
// branch tables (whose targets are statically known).
func (g *Graph[S]) hasPathToEnd() bool {
	canReachEnd := make(map[string]bool)
	canReachEnd[END] = true

	// Keep propagating until no changes
	changed := true
	for changed {
		changed = false

		for from, targets := range g.edges {
			if canReachEnd[from] {
				continue
			}
			for _, to := range targets {
				if canReachEnd[to] {
					canReachEnd[from] = true
					changed = true
					break
				}
			}
		}

		for from, branch := range g.branches {
			if canReachEnd[from] {
				continue
			}
			if canReachEnd[branch.Default] {
				canReachEnd[from] = true
				changed = true
				continue
			}
			for _, to := range branch.Targets {
				if canReachEnd[to] {
					canReachEnd[from] = true
					changed = true
					break
				}
			}
		}
	}

	return canReachEnd[g.entryPoint]
}

// warnUnreachableStages logs warnings for stages not reachable from entry.
func (g *Graph[S]) warnUnreachableStages() {
	if g.entryPoint == "" {
		return
	}

	reachable := g.findReachableStages()

	for stageID := range g.stages {
		if !reachable[stageID] {
			slog.Warn("stage is unreachable from entry", "stage_id", stageID)
		}
	}
}

// findReachableStages returns the set of stages reachable from the entry point.
// Branch targets are statically known, so reachability is exact.
func (g *Graph[S]) findReachableStages() map[string]bool {
	reachable := make(map[string]bool)

	if g.entryPoint == "" {
		return reachable
	}

	// BFS from entry
	queue := []string{g.entryPoint}
	reachable[g.entryPoint] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		visit := func(target string) {
			if target != END && !reachable[target] {
				reachable[target] = true
				queue = append(queue, target)
			}
		}

		if branch, hasBranch := g.branches[current]; hasBranch {
			for _, target := range branch.Targets {
				visit(target)
			}
			visit(branch.Default)
			continue
		}

		for _, target := range g.edges[current] {
			visit(target)
		}
	}

	return reachable
}

// buildPipeline creates the immutable Pipeline from the builder state.
func (g *Graph[S]) buildPipeline() *Pipeline[S] {
	stages := make(map[string]StageFunc[S], len(g.stages))
	for id, fn := range g.stages {
		stages[id] = fn
	}

	edges := make(map[string][]string, len(g.edges))
	for from, targets := range g.edges {
		edges[from] = make([]string, len(targets))
		copy(edges[from], targets)
	}

	branches := make(map[string]Branch[S], len(g.branches))
	for from, branch := range g.branches {
		targets := make(map[string]string, len(branch.Targets))
		for value, to := range branch.Targets {
			targets[value] = to
		}
		branches[from] = Branch[S]{Key: branch.Key, Targets: targets, Default: branch.Default}
	}

	return &Pipeline[S]{
		stages:       stages,
		edges:        edges,
		branches:     branches,
		entryPoint:   g.entryPoint,
		faultHandler: g.faultHandler,
	}
}
