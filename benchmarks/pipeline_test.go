// Package benchmarks measures pipeline construction and execution.
package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/smartdoc-labs/smartdoc/pkg/pipeline"
)

type benchState struct {
	Value int
	Route string
}

func incr(_ pipeline.Context, s benchState) (benchState, error) {
	s.Value++
	return s, nil
}

// BenchmarkCompile_Linear measures compiling a 10-stage linear pipeline.
func BenchmarkCompile_Linear(b *testing.B) {
	for i := 0; i < b.N; i++ {
		g := pipeline.New[benchState]()
		for n := 0; n < 10; n++ {
			g.AddStage(fmt.Sprintf("stage%d", n), incr)
		}
		for n := 0; n < 9; n++ {
			g.AddEdge(fmt.Sprintf("stage%d", n), fmt.Sprintf("stage%d", n+1))
		}
		g.AddEdge("stage9", pipeline.END).SetEntry("stage0")

		if _, err := g.Compile(); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRun_Linear measures executing a 10-stage linear pipeline.
func BenchmarkRun_Linear(b *testing.B) {
	g := pipeline.New[benchState]()
	for n := 0; n < 10; n++ {
		g.AddStage(fmt.Sprintf("stage%d", n), incr)
	}
	for n := 0; n < 9; n++ {
		g.AddEdge(fmt.Sprintf("stage%d", n), fmt.Sprintf("stage%d", n+1))
	}
	g.AddEdge("stage9", pipeline.END).SetEntry("stage0")

	p, err := g.Compile()
	if err != nil {
		b.Fatal(err)
	}

	ctx := pipeline.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Run(ctx, benchState{}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRun_Branch measures executing through a branch table.
func BenchmarkRun_Branch(b *testing.B) {
	p, err := pipeline.New[benchState]().
		AddStage("start", incr).
		AddStage("left", incr).
		AddStage("right", incr).
		AddBranch("start", pipeline.Branch[benchState]{
			Key:     func(s benchState) string { return s.Route },
			Targets: map[string]string{"l": "left", "r": "right"},
			Default: "right",
		}).
		AddEdge("left", pipeline.END).
		AddEdge("right", pipeline.END).
		SetEntry("start").
		Compile()
	if err != nil {
		b.Fatal(err)
	}

	ctx := pipeline.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Run(ctx, benchState{Route: "l"}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRun_FailForward measures execution cost with a fault handler
// absorbing one failing stage per run.
func BenchmarkRun_FailForward(b *testing.B) {
	fail := func(_ pipeline.Context, s benchState) (benchState, error) {
		return s, fmt.Errorf("synthetic fault")
	}

	p, err := pipeline.New[benchState]().
		AddStage("ok", incr).
		AddStage("fail", fail).
		AddStage("after", incr).
		AddEdge("ok", "fail").
		AddEdge("fail", "after").
		AddEdge("after", pipeline.END).
		SetEntry("ok").
		OnFault(func(s benchState, _ string, _ error) benchState { return s }).
		Compile()
	if err != nil {
		b.Fatal(err)
	}

	ctx := pipeline.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Run(ctx, benchState{}); err != nil {
			b.Fatal(err)
		}
	}
}
