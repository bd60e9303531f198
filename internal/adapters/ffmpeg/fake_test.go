package ffmpeg

import (
	"context"
	"errors"
	"os"
	"sync"

	"reelmerge/internal/core/ports"
)

var errFake = errors.New("fake failure")

// fakeRunner records operations and emulates the success predicate by
// writing op.Output for operations that are not listed in fail.
type fakeRunner struct {
	mu     sync.Mutex
	ops    []ports.Operation
	fail   map[string]bool
	stdout string
	lists  map[string]string // concat list contents captured at run time
}

func (r *fakeRunner) Run(_ context.Context, op ports.Operation) (*ports.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)

	if op.Name == "concat" {
		for i, a := range op.Args {
			if a == "-i" && i+1 < len(op.Args) {
				data, _ := os.ReadFile(op.Args[i+1])
				if r.lists == nil {
					r.lists = map[string]string{}
				}
				r.lists[op.Output] = string(data)
			}
		}
	}

	if r.fail[op.Name] {
		return &ports.Result{ExitCode: 1}, errFake
	}
	if op.Output != "" {
		if err := os.WriteFile(op.Output, []byte(op.Name), 0o644); err != nil {
			return nil, err
		}
	}
	return &ports.Result{Stdout: r.stdout}, nil
}

func (r *fakeRunner) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ops))
	for i, op := range r.ops {
		out[i] = op.Name
	}
	return out
}

func (r *fakeRunner) op(name string) (ports.Operation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, op := range r.ops {
		if op.Name == name {
			return op, true
		}
	}
	return ports.Operation{}, false
}

type fakeProber map[string]float64

func (p fakeProber) Duration(_ context.Context, path string) float64 {
	return p[path]
}
