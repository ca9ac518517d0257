// Package commandtest provides a scriptable command.Runner for tests.
package commandtest

import (
	"context"
	"strings"
	"sync"

	"github.com/plexsphere/meshcfg/internal/command"
)

// Handler produces the outcome of a matched invocation.
type Handler func(spec command.Spec) (command.Result, error)

type rule struct {
	prefix  string
	handler Handler
}

// FakeRunner records every Spec it receives and answers from rules matched by
// argv prefix. The longest matching prefix wins; unmatched commands succeed
// with empty output.
type FakeRunner struct {
	mu    sync.Mutex
	calls []command.Spec
	rules []rule
}

// New returns an empty FakeRunner.
func New() *FakeRunner {
	return &FakeRunner{}
}

// On answers commands whose argv starts with prefix (space-separated) with res.
func (f *FakeRunner) On(prefix string, res command.Result) *FakeRunner {
	return f.OnFunc(prefix, func(command.Spec) (command.Result, error) { return res, nil })
}

// OnFunc answers commands whose argv starts with prefix using fn.
func (f *FakeRunner) OnFunc(prefix string, fn Handler) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{prefix: prefix, handler: fn})
	return f
}

// OnSequence answers successive matching calls with results in order,
// repeating the last one once exhausted.
func (f *FakeRunner) OnSequence(prefix string, results ...command.Result) *FakeRunner {
	var mu sync.Mutex
	n := 0
	return f.OnFunc(prefix, func(command.Spec) (command.Result, error) {
		mu.Lock()
		defer mu.Unlock()
		res := results[min(n, len(results)-1)]
		n++
		return res, nil
	})
}

// Run implements command.Runner.
func (f *FakeRunner) Run(_ context.Context, spec command.Spec) (command.Result, error) {
	line := spec.String()

	f.mu.Lock()
	f.calls = append(f.calls, spec)
	var match *rule
	for i := range f.rules {
		r := &f.rules[i]
		if !hasPrefix(line, r.prefix) {
			continue
		}
		if match == nil || len(r.prefix) >= len(match.prefix) {
			match = r
		}
	}
	f.mu.Unlock()

	if match == nil {
		return command.Result{Argv: spec.Argv}, nil
	}
	res, err := match.handler(spec)
	if res.Argv == nil {
		res.Argv = spec.Argv
	}
	return res, err
}

// Calls returns a copy of every Spec received so far.
func (f *FakeRunner) Calls() []command.Spec {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]command.Spec, len(f.calls))
	copy(cp, f.calls)
	return cp
}

// Count returns how many received commands start with prefix.
func (f *FakeRunner) Count(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if hasPrefix(c.String(), prefix) {
			n++
		}
	}
	return n
}

// Find returns the first received Spec starting with prefix.
func (f *FakeRunner) Find(prefix string) (command.Spec, bool) {
	for _, c := range f.Calls() {
		if hasPrefix(c.String(), prefix) {
			return c, true
		}
	}
	return command.Spec{}, false
}

func hasPrefix(line, prefix string) bool {
	return line == prefix || strings.HasPrefix(line, prefix+" ")
}

// Exit is a shorthand for a completed result with the given code and output.
func Exit(code int, stdout, stderr string) command.Result {
	return command.Result{ExitCode: code, Stdout: stdout, Stderr: stderr}
}
