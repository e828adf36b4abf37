// Package functions holds the work functions a worker process can run.
package functions

import (
	"errors"
	"sort"
	"sync"

	"github.com/lambda-feedback/isolate/internal/execution/harness"
)

var ErrUnknownFunction = errors.New("unknown function")

// Entry is a work function with its types erased.
type Entry struct {
	run  func(args []string, opts ...harness.Option) int
	main func(args []string, opts ...harness.Option)
}

// Define erases the types of a work function.
func Define[I, O any](fn harness.WorkFunc[I, O]) Entry {
	return Entry{
		run: func(args []string, opts ...harness.Option) int {
			return harness.Run(args, fn, opts...)
		},
		main: func(args []string, opts ...harness.Option) {
			harness.RunEntry(args, fn, opts...)
		},
	}
}

// Run runs the function in the worker harness and returns the exit code.
func (e Entry) Run(args []string, opts ...harness.Option) int {
	return e.run(args, opts...)
}

// Main runs the function in the worker harness and ends the process.
func (e Entry) Main(args []string, opts ...harness.Option) {
	e.main(args, opts...)
}

type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Entry),
	}
}

// Register adds an entry, replacing any entry with the same name.
func (r *Registry) Register(name string, entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[name] = entry
}

func (r *Registry) Lookup(name string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	if !ok {
		return Entry{}, ErrUnknownFunction
	}

	return entry, nil
}

func (r *Registry) Has(name string) bool {
	_, err := r.Lookup(name)
	return err == nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
