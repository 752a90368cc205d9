// Package tools implements the Tool Registry: declarative descriptors the
// Agent Loop binds per-agent and dispatches through. Tools here are
// in-process Go callables, so there is no remote transport, no server
// identity, and no "list tools on every connection" handshake to manage.
// Only the dispatch contract (name, schema, parallel-safe flag, executor)
// is in scope; tool bodies are intentionally thin.
package tools

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
)

// Executor is the callable bound to a tool name. It receives the parsed
// JSON input and a Context giving a tool body read access to Pipeline
// State, a mutable per-agent scratchpad, an emit function, a
// gate-suspension function, and the cancellation signal.
type Executor func(ctx context.Context, tc *Context, input map[string]any) (map[string]any, error)

// Descriptor is one immutable tool declaration. A given name is bound to
// at most one Executor within a Registry.
type Descriptor struct {
	Name         string
	Description  string
	InputSchema  map[string]any // JSON Schema, advertised to the model
	ParallelSafe bool           // default false: run sequentially unless set
	Executor     Executor
}

// interactiveNamePattern matches tool names exempt from the Agent Loop's
// per-round timeout: interview, present_to_user, and questionnaire tools,
// whose expected duration is human response time, not model latency. They
// remain bound by the overall pipeline timeout.
var interactiveNamePattern = regexp.MustCompile(`interview|present_to_user|questionnaire`)

// IsInteractive reports whether a tool name is exempt from the per-round
// timeout.
func IsInteractive(name string) bool {
	return interactiveNamePattern.MatchString(name)
}

// Registry is an immutable, assembled-once set of tool descriptors. It is
// built at Coordinator start-up and shared read-only across all sessions;
// per-agent tool sets are chosen by name, not by mutating the registry.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]*Descriptor
}

// NewRegistry creates an empty registry. Callers assemble it with Register
// before first use; once agents start dispatching through it, registration
// of new names is still safe (each name is independent), but replacing an
// existing executor is not supported — that would change behavior for
// in-flight agents holding a reference to the old descriptor's identity.
func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[string]*Descriptor)}
}

// Register binds a tool name to an executor. Returns an error if the name
// is already bound.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("tools: descriptor name must not be empty")
	}
	if d.Executor == nil {
		return fmt.Errorf("tools: descriptor %q has no executor", d.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.descriptors[d.Name]; exists {
		return fmt.Errorf("tools: %q is already registered", d.Name)
	}
	dd := d
	r.descriptors[d.Name] = &dd
	return nil
}

// MustRegister panics on a registration error. Used at start-up where a
// duplicate or malformed descriptor is a programming error, not a runtime
// condition to recover from.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Get returns the descriptor bound to name, or ok=false.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[name]
	return d, ok
}

// Bind resolves a fixed list of tool names into their descriptors, in the
// order given, for use as one agent's tool set. Unknown names are reported
// as an error rather than silently skipped — a stage config naming a tool
// that doesn't exist is a configuration bug, not a runtime degradation.
func (r *Registry) Bind(names []string) ([]*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, 0, len(names))
	for _, name := range names {
		d, ok := r.descriptors[name]
		if !ok {
			return nil, fmt.Errorf("tools: unknown tool %q", name)
		}
		out = append(out, d)
	}
	return out, nil
}

// Names returns every registered tool name, sorted, for diagnostics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.descriptors))
	for n := range r.descriptors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
