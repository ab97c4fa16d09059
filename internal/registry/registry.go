// Package registry is the canonical source of tool metadata and handler
// resolution. Descriptors are registered at startup, then the registry
// freezes; lookups after that point are lock-free reads in practice.
package registry

import (
	"context"
	"encoding/json"
	"regexp"
	"sync"

	"github.com/orahub/oracle-mcp/internal/capability"
	"github.com/orahub/oracle-mcp/internal/oraerr"
)

// Visibility controls whether a tool appears under public exposure.
type Visibility string

const (
	Public     Visibility = "public"
	Restricted Visibility = "restricted"
)

// Exposure is the process-wide filter applied by list and lookup.
type Exposure string

const (
	ExposePublic Exposure = "public"
	ExposeAll    Exposure = "all"
)

// Outcome is what a handler produces on success.
type Outcome struct {
	Data      any
	Warnings  []string
	Truncated bool
}

// Handler executes one tool call with already-validated arguments.
type Handler func(ctx context.Context, args map[string]any) (*Outcome, error)

// Descriptor is the immutable metadata for one tool. Descriptors are
// owned by the registry and shared read-only.
type Descriptor struct {
	Name        string
	Description string
	// Category groups tools for edition gating (core, analytics, ai,
	// security, performance, diagnostic).
	Category   string
	Visibility Visibility
	// InputSchema is the JSON Schema served verbatim by tools/list and
	// interpreted by the argument validator.
	InputSchema json.RawMessage
	// Requires lists capability tags checked before the handler runs.
	Requires []capability.Tag
	// Lenient drops unknown arguments with a warning instead of
	// rejecting the call.
	Lenient bool
	Handler Handler
}

// namePattern is the shape of a valid tool name.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// Registry holds descriptors in registration order.
type Registry struct {
	mu     sync.RWMutex
	order  []*Descriptor
	byName map[string]*Descriptor
	frozen bool
}

func New() *Registry {
	return &Registry{byName: make(map[string]*Descriptor)}
}

// Register adds a descriptor. It only succeeds before Freeze.
func (r *Registry) Register(d *Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return oraerr.New(oraerr.KindInternal, oraerr.CodeRegistryFrozen, "registry is frozen")
	}
	if !namePattern.MatchString(d.Name) {
		return oraerr.Validation(oraerr.CodeInvalidSchema, "tool name %q is invalid", d.Name)
	}
	if _, exists := r.byName[d.Name]; exists {
		return oraerr.Newf(oraerr.KindInternal, oraerr.CodeDuplicateTool, "tool %q registered twice", d.Name)
	}
	if err := checkSchema(d.InputSchema); err != nil {
		return err
	}
	for _, tag := range d.Requires {
		if !capability.KnownTags[tag] {
			return oraerr.Validation(oraerr.CodeInvalidSchema, "tool %q requires unknown capability %q", d.Name, tag)
		}
	}
	if d.Handler == nil {
		return oraerr.Newf(oraerr.KindInternal, oraerr.CodeInvalidSchema, "tool %q has no handler", d.Name)
	}
	if d.Visibility == "" {
		d.Visibility = Public
	}

	r.order = append(r.order, d)
	r.byName[d.Name] = d
	return nil
}

// Freeze ends the registration phase.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// List returns descriptors allowed by the exposure filter, in stable
// registration order.
func (r *Registry) List(exposure Exposure) []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Descriptor, 0, len(r.order))
	for _, d := range r.order {
		if exposure == ExposePublic && d.Visibility != Public {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Lookup resolves a tool by name under the exposure filter. A
// restricted tool under public exposure is indistinguishable from a
// missing one.
func (r *Registry) Lookup(name string, exposure Exposure) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byName[name]
	if !ok || (exposure == ExposePublic && d.Visibility != Public) {
		return nil, oraerr.Validation(oraerr.CodeUnknownTool, "unknown tool %q", name)
	}
	return d, nil
}

// Len reports the number of registered descriptors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// checkSchema requires a JSON Schema object with a type keyword.
func checkSchema(raw json.RawMessage) error {
	if len(raw) == 0 {
		return oraerr.Validation(oraerr.CodeInvalidSchema, "input schema is empty")
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return oraerr.Validation(oraerr.CodeInvalidSchema, "input schema is not a JSON object")
	}
	if t, ok := schema["type"].(string); !ok || t != "object" {
		return oraerr.Validation(oraerr.CodeInvalidSchema, `input schema must declare type "object"`)
	}
	return nil
}
