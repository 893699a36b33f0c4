// Package registry holds the catalog of tool descriptors exposed to
// protocol clients. Tools register once at startup; after that the registry
// is read-only and safe for concurrent lookups without locking. Listing and
// resolution are gated by feature flags from the effective configuration.
package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/probekit/probekit/internal/common/apperrors"
	"github.com/probekit/probekit/internal/probekit/config"
)

// Category classifies a tool for feature gating and client display.
type Category string

const (
	CategoryBrowser Category = "browser"
	CategoryAPI     Category = "api"
	CategoryFile    Category = "file"
	CategoryNetwork Category = "network"
	CategoryOther   Category = "other"
)

// Handler executes a tool call with schema-validated arguments.
// Implementations return a JSON-serializable result or an application error.
type Handler interface {
	Invoke(ctx context.Context, args json.RawMessage) (any, apperrors.Error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, args json.RawMessage) (any, apperrors.Error)

// Invoke implements Handler.
func (f HandlerFunc) Invoke(ctx context.Context, args json.RawMessage) (any, apperrors.Error) {
	return f(ctx, args)
}

// Descriptor describes one registered tool.
type Descriptor struct {
	Name            string          // unique, case-sensitive key
	Description     string          // human-readable summary for tools/list
	Category        Category        // tool family
	InputSchema     json.RawMessage // JSON Schema for call arguments; nil accepts anything
	RequiredFeature string          // feature flag gating the tool; empty means ungated
	Handler         Handler         // invocation target

	compiled *compiledSchema
}

// Registry is the ordered catalog of tool descriptors. Registration order is
// preserved so client-visible tool listings are deterministic.
type Registry struct {
	order  []*Descriptor
	byName map[string]*Descriptor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byName: make(map[string]*Descriptor),
	}
}

// Register adds a descriptor to the catalog. Fails with ErrDuplicateTool if
// the name is already present and ErrInvalidDescriptor if the input schema
// does not compile. Registration happens at startup only; errors are fatal.
func (r *Registry) Register(d Descriptor) apperrors.Error {
	if d.Name == "" {
		return ErrInvalidDescriptor.Msg("tool name is required")
	}
	if d.Handler == nil {
		return ErrInvalidDescriptor.Msg(fmt.Sprintf("tool %q has no handler", d.Name))
	}
	if _, exists := r.byName[d.Name]; exists {
		return ErrDuplicateTool.Msg(fmt.Sprintf("tool %q already registered", d.Name))
	}
	if len(d.InputSchema) > 0 {
		cs, err := compileSchema(d.Name, d.InputSchema)
		if err != nil {
			return ErrInvalidDescriptor.MsgErr(fmt.Sprintf("tool %q input schema", d.Name), err)
		}
		d.compiled = cs
	}
	desc := &d
	r.order = append(r.order, desc)
	r.byName[d.Name] = desc
	return nil
}

// List returns the descriptors whose required feature flag is enabled in the
// given configuration, in registration order.
func (r *Registry) List(cfg *config.EffectiveConfig) []*Descriptor {
	out := make([]*Descriptor, 0, len(r.order))
	for _, d := range r.order {
		if cfg.FeatureEnabled(d.RequiredFeature) {
			out = append(out, d)
		}
	}
	return out
}

// Resolve looks up a tool by exact name under the given configuration.
// Returns ErrToolNotFound for unknown names and ErrToolDisabled for tools
// whose feature flag is off.
func (r *Registry) Resolve(name string, cfg *config.EffectiveConfig) (*Descriptor, apperrors.Error) {
	d, exists := r.byName[name]
	if !exists {
		return nil, ErrToolNotFound.Msg(fmt.Sprintf("tool not found: %s", name))
	}
	if !cfg.FeatureEnabled(d.RequiredFeature) {
		return nil, ErrToolDisabled.Msg(fmt.Sprintf("tool disabled: %s (requires %s)", name, d.RequiredFeature))
	}
	return d, nil
}

// ValidateArguments checks call arguments against the descriptor's input
// schema. The returned error names the violated constraint.
func (d *Descriptor) ValidateArguments(args json.RawMessage) apperrors.Error {
	if d.compiled == nil {
		return nil
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if err := d.compiled.validate(args); err != nil {
		return ErrInvalidArguments.Msg(fmt.Sprintf("tool %s: %s", d.Name, err.Error()))
	}
	return nil
}
