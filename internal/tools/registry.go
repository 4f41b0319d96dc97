// Package tools provides the name-to-handler registry for locally executed functions.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when a tool name has no registered handler.
var ErrNotFound = errors.New("tool not registered")

// ErrInvalidArguments is returned when the argument payload is not a JSON object.
var ErrInvalidArguments = errors.New("invalid tool arguments")

// HandlerFunc executes a tool and returns the textual representation of its result.
type HandlerFunc func(ctx context.Context, args json.RawMessage) (string, error)

// Registry stores tool handlers keyed by tool name. It is safe for concurrent
// use; registration happens once at setup and lookups are read-only afterwards.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
	}
}

// Register adds a handler for a tool name.
func (r *Registry) Register(name string, handler HandlerFunc) error {
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if handler == nil {
		return fmt.Errorf("handler is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler already registered for %s", name)
	}
	r.handlers[name] = handler
	return nil
}

// MustRegister adds a handler or panics. Intended for setup-time wiring.
func (r *Registry) MustRegister(name string, handler HandlerFunc) {
	if err := r.Register(name, handler); err != nil {
		panic(err)
	}
}

// Execute runs the handler for the tool name against the given JSON arguments.
// An empty argument payload is treated as an empty object.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	r.mu.RLock()
	handler := r.handlers[name]
	r.mu.RUnlock()
	if handler == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	var shape map[string]json.RawMessage
	if err := json.Unmarshal(args, &shape); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	return handler(ctx, args)
}

// Names returns the registered tool names. Order is unspecified.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}
