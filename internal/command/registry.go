package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownCommand is returned for names the registry does not hold.
var ErrUnknownCommand = errors.New("unknown command")

// Handler runs a command with its single free-form argument.
type Handler func(ctx context.Context, arg string) (*Output, error)

// Completer proposes argument values for a partially typed argument.
type Completer func(ctx context.Context, arg string) ([]Completion, error)

// Completion is one suggested argument. Value is what the host should
// substitute for the argument.
type Completion struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Command is one entry of the dispatch table.
type Command struct {
	Name        string
	Description string
	// ArgHint describes the expected argument, e.g. "owner,repo,number".
	ArgHint string
	// ArgRequired is false when the command has a sensible default argument.
	ArgRequired bool
	Run         Handler
	// Complete is optional.
	Complete Completer
}

// Registry maps command names to handlers. Every host (CLI, MCP, HTTP)
// is generated from the same registry.
type Registry struct {
	commands map[string]Command
	order    []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds or replaces a command.
func (r *Registry) Register(c Command) {
	if _, exists := r.commands[c.Name]; !exists {
		r.order = append(r.order, c.Name)
	}
	r.commands[c.Name] = c
}

// Get returns the named command.
func (r *Registry) Get(name string) (Command, error) {
	c, ok := r.commands[name]
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	return c, nil
}

// Commands lists commands in registration order.
func (r *Registry) Commands() []Command {
	out := make([]Command, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.commands[name])
	}
	return out
}

// Names lists command names sorted alphabetically.
func (r *Registry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Run dispatches to the named command.
func (r *Registry) Run(ctx context.Context, name, arg string) (*Output, error) {
	c, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return c.Run(ctx, arg)
}

// Complete returns argument completions for the named command. Commands
// without a completer yield none.
func (r *Registry) Complete(ctx context.Context, name, arg string) ([]Completion, error) {
	c, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if c.Complete == nil {
		return []Completion{}, nil
	}
	return c.Complete(ctx, arg)
}
