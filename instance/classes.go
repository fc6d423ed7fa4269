// Package instance manages named, stateful handler instances (kernels,
// assistants) that the host addresses by opaque string ids.
//
// A Classes table maps a type name to its constructor and is fixed at plugin
// construction. A Registry creates instances from those classes, hands out
// ids of the form "{className}-{uuid}", and owns every instance until it is
// stopped or the registry is closed.
package instance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrClassNotFound is returned by Start for a class name that was never registered.
	ErrClassNotFound = errors.New("instance: class not found")
	// ErrInstanceNotFound is returned for ids that are unknown or already stopped.
	ErrInstanceNotFound = errors.New("instance: not found")
)

// Instance is the lifecycle contract every managed handler satisfies.
type Instance interface {
	OnStart(ctx context.Context) error
	OnStop(ctx context.Context) error
}

// Constructor builds a new instance. id is the identifier the registry will
// hand to the host; args are the raw constructor arguments, possibly empty.
type Constructor[T Instance] func(id string, args []json.RawMessage) (T, error)

// Class pairs a human-readable type name with its constructor.
type Class[T Instance] struct {
	Name string
	New  Constructor[T]
}

// Classes is an immutable, insertion-ordered table of classes.
type Classes[T Instance] struct {
	order  []string
	byName map[string]Class[T]
}

// NewClasses builds a class table. Empty or duplicate names and nil
// constructors are rejected.
func NewClasses[T Instance](classes ...Class[T]) (*Classes[T], error) {
	c := &Classes[T]{
		order:  make([]string, 0, len(classes)),
		byName: make(map[string]Class[T], len(classes)),
	}
	for _, class := range classes {
		if class.Name == "" {
			return nil, errors.New("instance: class with empty name")
		}
		if class.New == nil {
			return nil, fmt.Errorf("instance: class %q has no constructor", class.Name)
		}
		if _, exists := c.byName[class.Name]; exists {
			return nil, fmt.Errorf("instance: duplicate class %q", class.Name)
		}
		c.order = append(c.order, class.Name)
		c.byName[class.Name] = class
	}
	return c, nil
}

// Lookup returns the class registered under name.
func (c *Classes[T]) Lookup(name string) (Class[T], bool) {
	class, ok := c.byName[name]
	return class, ok
}

// Names returns the class names in registration order.
func (c *Classes[T]) Names() []string {
	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

func (c *Classes[T]) Len() int {
	return len(c.order)
}
