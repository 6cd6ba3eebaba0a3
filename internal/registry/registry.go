package registry

import (
	"fmt"
	"slices"
	"sync"

	"github.com/specialistvlad/pipegrid/internal/pipeerr"
	"github.com/specialistvlad/pipegrid/internal/task"
)

// Module is the interface that all task modules implement to be registered.
type Module interface {
	Register(r *Registry) error
}

// Registry holds the task constructors of one application instance.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]task.Constructor
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{constructors: make(map[string]task.Constructor)}
}

// Register binds typeID to ctor.
func (r *Registry) Register(typeID string, ctor task.Constructor) error {
	if typeID == "" || ctor == nil {
		return pipeerr.Schemaf("task type registration requires an id and a constructor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[typeID]; exists {
		return fmt.Errorf("%w: '%s' is already registered", pipeerr.ErrDuplicateTaskType, typeID)
	}
	r.constructors[typeID] = ctor
	return nil
}

// Lookup returns the constructor for typeID.
func (r *Registry) Lookup(typeID string) (task.Constructor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ctor, ok := r.constructors[typeID]
	if !ok {
		return nil, fmt.Errorf("%w: '%s' (registered: %v)", pipeerr.ErrUnknownTaskType, typeID, r.typesLocked())
	}
	return ctor, nil
}

// New constructs a task of type typeID.
func (r *Registry) New(typeID string) (task.Task, error) {
	ctor, err := r.Lookup(typeID)
	if err != nil {
		return nil, err
	}
	return ctor(), nil
}

// Types returns the registered type ids, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.typesLocked()
}

func (r *Registry) typesLocked() []string {
	types := make([]string, 0, len(r.constructors))
	for id := range r.constructors {
		types = append(types, id)
	}
	slices.Sort(types)
	return types
}

// RegisterModules registers every module in order, stopping at the first
// error.
func (r *Registry) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.Register(r); err != nil {
			return fmt.Errorf("register module %T: %w", m, err)
		}
	}
	return nil
}
