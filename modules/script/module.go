// Package script implements the `script` task type: it writes the task's
// script to a private file and runs it as a subprocess.
package script

import (
	"github.com/specialistvlad/pipegrid/internal/registry"
	"github.com/specialistvlad/pipegrid/internal/task"
)

// TypeID is the task type this package registers.
const TypeID = "script"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the script task type.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(TypeID, func() task.Task { return &Task{} })
}
