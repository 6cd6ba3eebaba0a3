// Package foreach implements the fan-out task types `for-each-file` and
// `for-each-line-of-file`. Both compute their items up front and run their
// nested task list once per item on a bounded pool of workers.
package foreach

import (
	"github.com/specialistvlad/pipegrid/internal/registry"
	"github.com/specialistvlad/pipegrid/internal/task"
)

const (
	FileTypeID = "for-each-file"
	LineTypeID = "for-each-line-of-file"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers both fan-out task types.
func (m *Module) Register(r *registry.Registry) error {
	if err := r.Register(FileTypeID, func() task.Task { return &FileTask{} }); err != nil {
		return err
	}
	return r.Register(LineTypeID, func() task.Task { return &LineTask{} })
}
