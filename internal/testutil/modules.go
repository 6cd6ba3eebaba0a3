package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/specialistvlad/pipegrid/internal/pipeerr"
	"github.com/specialistvlad/pipegrid/internal/registry"
	"github.com/specialistvlad/pipegrid/internal/schema"
	"github.com/specialistvlad/pipegrid/internal/task"
)

// SimpleModule registers a single task type.
type SimpleModule struct {
	TypeID string
	New    task.Constructor
}

// Register implements the registry.Module interface.
func (m *SimpleModule) Register(r *registry.Registry) error {
	return r.Register(m.TypeID, m.New)
}

// ExecutionRecord holds the start and end times of one task execution.
type ExecutionRecord struct {
	Start time.Time
	End   time.Time
}

// MockSleeperModule registers the `sleeper` task type, which sleeps for a
// fixed duration and records when each id ran. An id listed in FailIDs
// fails after sleeping.
type MockSleeperModule struct {
	mu             sync.Mutex
	ExecutionTimes map[string]ExecutionRecord
	Order          []string
	FailIDs        map[string]bool

	sleep      time.Duration
	completion chan<- string
}

// NewMockSleeperModule creates a sleeper module. completion, when non-nil,
// receives every finished id and must be buffered.
func NewMockSleeperModule(completion chan<- string, sleep time.Duration) *MockSleeperModule {
	return &MockSleeperModule{
		ExecutionTimes: make(map[string]ExecutionRecord),
		FailIDs:        make(map[string]bool),
		sleep:          sleep,
		completion:     completion,
	}
}

// Register implements the registry.Module interface.
func (m *MockSleeperModule) Register(r *registry.Registry) error {
	return r.Register("sleeper", func() task.Task { return &sleeperTask{m: m} })
}

// IDs returns the recorded ids in completion order.
func (m *MockSleeperModule) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Order...)
}

type sleeperTask struct{ m *MockSleeperModule }

func (s *sleeperTask) Schema() schema.Schema {
	return schema.Schema{{Name: "id", Required: true, Coerce: schema.String}}
}

func (s *sleeperTask) Run(ctx context.Context, in schema.Inputs, rc *task.RunContext) error {
	id := in.String("id")
	start := time.Now()
	time.Sleep(s.m.sleep)
	end := time.Now()

	s.m.mu.Lock()
	s.m.ExecutionTimes[id] = ExecutionRecord{Start: start, End: end}
	s.m.Order = append(s.m.Order, id)
	fail := s.m.FailIDs[id]
	s.m.mu.Unlock()

	if s.m.completion != nil {
		s.m.completion <- id
	}
	if fail {
		return pipeerr.Runtimef("sleeper '%s' failed", id)
	}
	return nil
}
