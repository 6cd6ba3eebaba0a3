package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/pipegrid/internal/checkpoint"
	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/inmemorycheckpoint"
	"github.com/specialistvlad/pipegrid/internal/metrics"
	"github.com/specialistvlad/pipegrid/internal/pipeerr"
	"github.com/specialistvlad/pipegrid/internal/registry"
	"github.com/specialistvlad/pipegrid/internal/schema"
	"github.com/specialistvlad/pipegrid/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// call is one recorded task execution.
type call struct {
	Name    string
	Message string
	Extra   map[string]any
}

// recorder collects calls and fails the tasks named in failOn.
type recorder struct {
	mu     sync.Mutex
	calls  []call
	failOn map[string]bool
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.Name)
	}
	return out
}

type recordTask struct{ rec *recorder }

func (t *recordTask) Schema() schema.Schema {
	return schema.Schema{{Name: "message", Default: ""}}
}

func (t *recordTask) Run(ctx context.Context, in schema.Inputs, rc *task.RunContext) error {
	t.rec.mu.Lock()
	defer t.rec.mu.Unlock()
	t.rec.calls = append(t.rec.calls, call{Name: rc.TaskName, Message: in.String("message"), Extra: rc.Extra})
	if t.rec.failOn[rc.TaskName] {
		return pipeerr.Runtimef("%s failed", rc.TaskName)
	}
	return nil
}

// groupTask dispatches its nested list once per item, sequentially.
type groupTask struct{}

func (groupTask) Schema() schema.Schema {
	return schema.Schema{
		{Name: "items", Coerce: schema.StringList, Default: []string{}},
		{Name: "tasks", Literal: true, Required: true},
	}
}

func (groupTask) NestedTasks(raw map[string]any) ([]config.TaskSpec, error) {
	return config.TaskSpecsFromValue(raw["tasks"])
}

func (g groupTask) Run(ctx context.Context, in schema.Inputs, rc *task.RunContext) error {
	specs, err := g.NestedTasks(in)
	if err != nil {
		return err
	}
	for _, item := range in.Strings("items") {
		for _, spec := range specs {
			if err := rc.Dispatch(ctx, spec, rc.WithExtra(map[string]any{"item": item})); err != nil {
				return err
			}
		}
	}
	return nil
}

type fixture struct {
	rec   *recorder
	reg   *registry.Registry
	store *inmemorycheckpoint.Store
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		rec:   &recorder{failOn: map[string]bool{}},
		reg:   registry.New(),
		store: inmemorycheckpoint.New(),
		now:   time.Date(2025, 5, 5, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.reg.Register("record", func() task.Task { return &recordTask{rec: f.rec} }))
	require.NoError(t, f.reg.Register("group", func() task.Task { return groupTask{} }))
	return f
}

func (f *fixture) deps(policy ResumePolicy) Deps {
	f.now = f.now.Add(time.Minute)
	now := f.now
	return Deps{
		Registry:            f.reg,
		Store:               f.store,
		ContinueFromLastRun: true,
		ResumePolicy:        policy,
		Metrics:             metrics.New(),
		Now:                 func() time.Time { return now },
	}
}

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.DiscardHandler))
}

func doc(useSnapshots any, tasks ...config.TaskSpec) *config.Pipeline {
	return &config.Pipeline{
		Settings: config.Settings{Name: "demo-${{parameters.env}}", UseSnapshots: useSnapshots},
		Parameters: []config.ParameterSpec{
			{Name: "env", Default: "dev", AllowedValues: []any{"dev", "prod"}},
			{Name: "greeting", Default: "hello ${{parameters.env}}"},
		},
		Tasks: tasks,
	}
}

func rec(name string, inputs map[string]any) config.TaskSpec {
	if inputs == nil {
		inputs = map[string]any{}
	}
	return config.TaskSpec{Type: "record", Name: name, Inputs: inputs}
}

func TestController_RunsTasksInOrderWithTemplating(t *testing.T) {
	f := newFixture(t)
	ctx := testContext()

	c, err := New(ctx, doc(true,
		rec("first ${{parameters.env}}", map[string]any{"message": "${{parameters.greeting}}"}),
		rec("second", nil),
	), map[string]any{"env": "prod"}, f.deps(RerunAll))
	require.NoError(t, err)
	assert.Equal(t, StateRunIdentityBound, c.State())
	assert.Equal(t, "demo-prod", c.Options().PipelineName)

	require.NoError(t, c.Run(ctx))
	assert.Equal(t, StateCompleted, c.State())
	assert.True(t, c.Options().Completed())

	assert.Equal(t, []string{"first prod", "second"}, f.rec.names())
	assert.Equal(t, "hello prod", f.rec.calls[0].Message)

	stored, err := f.store.FindLatest(ctx, "demo-prod")
	require.NoError(t, err)
	assert.True(t, stored.IsCompleted)
	assert.Len(t, stored.CompletedTasks, 2)

	assert.Error(t, c.Run(ctx), "a controller runs once")
}

func TestController_LoadErrorsHappenBeforeSideEffects(t *testing.T) {
	testCases := []struct {
		name      string
		doc       *config.Pipeline
		overrides map[string]any
		want      error
	}{
		{
			name: "unknown task type",
			doc:  doc(nil, rec("ok", nil), config.TaskSpec{Type: "nope", Name: "bad", Inputs: map[string]any{}}),
			want: pipeerr.ErrUnknownTaskType,
		},
		{
			name: "unknown nested task type",
			doc: doc(nil, config.TaskSpec{Type: "group", Name: "g", Inputs: map[string]any{
				"tasks": []any{map[string]any{"task": "nope", "name": "inner"}},
			}}),
			want: pipeerr.ErrUnknownTaskType,
		},
		{
			name:      "unknown parameter override",
			doc:       doc(nil, rec("ok", nil)),
			overrides: map[string]any{"missing": "x"},
			want:      pipeerr.ErrUnknownParameter,
		},
		{
			name:      "override outside allowed values",
			doc:       doc(nil, rec("ok", nil)),
			overrides: map[string]any{"env": "staging"},
			want:      pipeerr.ErrNotAllowed,
		},
		{
			name: "invalid use-snapshots",
			doc:  doc("sometimes", rec("ok", nil)),
			want: pipeerr.ErrInvalidInputType,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := New(testContext(), tc.doc, tc.overrides, f.deps(RerunAll))
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, f.rec.names(), "no task ran")
			assert.Equal(t, 0, f.store.Len(), "no checkpoint was created")
		})
	}
}

func TestController_InvalidInputFailsBeforeTaskRuns(t *testing.T) {
	testCases := []struct {
		name  string
		tasks []config.TaskSpec
	}{
		{
			name:  "top level",
			tasks: []config.TaskSpec{rec("side-effect", nil), rec("bad", map[string]any{"bogus": 1})},
		},
		{
			name: "nested",
			tasks: []config.TaskSpec{
				rec("side-effect", nil),
				{Type: "group", Name: "fan", Inputs: map[string]any{
					"items": []any{"x", "y"},
					"tasks": []any{
						map[string]any{"task": "record", "name": "inner-ok"},
						map[string]any{"task": "record", "name": "inner-bad", "inputs": map[string]any{"bogus": 1}},
					},
				}},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := New(testContext(), doc(nil, tc.tasks...), nil, f.deps(RerunAll))
			require.Error(t, err)
			assert.ErrorIs(t, err, pipeerr.ErrUnknownInput)
			assert.Contains(t, err.Error(), "bogus")
			assert.Empty(t, f.rec.names(), "no task ran")
			assert.Equal(t, 0, f.store.Len(), "no checkpoint was created")
		})
	}
}

func TestController_FailureAbortsAndRunIsResumed(t *testing.T) {
	f := newFixture(t)
	ctx := testContext()
	tasks := []config.TaskSpec{rec("one", nil), rec("two", nil), rec("three", nil)}

	f.rec.failOn["two"] = true
	first, err := New(ctx, doc(true, tasks...), nil, f.deps(RerunAll))
	require.NoError(t, err)
	err = first.Run(ctx)
	require.Error(t, err)
	assert.True(t, pipeerr.IsRuntime(err))
	assert.Equal(t, StateFailed, first.State())
	assert.False(t, first.Options().Completed())
	assert.Equal(t, []string{"one", "two"}, f.rec.names(), "tasks after the failure do not run")

	f.rec.failOn["two"] = false
	second, err := New(ctx, doc(true, tasks...), nil, f.deps(RerunAll))
	require.NoError(t, err)
	assert.Equal(t, first.Options().RunID, second.Options().RunID)
	assert.True(t, second.Options().Resumed)
	require.NoError(t, second.Run(ctx))
	assert.Equal(t, []string{"one", "two", "one", "two", "three"}, f.rec.names(), "rerun-all runs everything again")

	third, err := New(ctx, doc(true, tasks...), nil, f.deps(RerunAll))
	require.NoError(t, err)
	assert.NotEqual(t, first.Options().RunID, third.Options().RunID, "completed runs are not resumed")
}

func TestController_SkipCompletedPolicy(t *testing.T) {
	f := newFixture(t)
	ctx := testContext()
	tasks := []config.TaskSpec{rec("one", nil), rec("two", nil), rec("three", nil)}

	f.rec.failOn["two"] = true
	first, err := New(ctx, doc(true, tasks...), nil, f.deps(SkipCompleted))
	require.NoError(t, err)
	require.Error(t, first.Run(ctx))

	f.rec.failOn["two"] = false
	second, err := New(ctx, doc(true, tasks...), nil, f.deps(SkipCompleted))
	require.NoError(t, err)
	require.NoError(t, second.Run(ctx))

	assert.Equal(t, []string{"one", "two", "two", "three"}, f.rec.names())
}

func TestController_NoSnapshotsRecordsNoHashes(t *testing.T) {
	f := newFixture(t)
	ctx := testContext()

	c, err := New(ctx, doc("no", rec("one", nil)), nil, f.deps(SkipCompleted))
	require.NoError(t, err)
	require.NoError(t, c.Run(ctx))

	stored, err := f.store.FindLatest(ctx, "demo-dev")
	require.NoError(t, err)
	assert.Empty(t, stored.CompletedTasks)
	assert.True(t, stored.IsCompleted)
}

func TestController_NestedDispatchCarriesExtraParameters(t *testing.T) {
	f := newFixture(t)
	ctx := testContext()

	group := config.TaskSpec{Type: "group", Name: "g", Inputs: map[string]any{
		"items": []any{"a", "b"},
		"tasks": []any{
			map[string]any{
				"task":   "record",
				"name":   "inner ${{parameters.item}}",
				"inputs": map[string]any{"message": "${{parameters.env}}/${{parameters.item}}"},
			},
		},
	}}

	c, err := New(ctx, doc(true, group), nil, f.deps(RerunAll))
	require.NoError(t, err)
	require.NoError(t, c.Run(ctx))

	require.Len(t, f.rec.calls, 2)
	assert.Equal(t, "inner a", f.rec.calls[0].Name)
	assert.Equal(t, "dev/a", f.rec.calls[0].Message)
	assert.Equal(t, map[string]any{"item": "b"}, f.rec.calls[1].Extra)

	stored, err := f.store.FindLatest(ctx, "demo-dev")
	require.NoError(t, err)
	assert.Len(t, stored.CompletedTasks, 3, "each nested invocation and the group are recorded")
}

func TestController_CheckpointErrorsSurface(t *testing.T) {
	f := newFixture(t)
	ctx := testContext()
	deps := f.deps(RerunAll)
	deps.Store = failingStore{Store: f.store}

	c, err := New(ctx, doc(true, rec("one", nil)), nil, deps)
	require.NoError(t, err)
	err = c.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errStoreDown)
}

var errStoreDown = errors.New("store down")

type failingStore struct{ checkpoint.Store }

func (failingStore) AppendCompletedTask(context.Context, string, string) error { return errStoreDown }

func TestState_String(t *testing.T) {
	assert.Equal(t, "RunIdentityBound", StateRunIdentityBound.String())
	assert.Equal(t, "State(42)", State(42).String())
	assert.Equal(t, "skip-completed", SkipCompleted.String())
	assert.Equal(t, "rerun-all", RerunAll.String())
}
