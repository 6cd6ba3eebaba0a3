package foreach

import (
	"context"
	"fmt"
	"sync"

	"github.com/specialistvlad/pipegrid/internal/config"
	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/metrics"
	"github.com/specialistvlad/pipegrid/internal/pipeerr"
	"github.com/specialistvlad/pipegrid/internal/schema"
	"github.com/specialistvlad/pipegrid/internal/task"
)

// Input names shared by both fan-out task types.
const (
	inputThreads    = "threads"
	inputOutputName = "output-parameter-name"
	inputTasks      = "tasks"
)

var commonInputs = schema.Schema{
	{Name: inputThreads, Default: 1, Coerce: schema.Int,
		Description: "Number of items processed concurrently."},
	{Name: inputOutputName, Required: true, Coerce: schema.OutputParameterName,
		Description: "Parameter name under which each item is passed to the nested tasks."},
	{Name: inputTasks, Required: true, Literal: true,
		Description: "Tasks run once per item, in order."},
}

// nestedTasks decodes the nested task list of a fan-out spec.
func nestedTasks(raw map[string]any) ([]config.TaskSpec, error) {
	specs, err := config.TaskSpecsFromValue(raw[inputTasks])
	if err != nil {
		return nil, fmt.Errorf("input '%s': %w", inputTasks, err)
	}
	return specs, nil
}

// job is everything a fan-out needs once its items are known.
type job struct {
	rc         *task.RunContext
	items      []string
	threads    int
	outputName string
	specs      []config.TaskSpec
}

func newJob(in schema.Inputs, rc *task.RunContext, items []string) (*job, error) {
	threads := in.Int(inputThreads)
	if threads < 1 {
		return nil, pipeerr.Validationf("input '%s' must be at least 1, got %d", inputThreads, threads)
	}
	specs, err := nestedTasks(in)
	if err != nil {
		return nil, err
	}
	return &job{
		rc:         rc,
		items:      items,
		threads:    threads,
		outputName: in.String(inputOutputName),
		specs:      specs,
	}, nil
}

// failures collects item errors from concurrent workers.
type failures struct {
	mu     sync.Mutex
	failed bool
	errs   []error
}

func (f *failures) add(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = true
	f.errs = append(f.errs, err)
}

// run processes every item on min(threads, items) workers. A failing item
// stops only its own nested list; the other items still run. All failures
// are reported together once every worker has finished.
func (j *job) run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	if len(j.items) == 0 {
		logger.Info("No items to process.")
		return nil
	}

	workers := min(j.threads, len(j.items))
	logger.Info("🔀 Fanning out.", "items", len(j.items), "workers", workers)

	itemChan := make(chan string)
	var wg sync.WaitGroup
	var fails failures
	for workerID := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.worker(ctx, itemChan, &fails, workerID)
		}()
	}
	for _, item := range j.items {
		itemChan <- item
	}
	close(itemChan)
	wg.Wait()

	if fails.failed {
		return &pipeerr.FanOutError{Task: j.rc.TaskName, Items: len(j.items), Errors: fails.errs}
	}
	return nil
}

// worker is the processing loop of one fan-out worker.
func (j *job) worker(ctx context.Context, itemChan <-chan string, fails *failures, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for item := range itemChan {
		itemLogger := logger.With("workerID", workerID, "item", item)
		itemLogger.Debug("Worker picked up item.")

		if err := j.runItem(ctx, item); err != nil {
			itemLogger.Error("Item failed.", "error", err)
			fails.add(fmt.Errorf("item '%s': %w", item, err))
			j.rc.Metrics.ObserveItem(j.rc.TaskType, metrics.OutcomeFailure)
			continue
		}
		j.rc.Metrics.ObserveItem(j.rc.TaskType, metrics.OutcomeSuccess)
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

// runItem runs the nested tasks for one item in order, stopping at the first
// failure.
func (j *job) runItem(ctx context.Context, item string) error {
	extra := j.rc.WithExtra(map[string]any{j.outputName: item})
	for _, spec := range j.specs {
		if err := j.rc.Dispatch(ctx, spec, extra); err != nil {
			return err
		}
	}
	return nil
}
