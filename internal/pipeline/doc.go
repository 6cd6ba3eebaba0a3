// Package pipeline is the pipeline controller: it resolves parameters, binds
// the run identity, and executes the task list strictly in declared order.
//
// The controller walks through these states:
//
//	Loaded → ParametersResolved → RunIdentityBound → Running → Completed
//	                                                        ↘ Failed
//
// New performs everything up to RunIdentityBound, including validation of
// every task type referenced by the document (nested fan-out lists too), so
// a misspelled task type fails before any task has a side effect. Run
// executes the tasks and marks the run completed in the checkpoint store
// only if all of them succeed.
//
// Every task, top-level or nested inside a fan-out, goes through the same
// dispatch path. Fan-out tasks reach it through task.RunContext.Dispatch.
package pipeline
