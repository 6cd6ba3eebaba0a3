// Package registry maps task-type identifiers to task constructors.
//
// Each App owns one Registry, populated at startup by the compiled-in
// modules. Registering a type twice is an error, and so is looking up a type
// nobody registered; both surface as schema errors before any task runs. The
// registry knows nothing about individual task types, so fan-out tasks can
// reach the dispatch path without importing it.
package registry
