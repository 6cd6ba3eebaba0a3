// Package schema describes the inputs a task type accepts and turns the raw
// `inputs` mapping of a task spec into validated, typed values.
//
// A Schema is declared once per task type. Parse applies, for each declared
// input, the default value, parameter templating (unless the input is marked
// Literal), type coercion and the required check. Keys that are not declared
// are rejected so that a typo in a pipeline document fails the load instead of
// being silently ignored.
package schema
