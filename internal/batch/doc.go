// Package batch turns a list of interdependent task mutations into an ordered
// run of bridge calls.
//
// A Request names operations by position. Create operations may declare a
// temp id; later operations list the temp ids they reference and use them as
// placeholder values in their payloads. Before anything touches the bridge the
// request is validated, the reference graph is built, every cycle is reported,
// and a topological order is chosen with ties broken by request position.
//
// Execution is strictly sequential. As each create succeeds its real id is
// recorded and substituted into the payloads of the operations that reference
// it. Failures never undo earlier work: stop_on_error only halts the run, and
// atomic_operation only changes how the outcome is reported.
package batch
