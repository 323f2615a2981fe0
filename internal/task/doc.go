// Package task holds the task registry and the sequential runner.
//
// Tasks come in a closed set of kinds (exec, sequence, clean, func and the
// builtin watch task). The registry is built once from the config file,
// validates every cross reference up front and is read-only afterwards.
// The runner flattens sequences into their leaf tasks and executes them in
// declared order, stopping at the first failure.
package task
