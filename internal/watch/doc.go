// Package watch implements the watch-trigger loop: it monitors the
// directories behind each watch group's globs, debounces change bursts per
// group, and runs the group's task sequence once the files settle. Runs
// execute one at a time on a single executor; task failures are reported
// and the loop keeps watching.
package watch
