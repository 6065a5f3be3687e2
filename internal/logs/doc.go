// Package logs reads per-run log files for the CLI.
//
// Run logs are named uploadr-<runID>.log under the state log directory. The
// helpers here locate a run's log, return its last lines with bounded memory,
// and poll for appended lines while a run is still writing.
package logs
