// Package logs locates per-run log files and reads them for the `logs`
// command.
//
// Last reads the trailing N lines of a file with bounded memory, ReadFrom
// resumes at a byte offset, and Follow polls for appended lines until its
// context ends. FindRunLog resolves a run ID prefix to its log file under
// the configured log directory.
package logs
