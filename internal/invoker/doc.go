// Package invoker runs the external deodexing tool once per source file.
//
// Each call spawns the tool in its own process group with a wall-clock
// deadline, captures a bounded tail of stdout and stderr, and writes into a
// staging path that is renamed onto the final artifact only after the tool
// exits cleanly with non-empty output. The outcome is always a job.Result;
// invocation problems never escape as Go errors.
package invoker
