// Package main hosts the deodexer CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration (file, .env, environment,
// then flags), builds the run logger, and hands batches to internal/workflow.
// Terminal concerns live here: progress rendering, summary tables, and exit
// codes. Everything else belongs in the internal packages.
package main
