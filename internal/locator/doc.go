// Package locator discovers odex files under an input root.
//
// Scan returns a Sequence: a lazily advanced, finite, non-restartable stream
// of job.SourceFile values in lexical path order. Traversal follows symbolic
// links but tracks directory identities so a link cycle is reported and
// skipped instead of recursed into. Unreadable subdirectories produce
// job.AccessError diagnostics and are skipped; only a missing or non-directory
// root fails the scan outright, with job.NotFoundError.
package locator
