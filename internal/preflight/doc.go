// Package preflight gates a deodex run on its external dependencies.
//
// Validator.Validate runs once per batch, before anything is scheduled. It
// checks the tool (an executable, or a jar when a runtime launches it), the
// runtime and its version, the framework directory, the output directory's
// writability, and the requested API level. Each problem becomes a Finding
// tagged Fatal or Warning. Validate never returns an error: the workflow
// refuses to schedule when Report.HasFatal is true and only surfaces
// warnings otherwise.
package preflight
