// Package report exports a finished run as JSON, CSV, or YAML files.
package report
