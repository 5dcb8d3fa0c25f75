// Package notifications delivers run events via pluggable notifiers.
//
// The ntfy notifier posts human-readable messages for run milestones and
// degrades to a no-op when no topic is configured. The NATS publisher emits
// every event, including per-file completions, as JSON for machine
// consumers. Workflow code depends only on the Service interface.
package notifications
