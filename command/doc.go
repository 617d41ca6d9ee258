// Package command exposes go-command compatible command handlers for the
// mail sync domain (thread tags, object mutations, action scheduling and
// requeue, transaction purge, account provisioning and sync state).
// Commands are wired by the service layer and can be invoked by any transport.
package command
