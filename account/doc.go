// Package account persists mail accounts and their namespaces, and owns the
// account sync-state lifecycle consulted by the action scheduler and the
// syncback worker.
package account
