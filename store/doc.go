// Package store persists mail objects inside units of work. Every unit of
// work bumps thread versions, records transaction log entries and runs
// registered pre-commit hooks in the same database transaction, so readers
// never observe a mutation without its log entry.
package store
