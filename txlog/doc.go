// Package txlog implements the append-only transaction log that backs the
// delta feed. The Recorder turns the changes collected by a unit of work into
// log entries inside the caller's transaction, and the Repository serves
// forward-only pages of committed entries to polling clients.
package txlog
