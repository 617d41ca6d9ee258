// Package query exposes go-command compatible read handlers: the delta feed,
// cursor resolution, provider lookup and account or action status.
package query
