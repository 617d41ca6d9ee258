// Package provider provisions mail accounts. Each supported provider is a
// Handler; the Registry maps provider names to handlers and is built once
// at startup.
package provider
