// Package api exposes the delta feed, thread tagging, action requeue and
// account provisioning over HTTP using go-router. Handlers only parse
// requests and render responses; all behaviour lives behind the service
// command/query facades.
package api
