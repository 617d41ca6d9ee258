// Package syncback drains the action log and replays pending actions against
// the remote provider, one account at a time.
package syncback
