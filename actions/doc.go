// Package actions records remote side effects (archive, star, mark read...)
// that mutations trigger. Entries are written in the same transaction as the
// mutation and settled asynchronously by the syncback worker.
package actions
