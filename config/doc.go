// Package config defines the host configuration loaded through go-config and
// the feature gate built from it.
package config
