package syncback

import (
	"sync"

	"github.com/goliatone/go-masker"
)

var defaultMaskerOnce sync.Once

// DefaultMasker returns the shared masker with credential fields registered.
func DefaultMasker() *masker.Masker {
	defaultMaskerOnce.Do(func() {
		if masker.Default == nil {
			return
		}
		for _, field := range []string{"password", "refresh_token", "access_token", "credentials"} {
			masker.Default.RegisterMaskField(field, "filled4")
		}
	})
	return masker.Default
}

// SanitizeArgs masks secrets in action arguments before they are logged.
func SanitizeArgs(mask *masker.Masker, args map[string]any) map[string]any {
	if len(args) == 0 {
		return args
	}
	if mask == nil {
		mask = DefaultMasker()
	}
	if mask == nil {
		return map[string]any{}
	}
	cloned := make(map[string]any, len(args))
	for key, value := range args {
		cloned[key] = value
	}
	masked, err := mask.Mask(cloned)
	if err != nil {
		return map[string]any{}
	}
	if out, ok := masked.(map[string]any); ok {
		return out
	}
	return map[string]any{}
}
