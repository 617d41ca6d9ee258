package query

import "github.com/goliatone/go-mailsync/pkg/types"

func safeLogger(logger types.Logger) types.Logger {
	if logger != nil {
		return logger
	}
	return types.NopLogger{}
}
