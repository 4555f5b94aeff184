// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BizBox Contributors

package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// LogError writes err to logger at error level. Oops errors contribute
// their code and context map as structured attributes; any other error
// is logged as a plain string.
func LogError(logger *slog.Logger, msg string, err error) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		logger.Error(msg, "error", err)
		return
	}

	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != "" {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	logger.Error(msg, attrs...)
}
