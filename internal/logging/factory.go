package logging

import (
	"fmt"
	"log/slog"
	"os"

	"go.uber.org/zap"
)

// Backend names accepted by New.
const (
	BackendSlog = "slog"
	BackendZap  = "zap"
)

// New builds a Logger writing JSON to stdout using the named backend.
func New(backend string) (Logger, error) {
	switch backend {
	case "", BackendSlog:
		return NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil))), nil
	case BackendZap:
		l, err := zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("zap init: %w", err)
		}
		return NewZapLogger(l), nil
	}
	return nil, fmt.Errorf("unknown log backend %q", backend)
}
