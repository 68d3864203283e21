// Package budget defines the campaign budget loading boundary. Budget
// tracking is not implemented yet; NopLoader fixes the contract so the
// engine lifecycle already calls it in the right place.
package budget

import (
	"context"
	"log/slog"
	"time"
)

// Report summarises a budget load.
type Report struct {
	Source    string        `json:"source"`
	Loaded    int           `json:"loaded"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
	Performed bool          `json:"performed"`
}

// Loader loads campaign budgets from source.
type Loader interface {
	Load(ctx context.Context, source string) (*Report, error)
}

// NopLoader accepts any source and loads nothing.
type NopLoader struct{}

var _ Loader = NopLoader{}

func (NopLoader) Load(ctx context.Context, source string) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slog.Default().With("component", "budget").Info("budget loading not implemented, skipping", "source", source)
	return &Report{Source: source}, nil
}
