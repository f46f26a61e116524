package migrate

import (
	"context"

	"github.com/baderkha/ora2pg/pkg/migrate/config"
)

// Runner : runs migration between a source and a target
type Runner[S any, T any] interface {
	Run(ctx context.Context, cfg config.Config[S, T]) (*Result, error)
	RunID() string
}
