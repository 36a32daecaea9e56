package orchestrator

import (
	"fmt"

	"github.com/panjf2000/ants/v2"

	"github.com/bft-labs/modkit/pkg/log"
	"github.com/bft-labs/modkit/pkg/module"
)

// poolExecutor submits run bodies to an ants pool. Submit waits for a free
// worker; a worker is still held briefly after its body reports Stopped.
type poolExecutor struct {
	pool *ants.Pool
}

var _ module.Executor = poolExecutor{}

func (e poolExecutor) Submit(task func()) error {
	return e.pool.Submit(task)
}

func newPool(size int, logger log.Logger, panicHandler func(any)) (*ants.Pool, error) {
	pool, err := ants.NewPool(size,
		ants.WithPanicHandler(panicHandler),
		ants.WithLogger(poolLogger{logger: logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return pool, nil
}

// poolLogger routes ants' internal messages to the structured logger.
type poolLogger struct {
	logger log.Logger
}

func (l poolLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...), log.String("component", "pool"))
}
