package service

import (
	"context"
	"sync"
	"time"

	dErrors "titleledger/pkg/domain-errors"
)

const defaultTxTimeout = 5 * time.Second

// MutexTx is the in-memory transactional boundary: a coarse lock standing in
// for database transactions when the memory stores are wired. It provides the
// same per-call atomicity guarantee the Postgres adapter gives, without
// rollback; tests that need rollback semantics use the integration suite.
type MutexTx struct {
	mu      sync.Mutex
	timeout time.Duration
}

func NewMutexTx() *MutexTx {
	return &MutexTx{}
}

func (t *MutexTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}
