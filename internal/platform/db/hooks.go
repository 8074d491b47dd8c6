package db

import (
	"context"
	"sync"
)

const commitHooksKey contextKey = "db_commit_hooks"

// CommitHooks collects callbacks that must only run once the request
// transaction is durable.
type CommitHooks struct {
	mu  sync.Mutex
	fns []func(ctx context.Context)
}

// WithCommitHooks attaches an empty hook list to ctx.
func WithCommitHooks(ctx context.Context) (context.Context, *CommitHooks) {
	h := &CommitHooks{}
	return context.WithValue(ctx, commitHooksKey, h), h
}

// Run calls the registered hooks in order and clears the list.
func (h *CommitHooks) Run(ctx context.Context) {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ctx)
	}
}

// AfterCommit defers fn until the request transaction commits. Outside a
// request scope there is nothing to wait for and fn runs immediately.
// Hooks registered on a request that rolls back never run.
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	h, _ := ctx.Value(commitHooksKey).(*CommitHooks)
	if h == nil {
		fn(ctx)
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}
