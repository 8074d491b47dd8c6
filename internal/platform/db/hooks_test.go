package db

import (
	"context"
	"testing"
)

func TestAfterCommit_NoScopeRunsImmediately(t *testing.T) {
	ran := false
	AfterCommit(context.Background(), func(context.Context) { ran = true })
	if !ran {
		t.Error("expected hook to run immediately outside a request scope")
	}
}

func TestAfterCommit_DeferredUntilRun(t *testing.T) {
	ctx, hooks := WithCommitHooks(context.Background())
	var order []string
	AfterCommit(ctx, func(context.Context) { order = append(order, "first") })
	AfterCommit(ctx, func(context.Context) { order = append(order, "second") })

	if len(order) != 0 {
		t.Fatalf("hooks ran before commit: %v", order)
	}
	hooks.Run(context.Background())
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("unexpected hook order %v", order)
	}

	hooks.Run(context.Background())
	if len(order) != 2 {
		t.Errorf("hooks must run once, got %v", order)
	}
}

func TestAfterCommit_NotRunWithoutCommit(t *testing.T) {
	ctx, _ := WithCommitHooks(context.Background())
	AfterCommit(ctx, func(context.Context) { t.Error("hook ran for a transaction that never committed") })
}
