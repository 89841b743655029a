package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

type fakeTx struct{ pgx.Tx }

func TestWithTx_NoPool(t *testing.T) {
	called := false
	err := WithTx(context.Background(), nil, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrNoPool) {
		t.Errorf("expected ErrNoPool, got %v", err)
	}
	if called {
		t.Error("fn must not run without a transaction")
	}
}

func TestWithTx_JoinsOuterTransaction(t *testing.T) {
	outer := fakeTx{}
	ctx := context.WithValue(context.Background(), DBTxKey, pgx.Tx(outer))

	var seen pgx.Tx
	want := errors.New("boom")
	err := WithTx(ctx, nil, func(ctx context.Context) error {
		seen = TxFromContext(ctx)
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("expected fn error to pass through, got %v", err)
	}
	if seen != pgx.Tx(outer) {
		t.Error("fn must see the outer transaction")
	}
}

func TestTxFromContext_Empty(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Errorf("expected nil, got %v", tx)
	}
}
