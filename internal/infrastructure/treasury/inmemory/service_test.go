package inmemorytreasury_test

import (
	"context"
	"testing"

	"github.com/rafflenet/raffled/internal/core/ports"
	inmemorytreasury "github.com/rafflenet/raffled/internal/infrastructure/treasury/inmemory"
	"github.com/stretchr/testify/require"
)

func TestTreasury(t *testing.T) {
	svc := inmemorytreasury.NewService()
	defer svc.Close()
	ctx := context.Background()

	pool, err := svc.PoolBalance(ctx)
	require.NoError(t, err)
	require.Zero(t, pool)

	require.NoError(t, svc.Deposit(ctx, "alice", 10000000))
	require.NoError(t, svc.Deposit(ctx, "bob", 10000500))

	pool, err = svc.PoolBalance(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(20000500), pool)

	err = svc.Transfer(ctx, "alice", 30000000)
	require.ErrorIs(t, err, ports.ErrInsufficientPool)

	require.NoError(t, svc.Transfer(ctx, "alice", 20000000))

	pool, err = svc.PoolBalance(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(500), pool)

	balance, err := svc.AccountBalance(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, uint64(20000000), balance)

	balance, err = svc.AccountBalance(ctx, "carol")
	require.NoError(t, err)
	require.Zero(t, balance)
}
