package ports

import (
	"context"
	"fmt"
)

var ErrInsufficientPool = fmt.Errorf("insufficient pooled funds")

// Treasury custodies the pooled entry fees and pays winners out of them.
type Treasury interface {
	Deposit(ctx context.Context, from string, amount uint64) error
	Transfer(ctx context.Context, to string, amount uint64) error
	PoolBalance(ctx context.Context) (uint64, error)
	AccountBalance(ctx context.Context, participant string) (uint64, error)
	Close()
}
