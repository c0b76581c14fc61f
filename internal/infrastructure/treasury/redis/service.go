package redistreasury

import (
	"context"
	"errors"
	"fmt"

	"github.com/rafflenet/raffled/internal/core/ports"
	"github.com/redis/go-redis/v9"
)

const (
	poolKey       = "treasury:pool"
	accountPrefix = "treasury:account:"
)

type service struct {
	rdb          *redis.Client
	numOfRetries int
}

func NewService(rdb *redis.Client, numOfRetries int) ports.Treasury {
	return &service{rdb: rdb, numOfRetries: numOfRetries}
}

func (s *service) Deposit(ctx context.Context, from string, amount uint64) error {
	return s.rdb.IncrBy(ctx, poolKey, int64(amount)).Err()
}

func (s *service) Transfer(ctx context.Context, to string, amount uint64) error {
	for attempt := 0; attempt < s.numOfRetries; attempt++ {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			pool, err := tx.Get(ctx, poolKey).Uint64()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if pool < amount {
				return ports.ErrInsufficientPool
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.DecrBy(ctx, poolKey, int64(amount))
				pipe.IncrBy(ctx, accountPrefix+to, int64(amount))
				return nil
			})
			return err
		}, poolKey)
		if err == nil {
			return nil
		}
		if errors.Is(err, ports.ErrInsufficientPool) {
			return err
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}

	return fmt.Errorf("failed to transfer to %s after %d attempts", to, s.numOfRetries)
}

func (s *service) PoolBalance(ctx context.Context) (uint64, error) {
	pool, err := s.rdb.Get(ctx, poolKey).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return pool, nil
}

func (s *service) AccountBalance(
	ctx context.Context, participant string,
) (uint64, error) {
	balance, err := s.rdb.Get(ctx, accountPrefix+participant).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *service) Close() {
	//nolint:errcheck
	s.rdb.Close()
}
