package inmemorytreasury

import (
	"context"
	"sync"

	"github.com/rafflenet/raffled/internal/core/ports"
)

// service keeps the pooled funds and the participant accounts in memory.
// Meant for development and tests, a restart loses every balance.
type service struct {
	lock     *sync.RWMutex
	pool     uint64
	accounts map[string]uint64
}

func NewService() ports.Treasury {
	return &service{
		lock:     &sync.RWMutex{},
		accounts: make(map[string]uint64),
	}
}

func (s *service) Deposit(ctx context.Context, from string, amount uint64) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.pool += amount
	return nil
}

func (s *service) Transfer(ctx context.Context, to string, amount uint64) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.pool < amount {
		return ports.ErrInsufficientPool
	}
	s.pool -= amount
	s.accounts[to] += amount
	return nil
}

func (s *service) PoolBalance(ctx context.Context) (uint64, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.pool, nil
}

func (s *service) AccountBalance(
	ctx context.Context, participant string,
) (uint64, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.accounts[participant], nil
}

func (s *service) Close() {}
