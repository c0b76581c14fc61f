package watermilldb

import (
	"sync"

	"github.com/rafflenet/raffled/internal/core/domain"
)

type eventCache struct {
	cache map[string][]domain.RoundEvent // id -> events
	lock  *sync.Mutex
}

func newEventCache() *eventCache {
	return &eventCache{
		cache: make(map[string][]domain.RoundEvent),
		lock:  &sync.Mutex{},
	}
}

func (c *eventCache) add(id string, events []domain.RoundEvent) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if _, ok := c.cache[id]; !ok {
		c.cache[id] = make([]domain.RoundEvent, 0)
	}

	c.cache[id] = append(c.cache[id], events...)
}

func (c *eventCache) get(id string) []domain.RoundEvent {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.cache[id]
}

func (c *eventCache) remove(id string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	delete(c.cache, id)
}
