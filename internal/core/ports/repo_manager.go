package ports

import "github.com/rafflenet/raffled/internal/core/domain"

type RepoManager interface {
	Events() domain.RoundEventRepository
	Rounds() domain.RoundRepository
	EventBus() domain.EventRepository
	Close()
}
