package application

import (
	"context"

	"github.com/rafflenet/raffled/internal/core/domain"
)

type Service interface {
	Start() error
	Stop()
	Enter(ctx context.Context, participant string, feePaid uint64) error
	CheckUpkeep(ctx context.Context) (bool, DrawStatus)
	PerformUpkeep(ctx context.Context) (string, error)
	AbandonDraw(ctx context.Context, reason string) (string, error)
	GetInfo(ctx context.Context) (*ServiceInfo, error)
	GetCurrentRound(ctx context.Context) (*domain.Round, error)
	GetRoundById(ctx context.Context, id string) (*domain.Round, error)
	GetParticipant(ctx context.Context, index int) (string, error)
	GetLastWinner(ctx context.Context) (*WinnerRecord, error)
	GetRecentWinners(ctx context.Context, limit int) ([]WinnerRecord, error)
	GetEventsChannel(ctx context.Context) <-chan domain.RoundEvent
}

type ServiceInfo struct {
	RoundId          string
	Stage            string
	EntryFee         uint64
	PotAmount        uint64
	EntrantCount     int
	RoundStartTime   int64
	NextDrawTime     int64
	PendingRequestId string
	RecentWinner     *WinnerRecord
}

type WinnerRecord struct {
	RoundId     string
	Winner      string
	WinnerIndex uint32
	Payout      uint64
	Timestamp   int64
}

type DrawStatus struct {
	RoundId      string
	Stage        domain.RoundStage
	EntrantCount int
	PotAmount    uint64
	Elapsed      int64
	Interval     int64
}
