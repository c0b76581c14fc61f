package e2e_test

import (
	"context"
	"testing"
	"time"

	"github.com/rafflenet/raffled/internal/core/application"
	"github.com/rafflenet/raffled/internal/core/domain"
	"github.com/rafflenet/raffled/internal/infrastructure/db"
	signeroracle "github.com/rafflenet/raffled/internal/infrastructure/oracle/signer"
	timescheduler "github.com/rafflenet/raffled/internal/infrastructure/scheduler/gocron"
	inmemorytreasury "github.com/rafflenet/raffled/internal/infrastructure/treasury/inmemory"
	"github.com/stretchr/testify/require"
)

const (
	entryFee         = uint64(10_000_000)
	drawInterval     = 2 * time.Second
	upkeepInterval   = time.Second
	confirmationTime = 100 * time.Millisecond
	settleTimeout    = 30 * time.Second
)

// TestRaffleLifecycle runs the daemon stack in process, with the badger
// stores in memory and the signing oracle standing in for the remote one,
// and drives two full rounds through entry, draw and settlement.
func TestRaffleLifecycle(t *testing.T) {
	ctx := context.Background()

	repoManager, err := db.NewService(db.ServiceConfig{
		EventStoreType:   "badger",
		DataStoreType:    "badger",
		EventBusType:     "inmemory",
		EventStoreConfig: []interface{}{"", nil},
		DataStoreConfig:  []interface{}{"", nil},
		EventBusConfig:   []interface{}{},
	})
	require.NoError(t, err)

	oracle, err := signeroracle.NewService(confirmationTime)
	require.NoError(t, err)

	treasury := inmemorytreasury.NewService()
	scheduler := timescheduler.NewScheduler()

	svc, err := application.NewService(
		entryFee, drawInterval, 0, upkeepInterval, 1, 1, 0, "", 0,
		repoManager, oracle, treasury, scheduler, nil,
	)
	require.NoError(t, err)

	require.NoError(t, svc.Start())
	defer svc.Stop()

	settledCh := make(chan domain.RoundSettled, 2)
	go func() {
		for event := range svc.GetEventsChannel(ctx) {
			if settled, ok := event.(domain.RoundSettled); ok {
				settledCh <- settled
			}
		}
	}()

	firstRound, err := svc.GetCurrentRound(ctx)
	require.NoError(t, err)
	require.True(t, firstRound.IsOpen())

	entrants := []string{"alice", "bob", "carol"}
	for _, entrant := range entrants {
		require.NoError(t, svc.Enter(ctx, entrant, entryFee))
	}

	info, err := svc.GetInfo(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, info.EntrantCount)
	require.Equal(t, 3*entryFee, info.PotAmount)

	settled := waitForSettlement(t, settledCh)
	require.Equal(t, firstRound.Id, settled.Id)
	require.Equal(t, 3*entryFee, settled.Payout)

	// the winner is fully determined by the random word
	expectedWinner := entrants[settled.RandomWord%uint64(len(entrants))]
	require.Equal(t, expectedWinner, settled.Winner)

	balance, err := treasury.AccountBalance(ctx, settled.Winner)
	require.NoError(t, err)
	require.Equal(t, 3*entryFee, balance)

	pool, err := treasury.PoolBalance(ctx)
	require.NoError(t, err)
	require.Zero(t, pool)

	secondRound := waitForNewRound(t, svc, firstRound.Id)
	require.True(t, secondRound.IsOpen())
	require.Empty(t, secondRound.Entrants)
	require.Zero(t, secondRound.PotAmount)

	archived, err := svc.GetRoundById(ctx, firstRound.Id)
	require.NoError(t, err)
	require.True(t, archived.IsEnded())
	require.Equal(t, settled.Winner, archived.Winner)
	require.Equal(t, settled.RandomWord, archived.RandomWord)

	record, err := svc.GetLastWinner(ctx)
	require.NoError(t, err)
	require.Equal(t, settled.Winner, record.Winner)
	require.Equal(t, 3*entryFee, record.Payout)

	// the raffle is recurring, the next round settles on its own as well
	require.NoError(t, svc.Enter(ctx, "dave", entryFee))

	settled = waitForSettlement(t, settledCh)
	require.Equal(t, secondRound.Id, settled.Id)
	require.Equal(t, "dave", settled.Winner)
	require.Equal(t, entryFee, settled.Payout)

	balance, err = treasury.AccountBalance(ctx, "dave")
	require.NoError(t, err)
	require.Equal(t, entryFee, balance)
}

func waitForSettlement(
	t *testing.T, settledCh <-chan domain.RoundSettled,
) domain.RoundSettled {
	t.Helper()

	select {
	case settled := <-settledCh:
		return settled
	case <-time.After(settleTimeout):
		require.FailNow(t, "timed out waiting for round settlement")
	}
	return domain.RoundSettled{}
}

func waitForNewRound(
	t *testing.T, svc application.Service, previousId string,
) *domain.Round {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		round, err := svc.GetCurrentRound(context.Background())
		if err == nil && round != nil && round.Id != previousId {
			return round
		}
		time.Sleep(50 * time.Millisecond)
	}

	require.FailNow(t, "timed out waiting for the next round to open")
	return nil
}
