package db_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rafflenet/raffled/internal/core/domain"
	"github.com/rafflenet/raffled/internal/core/ports"
	"github.com/rafflenet/raffled/internal/infrastructure/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	entryFee = uint64(10000000)
)

func TestService(t *testing.T) {
	dbDir := t.TempDir()
	tests := []struct {
		name   string
		config db.ServiceConfig
	}{
		{
			name: "repo_manager_with_badger_stores",
			config: db.ServiceConfig{
				EventStoreType:   "badger",
				DataStoreType:    "badger",
				EventBusType:     "inmemory",
				EventStoreConfig: []interface{}{"", nil},
				DataStoreConfig:  []interface{}{"", nil},
			},
		},
		{
			name: "repo_manager_with_sqlite_stores",
			config: db.ServiceConfig{
				EventStoreType:   "badger",
				DataStoreType:    "sqlite",
				EventBusType:     "inmemory",
				EventStoreConfig: []interface{}{"", nil},
				DataStoreConfig:  []interface{}{dbDir},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := db.NewService(tt.config)
			require.NoError(t, err)
			defer svc.Close()

			testRoundEventRepository(t, svc)
			testRoundRepository(t, svc)
			testEventBus(t, svc)
		})
	}
}

func testRoundEventRepository(t *testing.T, svc ports.RepoManager) {
	t.Run("test_event_repository", func(t *testing.T) {
		fixtures := []struct {
			roundId string
			events  []domain.RoundEvent
			handler func(*testing.T, *domain.Round)
		}{
			{
				roundId: "42dd81f7-cadd-482c-bf69-8e9209aae9f3",
				events: []domain.RoundEvent{
					domain.RoundStarted{
						Id:        "42dd81f7-cadd-482c-bf69-8e9209aae9f3",
						EntryFee:  entryFee,
						Timestamp: 1701190270,
					},
				},
				handler: func(t *testing.T, round *domain.Round) {
					require.NotNil(t, round)
					require.Len(t, round.Events(), 1)
					require.True(t, round.IsStarted())
					require.True(t, round.IsOpen())
					require.False(t, round.IsEnded())
				},
			},
			{
				roundId: "1ea610ff-bf3e-4068-9bfd-b6c3f553467e",
				events: []domain.RoundEvent{
					domain.RoundStarted{
						Id:        "1ea610ff-bf3e-4068-9bfd-b6c3f553467e",
						EntryFee:  entryFee,
						Timestamp: 1701190270,
					},
					domain.EntryRecorded{
						Id:          "1ea610ff-bf3e-4068-9bfd-b6c3f553467e",
						Participant: "alice",
						FeePaid:     entryFee,
						Timestamp:   1701190280,
					},
					domain.EntryRecorded{
						Id:          "1ea610ff-bf3e-4068-9bfd-b6c3f553467e",
						Participant: "bob",
						FeePaid:     entryFee,
						Timestamp:   1701190290,
					},
				},
				handler: func(t *testing.T, round *domain.Round) {
					require.NotNil(t, round)
					require.Len(t, round.Events(), 3)
					require.Len(t, round.Entrants, 2)
					require.Equal(t, entryFee*2, round.PotAmount)
					require.False(t, round.IsEnded())
				},
			},
			{
				roundId: "7578231e-428d-45ae-aaa4-e62c77ad5cec",
				events: []domain.RoundEvent{
					domain.RoundStarted{
						Id:        "7578231e-428d-45ae-aaa4-e62c77ad5cec",
						EntryFee:  entryFee,
						Timestamp: 1701190270,
					},
					domain.EntryRecorded{
						Id:          "7578231e-428d-45ae-aaa4-e62c77ad5cec",
						Participant: "alice",
						FeePaid:     entryFee,
						Timestamp:   1701190280,
					},
					domain.DrawRequested{
						Id:        "7578231e-428d-45ae-aaa4-e62c77ad5cec",
						RequestId: "8a25ed38-8b27-4892-a68d-46f59f01c958",
						Timestamp: 1701193870,
					},
					domain.RoundSettled{
						Id:          "7578231e-428d-45ae-aaa4-e62c77ad5cec",
						RequestId:   "8a25ed38-8b27-4892-a68d-46f59f01c958",
						RandomWord:  12,
						WinnerIndex: 0,
						Winner:      "alice",
						Payout:      entryFee,
						Timestamp:   1701193880,
					},
				},
				handler: func(t *testing.T, round *domain.Round) {
					require.NotNil(t, round)
					require.Len(t, round.Events(), 4)
					require.False(t, round.IsOpen())
					require.True(t, round.IsEnded())
					require.Equal(t, "alice", round.Winner)
					require.Equal(t, entryFee, round.Payout)
				},
			},
		}
		ctx := context.Background()

		for _, f := range fixtures {
			receivedCh := make(chan *domain.Round, 1)
			svc.Events().RegisterEventsHandler(func(round *domain.Round) {
				select {
				case receivedCh <- round:
				default:
				}
			})

			round, err := svc.Events().Save(ctx, f.roundId, f.events...)
			require.NoError(t, err)
			require.NotNil(t, round)

			f.handler(t, waitForRound(t, receivedCh))

			round, err = svc.Events().Load(ctx, f.roundId)
			require.NoError(t, err)
			require.NotNil(t, round)
			require.Equal(t, f.roundId, round.Id)
			require.Len(t, round.Events(), len(f.events))
		}
	})
}

func testRoundRepository(t *testing.T, svc ports.RepoManager) {
	t.Run("test_round_repository", func(t *testing.T) {
		ctx := context.Background()
		now := time.Now()

		roundId := uuid.New().String()

		round, err := svc.Rounds().GetRoundWithId(ctx, roundId)
		require.Error(t, err)
		require.Nil(t, round)

		current, err := svc.Rounds().GetCurrentRound(ctx)
		require.NoError(t, err)
		require.Nil(t, current)

		lastSettled, err := svc.Rounds().GetLastSettledRound(ctx)
		require.NoError(t, err)
		require.Nil(t, lastSettled)

		events := []domain.RoundEvent{
			domain.RoundStarted{
				Id:        roundId,
				EntryFee:  entryFee,
				Timestamp: now.Unix(),
			},
		}
		round = domain.NewRoundFromEvents(events)
		err = svc.Rounds().AddOrUpdateRound(ctx, *round)
		require.NoError(t, err)

		roundById, err := svc.Rounds().GetRoundWithId(ctx, roundId)
		require.NoError(t, err)
		require.NotNil(t, roundById)
		require.Condition(t, roundsMatch(*round, *roundById))

		current, err = svc.Rounds().GetCurrentRound(ctx)
		require.NoError(t, err)
		require.NotNil(t, current)
		require.Equal(t, roundId, current.Id)

		requestId := uuid.New().String()
		newEvents := []domain.RoundEvent{
			domain.EntryRecorded{
				Id:          roundId,
				Participant: "alice",
				FeePaid:     entryFee,
				Timestamp:   now.Add(10 * time.Second).Unix(),
			},
			domain.EntryRecorded{
				Id:          roundId,
				Participant: "bob",
				FeePaid:     entryFee,
				Timestamp:   now.Add(20 * time.Second).Unix(),
			},
			domain.DrawRequested{
				Id:        roundId,
				RequestId: requestId,
				Timestamp: now.Add(30 * time.Second).Unix(),
			},
		}
		events = append(events, newEvents...)
		updatedRound := domain.NewRoundFromEvents(events)

		err = svc.Rounds().AddOrUpdateRound(ctx, *updatedRound)
		require.NoError(t, err)

		roundById, err = svc.Rounds().GetRoundWithId(ctx, roundId)
		require.NoError(t, err)
		require.NotNil(t, roundById)
		require.Condition(t, roundsMatch(*updatedRound, *roundById))

		newEvents = []domain.RoundEvent{
			domain.RoundSettled{
				Id:          roundId,
				RequestId:   requestId,
				RandomWord:  12,
				WinnerIndex: 0,
				Winner:      "alice",
				Payout:      entryFee * 2,
				Timestamp:   now.Add(60 * time.Second).Unix(),
			},
		}
		events = append(events, newEvents...)
		settledRound := domain.NewRoundFromEvents(events)

		err = svc.Rounds().AddOrUpdateRound(ctx, *settledRound)
		require.NoError(t, err)

		roundById, err = svc.Rounds().GetRoundWithId(ctx, roundId)
		require.NoError(t, err)
		require.NotNil(t, roundById)
		require.Condition(t, roundsMatch(*settledRound, *roundById))

		current, err = svc.Rounds().GetCurrentRound(ctx)
		require.NoError(t, err)
		require.Nil(t, current)

		lastSettled, err = svc.Rounds().GetLastSettledRound(ctx)
		require.NoError(t, err)
		require.NotNil(t, lastSettled)
		require.Equal(t, roundId, lastSettled.Id)

		otherRoundId := uuid.New().String()
		otherEvents := []domain.RoundEvent{
			domain.RoundStarted{
				Id:        otherRoundId,
				EntryFee:  entryFee,
				Timestamp: now.Add(120 * time.Second).Unix(),
			},
		}
		otherRound := domain.NewRoundFromEvents(otherEvents)
		err = svc.Rounds().AddOrUpdateRound(ctx, *otherRound)
		require.NoError(t, err)

		current, err = svc.Rounds().GetCurrentRound(ctx)
		require.NoError(t, err)
		require.NotNil(t, current)
		require.Equal(t, otherRoundId, current.Id)

		otherEvents = append(otherEvents, []domain.RoundEvent{
			domain.EntryRecorded{
				Id:          otherRoundId,
				Participant: "carol",
				FeePaid:     entryFee,
				Timestamp:   now.Add(130 * time.Second).Unix(),
			},
			domain.RoundSettled{
				Id:          otherRoundId,
				RequestId:   uuid.New().String(),
				RandomWord:  7,
				WinnerIndex: 0,
				Winner:      "carol",
				Payout:      entryFee,
				Timestamp:   now.Add(240 * time.Second).Unix(),
			},
		}...)
		otherSettled := domain.NewRoundFromEvents(otherEvents)
		err = svc.Rounds().AddOrUpdateRound(ctx, *otherSettled)
		require.NoError(t, err)

		lastSettled, err = svc.Rounds().GetLastSettledRound(ctx)
		require.NoError(t, err)
		require.NotNil(t, lastSettled)
		require.Equal(t, otherRoundId, lastSettled.Id)

		settledRounds, err := svc.Rounds().GetSettledRounds(ctx, 10)
		require.NoError(t, err)
		require.Len(t, settledRounds, 2)
		require.Equal(t, otherRoundId, settledRounds[0].Id)
		require.Equal(t, roundId, settledRounds[1].Id)

		settledRounds, err = svc.Rounds().GetSettledRounds(ctx, 1)
		require.NoError(t, err)
		require.Len(t, settledRounds, 1)
		require.Equal(t, otherRoundId, settledRounds[0].Id)

		ids, err := svc.Rounds().GetRoundsIds(ctx, 0, 0)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{roundId, otherRoundId}, ids)

		ids, err = svc.Rounds().GetRoundsIds(ctx, now.Add(60*time.Second).Unix(), 0)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{otherRoundId}, ids)
	})
}

func testEventBus(t *testing.T, svc ports.RepoManager) {
	t.Run("test_event_bus", func(t *testing.T) {
		ctx := context.Background()

		receivedCh := make(chan []domain.RoundEvent, 8)
		svc.EventBus().RegisterEventsHandler(
			domain.RoundTopic, func(events []domain.RoundEvent) {
				receivedCh <- events
			},
		)

		roundId := uuid.New().String()
		requestId := uuid.New().String()

		err := svc.EventBus().Save(ctx, domain.RoundTopic, roundId, []domain.RoundEvent{
			domain.RoundStarted{Id: roundId, EntryFee: entryFee, Timestamp: 1701190270},
		})
		require.NoError(t, err)
		events := waitForEvents(t, receivedCh)
		require.Len(t, events, 1)

		err = svc.EventBus().Save(ctx, domain.RoundTopic, roundId, []domain.RoundEvent{
			domain.EntryRecorded{
				Id: roundId, Participant: "alice", FeePaid: entryFee, Timestamp: 1701190280,
			},
		})
		require.NoError(t, err)

		// handlers receive the full history of the round, not only the new events
		events = waitForEvents(t, receivedCh)
		require.Len(t, events, 2)

		err = svc.EventBus().Save(ctx, domain.RoundTopic, roundId, []domain.RoundEvent{
			domain.DrawRequested{Id: roundId, RequestId: requestId, Timestamp: 1701193870},
			domain.RoundSettled{
				Id: roundId, RequestId: requestId, RandomWord: 12,
				WinnerIndex: 0, Winner: "alice", Payout: entryFee, Timestamp: 1701193880,
			},
		})
		require.NoError(t, err)

		events = waitForEvents(t, receivedCh)
		require.Len(t, events, 4)
		round := domain.NewRoundFromEvents(events)
		require.True(t, round.IsEnded())

		svc.EventBus().ClearRegisteredHandlers(domain.RoundTopic)

		err = svc.EventBus().Save(ctx, domain.RoundTopic, uuid.New().String(), []domain.RoundEvent{
			domain.RoundStarted{Id: uuid.New().String(), EntryFee: entryFee, Timestamp: 1701193890},
		})
		require.NoError(t, err)

		select {
		case <-receivedCh:
			t.Fatal("expected no dispatch after clearing handlers")
		case <-time.After(100 * time.Millisecond):
		}
	})
}

func waitForRound(t *testing.T, ch <-chan *domain.Round) *domain.Round {
	select {
	case round := <-ch:
		return round
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for events handler")
		return nil
	}
}

func waitForEvents(t *testing.T, ch <-chan []domain.RoundEvent) []domain.RoundEvent {
	select {
	case events := <-ch:
		return events
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for events handler")
		return nil
	}
}

func roundsMatch(expected, got domain.Round) assert.Comparison {
	return func() bool {
		if expected.Id != got.Id {
			return false
		}
		if expected.EntryFee != got.EntryFee {
			return false
		}
		if expected.StartingTimestamp != got.StartingTimestamp {
			return false
		}
		if expected.EndingTimestamp != got.EndingTimestamp {
			return false
		}
		if expected.Stage != got.Stage {
			return false
		}
		expectedEntrants := append([]string{}, expected.Entrants...)
		gotEntrants := append([]string{}, got.Entrants...)
		if !reflect.DeepEqual(expectedEntrants, gotEntrants) {
			return false
		}
		if expected.PotAmount != got.PotAmount {
			return false
		}
		if expected.PendingRequestId != got.PendingRequestId {
			return false
		}
		if expected.DrawTimestamp != got.DrawTimestamp {
			return false
		}
		if expected.RandomWord != got.RandomWord {
			return false
		}
		if expected.WinnerIndex != got.WinnerIndex {
			return false
		}
		if expected.Winner != got.Winner {
			return false
		}
		if expected.Payout != got.Payout {
			return false
		}
		return expected.Version == got.Version
	}
}
