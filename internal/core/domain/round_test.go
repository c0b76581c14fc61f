package domain_test

import (
	"testing"

	"github.com/rafflenet/raffled/internal/core/domain"
	"github.com/stretchr/testify/require"
)

var (
	entryFee  = uint64(10000000)
	requestId = "7b1aa654-1a80-4a8f-bc6d-1ec41ae21e3f"
	entries   = []domain.Entry{
		{
			Participant: "alice",
			FeePaid:     entryFee,
		},
		{
			Participant: "bob",
			FeePaid:     entryFee,
		},
		{
			Participant: "carol",
			FeePaid:     entryFee + 250,
		},
	}
)

func TestRound(t *testing.T) {
	testOpen(t)

	testRegisterEntry(t)

	testStartDraw(t)

	testSettle(t)

	testAbandonDraw(t)

	testParticipantAt(t)

	testReplay(t)
}

func testOpen(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		t.Run("valid", func(t *testing.T) {
			round := domain.NewRound(entryFee)
			require.NotNil(t, round)
			require.NotEmpty(t, round.Id)
			require.Empty(t, round.Events())
			require.False(t, round.IsStarted())
			require.False(t, round.IsOpen())
			require.False(t, round.IsEnded())

			events, err := round.Open()
			require.NoError(t, err)
			require.Len(t, events, 1)
			require.True(t, round.IsStarted())
			require.True(t, round.IsOpen())
			require.False(t, round.IsEnded())

			event, ok := events[0].(domain.RoundStarted)
			require.True(t, ok)
			require.Equal(t, round.Id, event.Id)
			require.Equal(t, entryFee, event.EntryFee)
			require.Equal(t, round.StartingTimestamp, event.Timestamp)
		})

		t.Run("invalid", func(t *testing.T) {
			fixtures := []struct {
				round       *domain.Round
				expectedErr string
			}{
				{
					round: &domain.Round{
						Id:       "id",
						EntryFee: entryFee,
						Stage: domain.Stage{
							Code: domain.OpenStage,
						},
					},
					expectedErr: "not in a valid stage to open the round",
				},
				{
					round: &domain.Round{
						Id:       "id",
						EntryFee: entryFee,
						Stage: domain.Stage{
							Code: domain.DrawingStage,
						},
					},
					expectedErr: "not in a valid stage to open the round",
				},
				{
					round:       domain.NewRound(0),
					expectedErr: "missing entry fee",
				},
			}

			for _, f := range fixtures {
				events, err := f.round.Open()
				require.EqualError(t, err, f.expectedErr)
				require.Empty(t, events)
			}
		})
	})
}

func testRegisterEntry(t *testing.T) {
	t.Run("register_entry", func(t *testing.T) {
		t.Run("valid", func(t *testing.T) {
			round := domain.NewRound(entryFee)
			events, err := round.Open()
			require.NoError(t, err)
			require.NotEmpty(t, events)

			for i, entry := range entries {
				events, err := round.RegisterEntry(entry)
				require.NoError(t, err)
				require.Len(t, events, 1)

				event, ok := events[0].(domain.EntryRecorded)
				require.True(t, ok)
				require.Equal(t, round.Id, event.Id)
				require.Equal(t, entry.Participant, event.Participant)
				require.Equal(t, entry.FeePaid, event.FeePaid)
				require.Len(t, round.Entrants, i+1)
			}

			// the pot grows by exactly the entry fee, overpayments never count
			require.Equal(t, entryFee*uint64(len(entries)), round.PotAmount)
			require.Equal(t, []string{"alice", "bob", "carol"}, round.Entrants)

			// duplicate entries are allowed and weighted
			events, err = round.RegisterEntry(entries[0])
			require.NoError(t, err)
			require.NotEmpty(t, events)
			require.Equal(t, []string{"alice", "bob", "carol", "alice"}, round.Entrants)
			require.Equal(t, entryFee*4, round.PotAmount)
		})

		t.Run("invalid", func(t *testing.T) {
			fixtures := []struct {
				round       *domain.Round
				entry       domain.Entry
				expectedErr string
			}{
				{
					round: &domain.Round{
						Id:       "id",
						EntryFee: entryFee,
						Stage:    domain.Stage{},
					},
					entry:       entries[0],
					expectedErr: "round is not open to entries (stage: UNDEFINED)",
				},
				{
					round: &domain.Round{
						Id:       "id",
						EntryFee: entryFee,
						Stage: domain.Stage{
							Code: domain.DrawingStage,
						},
					},
					entry:       entries[0],
					expectedErr: "round is not open to entries (stage: DRAWING)",
				},
				{
					round: &domain.Round{
						Id:       "id",
						EntryFee: entryFee,
						Stage: domain.Stage{
							Code:  domain.OpenStage,
							Ended: true,
						},
					},
					entry:       entries[0],
					expectedErr: "round is not open to entries (round ended)",
				},
				{
					round: &domain.Round{
						Id:       "id",
						EntryFee: entryFee,
						Stage: domain.Stage{
							Code: domain.OpenStage,
						},
					},
					entry: domain.Entry{
						FeePaid: entryFee,
					},
					expectedErr: "missing participant",
				},
				{
					round: &domain.Round{
						Id:       "id",
						EntryFee: entryFee,
						Stage: domain.Stage{
							Code: domain.OpenStage,
						},
					},
					entry: domain.Entry{
						Participant: "alice",
						FeePaid:     entryFee - 1,
					},
					expectedErr: "entry fee too low: paid 9999999, required 10000000",
				},
			}

			for _, f := range fixtures {
				events, err := f.round.RegisterEntry(f.entry)
				require.EqualError(t, err, f.expectedErr)
				require.Empty(t, events)
			}
		})
	})
}

func testStartDraw(t *testing.T) {
	t.Run("start_draw", func(t *testing.T) {
		t.Run("valid", func(t *testing.T) {
			round := newOpenRoundWithEntries(t)

			events, err := round.StartDraw(requestId)
			require.NoError(t, err)
			require.Len(t, events, 1)
			require.False(t, round.IsOpen())
			require.True(t, round.IsDrawing())
			require.Equal(t, requestId, round.PendingRequestId)

			event, ok := events[0].(domain.DrawRequested)
			require.True(t, ok)
			require.Equal(t, round.Id, event.Id)
			require.Equal(t, requestId, event.RequestId)
		})

		t.Run("invalid", func(t *testing.T) {
			fixtures := []struct {
				round       *domain.Round
				requestId   string
				expectedErr string
			}{
				{
					round:       newOpenRoundWithEntries(t),
					requestId:   "",
					expectedErr: "missing randomness request id",
				},
				{
					round: &domain.Round{
						Id:       "id",
						EntryFee: entryFee,
						Stage:    domain.Stage{},
					},
					requestId:   requestId,
					expectedErr: "not in a valid stage to start the draw",
				},
				{
					round: &domain.Round{
						Id:       "id",
						EntryFee: entryFee,
						Stage: domain.Stage{
							Code: domain.DrawingStage,
						},
						Entrants:  []string{"alice"},
						PotAmount: entryFee,
					},
					requestId:   requestId,
					expectedErr: "not in a valid stage to start the draw",
				},
				{
					round: &domain.Round{
						Id:       "id",
						EntryFee: entryFee,
						Stage: domain.Stage{
							Code: domain.OpenStage,
						},
					},
					requestId:   requestId,
					expectedErr: "no entrants registered",
				},
				{
					round: &domain.Round{
						Id:       "id",
						EntryFee: entryFee,
						Stage: domain.Stage{
							Code: domain.OpenStage,
						},
						Entrants: []string{"alice"},
					},
					requestId:   requestId,
					expectedErr: "empty pot",
				},
			}

			for _, f := range fixtures {
				events, err := f.round.StartDraw(f.requestId)
				require.EqualError(t, err, f.expectedErr)
				require.Empty(t, events)
			}
		})
	})
}

func testSettle(t *testing.T) {
	t.Run("settle", func(t *testing.T) {
		t.Run("valid", func(t *testing.T) {
			fixtures := []struct {
				word           uint64
				expectedIndex  uint32
				expectedWinner string
			}{
				{word: 12, expectedIndex: 0, expectedWinner: "alice"},
				{word: 13, expectedIndex: 1, expectedWinner: "bob"},
				{word: 2, expectedIndex: 2, expectedWinner: "carol"},
				{word: 18446744073709551615, expectedIndex: 0, expectedWinner: "alice"},
			}

			for _, f := range fixtures {
				round := newOpenRoundWithEntries(t)
				events, err := round.StartDraw(requestId)
				require.NoError(t, err)
				require.NotEmpty(t, events)

				events, err = round.Settle(requestId, f.word)
				require.NoError(t, err)
				require.Len(t, events, 1)
				require.False(t, round.IsStarted())
				require.True(t, round.IsEnded())
				require.Empty(t, round.PendingRequestId)

				event, ok := events[0].(domain.RoundSettled)
				require.True(t, ok)
				require.Equal(t, round.Id, event.Id)
				require.Equal(t, requestId, event.RequestId)
				require.Equal(t, f.word, event.RandomWord)
				require.Equal(t, f.expectedIndex, event.WinnerIndex)
				require.Equal(t, f.expectedWinner, event.Winner)
				require.Equal(t, entryFee*uint64(len(entries)), event.Payout)
				require.Equal(t, round.EndingTimestamp, event.Timestamp)
			}
		})

		t.Run("invalid", func(t *testing.T) {
			drawingRound := func() *domain.Round {
				round := newOpenRoundWithEntries(t)
				_, err := round.StartDraw(requestId)
				require.NoError(t, err)
				return round
			}

			fixtures := []struct {
				round       *domain.Round
				requestId   string
				expectedErr string
			}{
				{
					round:       newOpenRoundWithEntries(t),
					requestId:   requestId,
					expectedErr: "no draw pending for randomness request " + requestId,
				},
				{
					round:     drawingRound(),
					requestId: "unknown",
					expectedErr: "randomness request unknown does not match pending request " +
						requestId,
				},
			}

			for _, f := range fixtures {
				events, err := f.round.Settle(f.requestId, 12)
				require.EqualError(t, err, f.expectedErr)
				require.Empty(t, events)
			}

			// settling twice with the same request must fail
			round := drawingRound()
			events, err := round.Settle(requestId, 12)
			require.NoError(t, err)
			require.NotEmpty(t, events)

			events, err = round.Settle(requestId, 12)
			require.Error(t, err)
			require.Empty(t, events)
		})
	})
}

func testAbandonDraw(t *testing.T) {
	t.Run("abandon_draw", func(t *testing.T) {
		t.Run("valid", func(t *testing.T) {
			round := newOpenRoundWithEntries(t)
			events, err := round.StartDraw(requestId)
			require.NoError(t, err)
			require.NotEmpty(t, events)

			events, err = round.AbandonDraw("fulfillment timed out")
			require.NoError(t, err)
			require.Len(t, events, 1)
			require.True(t, round.IsOpen())
			require.Empty(t, round.PendingRequestId)
			require.Len(t, round.Entrants, len(entries))
			require.Equal(t, entryFee*uint64(len(entries)), round.PotAmount)

			event, ok := events[0].(domain.DrawAbandoned)
			require.True(t, ok)
			require.Equal(t, round.Id, event.Id)
			require.Equal(t, requestId, event.RequestId)
			require.Equal(t, "fulfillment timed out", event.Reason)

			// a late fulfillment for the abandoned request must be rejected
			settleEvents, err := round.Settle(requestId, 12)
			require.EqualError(
				t, err, "no draw pending for randomness request "+requestId,
			)
			require.Empty(t, settleEvents)
		})

		t.Run("invalid", func(t *testing.T) {
			round := newOpenRoundWithEntries(t)
			events, err := round.AbandonDraw("nothing pending")
			require.EqualError(t, err, "not in a valid stage to abandon the draw")
			require.Empty(t, events)

			_, err = round.StartDraw(requestId)
			require.NoError(t, err)

			// the reason is recorded with the event and must not be empty
			events, err = round.AbandonDraw("")
			require.EqualError(t, err, "missing abandon reason")
			require.Empty(t, events)
			require.True(t, round.IsDrawing())
			require.Equal(t, requestId, round.PendingRequestId)
		})
	})
}

func testParticipantAt(t *testing.T) {
	t.Run("participant_at", func(t *testing.T) {
		round := newOpenRoundWithEntries(t)

		participant, err := round.ParticipantAt(0)
		require.NoError(t, err)
		require.Equal(t, "alice", participant)

		participant, err = round.ParticipantAt(2)
		require.NoError(t, err)
		require.Equal(t, "carol", participant)

		fixtures := []struct {
			index       int
			expectedErr string
		}{
			{index: -1, expectedErr: "entrant index -1 out of range (3 entrants)"},
			{index: 3, expectedErr: "entrant index 3 out of range (3 entrants)"},
		}

		for _, f := range fixtures {
			participant, err := round.ParticipantAt(f.index)
			require.EqualError(t, err, f.expectedErr)
			require.Empty(t, participant)
		}
	})
}

func testReplay(t *testing.T) {
	t.Run("replay", func(t *testing.T) {
		round := newOpenRoundWithEntries(t)
		events, err := round.StartDraw(requestId)
		require.NoError(t, err)
		require.NotEmpty(t, events)

		events, err = round.Settle(requestId, 13)
		require.NoError(t, err)
		require.NotEmpty(t, events)

		replayed := domain.NewRoundFromEvents(round.Events())
		require.Equal(t, round.Id, replayed.Id)
		require.Equal(t, round.EntryFee, replayed.EntryFee)
		require.Equal(t, round.Stage, replayed.Stage)
		require.Equal(t, round.Entrants, replayed.Entrants)
		require.Equal(t, round.PotAmount, replayed.PotAmount)
		require.Equal(t, round.Winner, replayed.Winner)
		require.Equal(t, round.WinnerIndex, replayed.WinnerIndex)
		require.Equal(t, round.Payout, replayed.Payout)
		require.Equal(t, round.Events(), replayed.Events())
		require.Equal(t, uint(len(round.Events())), replayed.Version)
	})
}

func newOpenRoundWithEntries(t *testing.T) *domain.Round {
	round := domain.NewRound(entryFee)
	_, err := round.Open()
	require.NoError(t, err)
	for _, entry := range entries {
		_, err := round.RegisterEntry(entry)
		require.NoError(t, err)
	}
	return round
}
