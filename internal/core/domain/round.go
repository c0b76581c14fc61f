package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	UndefinedStage RoundStage = iota
	OpenStage
	DrawingStage
)

type RoundStage int

func (s RoundStage) String() string {
	switch s {
	case OpenStage:
		return "OPEN"
	case DrawingStage:
		return "DRAWING"
	default:
		return "UNDEFINED"
	}
}

type Stage struct {
	Code  RoundStage
	Ended bool
}

type Round struct {
	Id                string
	EntryFee          uint64
	StartingTimestamp int64
	EndingTimestamp   int64
	Stage             Stage
	Entrants          []string
	PotAmount         uint64
	PendingRequestId  string
	DrawTimestamp     int64
	RandomWord        uint64
	WinnerIndex       uint32
	Winner            string
	Payout            uint64
	Version           uint
	changes           []RoundEvent
}

func NewRound(entryFee uint64) *Round {
	return &Round{
		Id:       uuid.New().String(),
		EntryFee: entryFee,
		Entrants: make([]string, 0),
		changes:  make([]RoundEvent, 0),
	}
}

func NewRoundFromEvents(events []RoundEvent) *Round {
	r := &Round{}

	for _, event := range events {
		r.On(event, true)
	}

	r.changes = append([]RoundEvent{}, events...)

	return r
}

func (r *Round) Events() []RoundEvent {
	return r.changes
}

func (r *Round) On(event RoundEvent, replayed bool) {
	switch e := event.(type) {
	case RoundStarted:
		r.Stage.Code = OpenStage
		r.Id = e.Id
		r.EntryFee = e.EntryFee
		r.StartingTimestamp = e.Timestamp
	case EntryRecorded:
		if r.Entrants == nil {
			r.Entrants = make([]string, 0)
		}
		r.Entrants = append(r.Entrants, e.Participant)
		r.PotAmount += r.EntryFee
	case DrawRequested:
		r.Stage.Code = DrawingStage
		r.PendingRequestId = e.RequestId
		r.DrawTimestamp = e.Timestamp
	case RoundSettled:
		r.Stage.Ended = true
		r.PendingRequestId = ""
		r.RandomWord = e.RandomWord
		r.WinnerIndex = e.WinnerIndex
		r.Winner = e.Winner
		r.Payout = e.Payout
		r.EndingTimestamp = e.Timestamp
	case DrawAbandoned:
		r.Stage.Code = OpenStage
		r.PendingRequestId = ""
	}

	if replayed {
		r.Version++
	}
}

func (r *Round) Open() ([]RoundEvent, error) {
	empty := Stage{}
	if r.Stage != empty {
		return nil, fmt.Errorf("not in a valid stage to open the round")
	}
	if r.EntryFee <= 0 {
		return nil, fmt.Errorf("missing entry fee")
	}

	event := RoundStarted{
		Id:        r.Id,
		EntryFee:  r.EntryFee,
		Timestamp: time.Now().Unix(),
	}
	r.raise(event)

	return []RoundEvent{event}, nil
}

func (r *Round) RegisterEntry(entry Entry) ([]RoundEvent, error) {
	if !r.IsOpen() {
		return nil, ErrRoundNotOpen{r.Stage}
	}
	if err := entry.validate(); err != nil {
		return nil, err
	}
	if entry.FeePaid < r.EntryFee {
		return nil, ErrInsufficientFee{Paid: entry.FeePaid, Required: r.EntryFee}
	}

	event := EntryRecorded{
		Id:          r.Id,
		Participant: entry.Participant,
		FeePaid:     entry.FeePaid,
		Timestamp:   time.Now().Unix(),
	}
	r.raise(event)

	return []RoundEvent{event}, nil
}

func (r *Round) StartDraw(requestId string) ([]RoundEvent, error) {
	if len(requestId) <= 0 {
		return nil, fmt.Errorf("missing randomness request id")
	}
	if !r.IsOpen() {
		return nil, fmt.Errorf("not in a valid stage to start the draw")
	}
	if len(r.Entrants) <= 0 {
		return nil, fmt.Errorf("no entrants registered")
	}
	if r.PotAmount <= 0 {
		return nil, fmt.Errorf("empty pot")
	}

	event := DrawRequested{
		Id:        r.Id,
		RequestId: requestId,
		Timestamp: time.Now().Unix(),
	}
	r.raise(event)

	return []RoundEvent{event}, nil
}

// DrawResult maps a random word to the outcome it determines. The mapping
// carries a modulo bias that is negligible for realistic entrant counts.
func (r *Round) DrawResult(word uint64) (uint32, string, uint64, error) {
	if len(r.Entrants) <= 0 {
		return 0, "", 0, fmt.Errorf("no entrants registered")
	}
	index := uint32(word % uint64(len(r.Entrants)))
	return index, r.Entrants[index], r.PotAmount, nil
}

func (r *Round) Settle(requestId string, word uint64) ([]RoundEvent, error) {
	if !r.IsDrawing() || requestId != r.PendingRequestId {
		return nil, ErrStaleFulfillment{RequestId: requestId, Pending: r.PendingRequestId}
	}

	index, winner, payout, err := r.DrawResult(word)
	if err != nil {
		return nil, err
	}

	event := RoundSettled{
		Id:          r.Id,
		RequestId:   requestId,
		RandomWord:  word,
		WinnerIndex: index,
		Winner:      winner,
		Payout:      payout,
		Timestamp:   time.Now().Unix(),
	}
	r.raise(event)

	return []RoundEvent{event}, nil
}

func (r *Round) AbandonDraw(reason string) ([]RoundEvent, error) {
	if len(reason) <= 0 {
		return nil, fmt.Errorf("missing abandon reason")
	}
	if !r.IsDrawing() {
		return nil, fmt.Errorf("not in a valid stage to abandon the draw")
	}

	event := DrawAbandoned{
		Id:        r.Id,
		RequestId: r.PendingRequestId,
		Reason:    reason,
		Timestamp: time.Now().Unix(),
	}
	r.raise(event)

	return []RoundEvent{event}, nil
}

func (r *Round) ParticipantAt(index int) (string, error) {
	if index < 0 || index >= len(r.Entrants) {
		return "", ErrIndexOutOfRange{Index: index, Entrants: len(r.Entrants)}
	}
	return r.Entrants[index], nil
}

func (r *Round) IsStarted() bool {
	empty := Stage{}
	return !r.IsEnded() && r.Stage != empty
}

func (r *Round) IsOpen() bool {
	return !r.IsEnded() && r.Stage.Code == OpenStage
}

func (r *Round) IsDrawing() bool {
	return !r.IsEnded() && r.Stage.Code == DrawingStage
}

func (r *Round) IsEnded() bool {
	return r.Stage.Ended
}

func (r *Round) EntrantCount() int {
	return len(r.Entrants)
}

func (r *Round) raise(event RoundEvent) {
	if r.changes == nil {
		r.changes = make([]RoundEvent, 0)
	}
	r.changes = append(r.changes, event)
	r.On(event, false)
}
