package domain

const RoundTopic = "round"

type EventType int

const (
	EventTypeUndefined EventType = iota
	EventTypeRoundStarted
	EventTypeEntryRecorded
	EventTypeDrawRequested
	EventTypeRoundSettled
	EventTypeDrawAbandoned
)

type RoundEvent interface {
	GetTopic() string
	GetType() EventType
}

func (e RoundStarted) GetTopic() string  { return RoundTopic }
func (e EntryRecorded) GetTopic() string { return RoundTopic }
func (e DrawRequested) GetTopic() string { return RoundTopic }
func (e RoundSettled) GetTopic() string  { return RoundTopic }
func (e DrawAbandoned) GetTopic() string { return RoundTopic }

func (e RoundStarted) GetType() EventType  { return EventTypeRoundStarted }
func (e EntryRecorded) GetType() EventType { return EventTypeEntryRecorded }
func (e DrawRequested) GetType() EventType { return EventTypeDrawRequested }
func (e RoundSettled) GetType() EventType  { return EventTypeRoundSettled }
func (e DrawAbandoned) GetType() EventType { return EventTypeDrawAbandoned }

type RoundStarted struct {
	Id        string
	EntryFee  uint64
	Timestamp int64
}

type EntryRecorded struct {
	Id          string
	Participant string
	FeePaid     uint64
	Timestamp   int64
}

type DrawRequested struct {
	Id        string
	RequestId string
	Timestamp int64
}

type RoundSettled struct {
	Id          string
	RequestId   string
	RandomWord  uint64
	WinnerIndex uint32
	Winner      string
	Payout      uint64
	Timestamp   int64
}

type DrawAbandoned struct {
	Id        string
	RequestId string
	Reason    string
	Timestamp int64
}
