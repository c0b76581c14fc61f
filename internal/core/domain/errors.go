package domain

import "fmt"

type ErrRoundNotOpen struct {
	Stage Stage
}

func (e ErrRoundNotOpen) Error() string {
	if e.Stage.Ended {
		return "round is not open to entries (round ended)"
	}
	return fmt.Sprintf("round is not open to entries (stage: %s)", e.Stage.Code)
}

type ErrInsufficientFee struct {
	Paid     uint64
	Required uint64
}

func (e ErrInsufficientFee) Error() string {
	return fmt.Sprintf("entry fee too low: paid %d, required %d", e.Paid, e.Required)
}

type ErrIndexOutOfRange struct {
	Index    int
	Entrants int
}

func (e ErrIndexOutOfRange) Error() string {
	return fmt.Sprintf("entrant index %d out of range (%d entrants)", e.Index, e.Entrants)
}

type ErrStaleFulfillment struct {
	RequestId string
	Pending   string
}

func (e ErrStaleFulfillment) Error() string {
	if len(e.Pending) <= 0 {
		return fmt.Sprintf("no draw pending for randomness request %s", e.RequestId)
	}
	return fmt.Sprintf(
		"randomness request %s does not match pending request %s", e.RequestId, e.Pending,
	)
}
