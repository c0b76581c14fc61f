package application

import "fmt"

type ErrUpkeepNotNeeded struct {
	Status DrawStatus
}

func (e ErrUpkeepNotNeeded) Error() string {
	return fmt.Sprintf(
		"upkeep not needed (stage: %s, entrants: %d, pot: %d, elapsed: %d of %d seconds)",
		e.Status.Stage, e.Status.EntrantCount, e.Status.PotAmount,
		e.Status.Elapsed, e.Status.Interval,
	)
}

type ErrTransferFailed struct {
	Winner string
	Amount uint64
	Err    error
}

func (e ErrTransferFailed) Error() string {
	return fmt.Sprintf("failed to transfer %d to winner %s: %s", e.Amount, e.Winner, e.Err)
}

func (e ErrTransferFailed) Unwrap() error {
	return e.Err
}
