package domain

import "fmt"

type Entry struct {
	Participant string
	FeePaid     uint64
}

func (e Entry) validate() error {
	if len(e.Participant) <= 0 {
		return fmt.Errorf("missing participant")
	}
	return nil
}
