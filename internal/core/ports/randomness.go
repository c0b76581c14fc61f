package ports

import (
	"context"
	"fmt"
)

var (
	ErrUnknownRequest   = fmt.Errorf("unknown randomness request")
	ErrRequestFulfilled = fmt.Errorf("randomness request already fulfilled")
)

type RandomnessRequest struct {
	KeyId            string
	SubscriptionId   uint64
	NumWords         uint32
	MinConfirmations uint32
	CallbackBudget   uint64
}

type RandomnessFulfillment struct {
	RequestId string
	Words     []uint64
	Proof     []byte
}

// RandomnessSource issues asynchronous randomness requests and delivers
// their fulfillments on a channel. Implementations guarantee at most one
// fulfillment per issued request id and reject unknown or replayed ids.
type RandomnessSource interface {
	RequestRandomness(ctx context.Context, req RandomnessRequest) (string, error)
	Fulfill(ctx context.Context, requestId string, words []uint64, proof []byte) error
	Fulfillments() <-chan RandomnessFulfillment
	Close()
}
