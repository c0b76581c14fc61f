package signeroracle_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rafflenet/raffled/internal/core/ports"
	signeroracle "github.com/rafflenet/raffled/internal/infrastructure/oracle/signer"
	"github.com/stretchr/testify/require"
)

func TestRequestAndFulfill(t *testing.T) {
	svc, err := signeroracle.NewService(20 * time.Millisecond)
	require.NoError(t, err)

	ctx := context.Background()
	requestId, err := svc.RequestRandomness(ctx, ports.RandomnessRequest{
		NumWords:         2,
		MinConfirmations: 3,
	})
	require.NoError(t, err)
	require.NotEmpty(t, requestId)

	var fulfillment ports.RandomnessFulfillment
	select {
	case fulfillment = <-svc.Fulfillments():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fulfillment")
	}

	require.Equal(t, requestId, fulfillment.RequestId)
	require.Len(t, fulfillment.Words, 2)
	require.NotEmpty(t, fulfillment.Proof)

	// a request is fulfilled at most once
	err = svc.Fulfill(ctx, requestId, []uint64{42}, nil)
	require.ErrorIs(t, err, ports.ErrRequestFulfilled)

	err = svc.Fulfill(ctx, "af62ab05-4a40-4c04-bb5e-4b7f18290707", []uint64{42}, nil)
	require.ErrorIs(t, err, ports.ErrUnknownRequest)

	svc.Close()
}

func TestInvalidRequests(t *testing.T) {
	_, err := signeroracle.NewService(0)
	require.Error(t, err)

	svc, err := signeroracle.NewService(10 * time.Millisecond)
	require.NoError(t, err)
	defer svc.Close()

	err = svc.Fulfill(context.Background(), "", nil, nil)
	require.EqualError(t, err, "missing random words")
}

func TestRejectForgedFulfillments(t *testing.T) {
	svc, err := signeroracle.NewService(10 * time.Millisecond)
	require.NoError(t, err)
	defer svc.Close()

	// a high confirmation depth keeps the request pending for the whole test
	ctx := context.Background()
	requestId, err := svc.RequestRandomness(ctx, ports.RandomnessRequest{
		NumWords:         1,
		MinConfirmations: 1000,
	})
	require.NoError(t, err)

	// deliveries without the signature over the request id are rejected,
	// the pending request id is public so anyone can post a fulfillment
	err = svc.Fulfill(ctx, requestId, []uint64{12345}, nil)
	require.EqualError(t, err, fmt.Sprintf("missing proof for request %s", requestId))

	err = svc.Fulfill(ctx, requestId, []uint64{12345}, []byte("not a signature"))
	require.ErrorContains(t, err, "invalid proof for request "+requestId)

	// nothing was emitted and the request is still pending
	select {
	case fulfillment := <-svc.Fulfillments():
		t.Fatalf("unexpected fulfillment for request %s", fulfillment.RequestId)
	default:
	}
}
