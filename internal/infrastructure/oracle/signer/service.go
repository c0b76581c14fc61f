package signeroracle

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rafflenet/raffled/internal/core/ports"
	log "github.com/sirupsen/logrus"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing/bn256"
	"go.dedis.ch/kyber/v3/sign/bls"
	"go.dedis.ch/kyber/v3/util/random"
)

type request struct {
	numWords  uint32
	fulfilled bool
}

// service is an in-process randomness source. It signs the request id with
// a BLS key after a simulated confirmation delay, the signature doubles as
// the proof and the random words are derived from it.
type service struct {
	suite            *bn256.Suite
	private          kyber.Scalar
	public           kyber.Point
	confirmationTime time.Duration

	lock         *sync.Mutex
	requests     map[string]*request
	fulfillments chan ports.RandomnessFulfillment
	done         chan struct{}
	closed       bool
	wg           sync.WaitGroup
}

func NewService(confirmationTime time.Duration) (ports.RandomnessSource, error) {
	if confirmationTime <= 0 {
		return nil, fmt.Errorf("missing confirmation time")
	}

	suite := bn256.NewSuite()
	private, public := bls.NewKeyPair(suite, random.New())

	return &service{
		suite:            suite,
		private:          private,
		public:           public,
		confirmationTime: confirmationTime,
		lock:             &sync.Mutex{},
		requests:         make(map[string]*request),
		fulfillments:     make(chan ports.RandomnessFulfillment),
		done:             make(chan struct{}),
	}, nil
}

func (s *service) RequestRandomness(
	ctx context.Context, req ports.RandomnessRequest,
) (string, error) {
	numWords := req.NumWords
	if numWords == 0 {
		numWords = 1
	}
	minConfirmations := req.MinConfirmations
	if minConfirmations == 0 {
		minConfirmations = 1
	}

	requestId := uuid.New().String()

	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return "", fmt.Errorf("randomness source is closed")
	}
	s.requests[requestId] = &request{numWords: numWords}
	s.wg.Add(1)
	s.lock.Unlock()

	delay := s.confirmationTime * time.Duration(minConfirmations)
	go s.deliver(requestId, delay)

	log.Debugf(
		"registered randomness request %s, fulfilling in %s", requestId, delay,
	)
	return requestId, nil
}

func (s *service) Fulfill(
	ctx context.Context, requestId string, words []uint64, proof []byte,
) error {
	if len(words) == 0 {
		return fmt.Errorf("missing random words")
	}

	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return fmt.Errorf("randomness source is closed")
	}
	req, ok := s.requests[requestId]
	if !ok {
		s.lock.Unlock()
		return ports.ErrUnknownRequest
	}
	if req.fulfilled {
		s.lock.Unlock()
		return ports.ErrRequestFulfilled
	}
	if len(proof) <= 0 {
		s.lock.Unlock()
		return fmt.Errorf("missing proof for request %s", requestId)
	}
	if err := bls.Verify(s.suite, s.public, []byte(requestId), proof); err != nil {
		s.lock.Unlock()
		return fmt.Errorf("invalid proof for request %s: %s", requestId, err)
	}
	// the words are a pure function of the signature, anything else is forged
	if expected := wordsFromSeed(proof, req.numWords); !slices.Equal(words, expected) {
		s.lock.Unlock()
		return fmt.Errorf("words do not match proof for request %s", requestId)
	}
	req.fulfilled = true
	// the waitgroup keeps Close from closing the channel under the send below
	s.wg.Add(1)
	s.lock.Unlock()

	defer s.wg.Done()

	select {
	case <-s.done:
		return fmt.Errorf("randomness source is closed")
	case s.fulfillments <- ports.RandomnessFulfillment{
		RequestId: requestId,
		Words:     words,
		Proof:     proof,
	}:
	}
	return nil
}

func (s *service) Fulfillments() <-chan ports.RandomnessFulfillment {
	return s.fulfillments
}

func (s *service) Close() {
	s.lock.Lock()
	s.closed = true
	s.lock.Unlock()

	close(s.done)
	s.wg.Wait()
	close(s.fulfillments)
}

func (s *service) deliver(requestId string, delay time.Duration) {
	defer s.wg.Done()

	select {
	case <-s.done:
		return
	case <-time.After(delay):
	}

	s.lock.Lock()
	req, ok := s.requests[requestId]
	if !ok || req.fulfilled {
		s.lock.Unlock()
		return
	}
	numWords := req.numWords
	s.lock.Unlock()

	sig, err := bls.Sign(s.suite, s.private, []byte(requestId))
	if err != nil {
		log.WithError(err).Error("failed to sign randomness request")
		return
	}

	words := wordsFromSeed(sig, numWords)
	if err := s.Fulfill(context.Background(), requestId, words, sig); err != nil {
		log.WithError(err).Warnf("failed to fulfill randomness request %s", requestId)
	}
}

func wordsFromSeed(seed []byte, numWords uint32) []uint64 {
	words := make([]uint64, 0, numWords)
	for i := uint32(0); i < numWords; i++ {
		buf := make([]byte, 0, len(seed)+4)
		buf = append(buf, seed...)
		buf = binary.BigEndian.AppendUint32(buf, i)
		hash := sha256.Sum256(buf)
		words = append(words, binary.BigEndian.Uint64(hash[:8]))
	}
	return words
}
