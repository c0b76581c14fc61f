package httporacle

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rafflenet/raffled/internal/core/ports"
	log "github.com/sirupsen/logrus"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing/bn256"
	"go.dedis.ch/kyber/v3/sign/bls"
)

type randomnessRequest struct {
	KeyId            string `json:"key_id,omitempty"`
	SubscriptionId   uint64 `json:"subscription_id,omitempty"`
	NumWords         uint32 `json:"num_words"`
	MinConfirmations uint32 `json:"min_confirmations"`
	CallbackBudget   uint64 `json:"callback_budget"`
	CallbackUrl      string `json:"callback_url"`
}

type randomnessResponse struct {
	RequestId string `json:"request_id"`
}

// service is a client for a remote randomness oracle. Requests are
// registered with a POST, fulfillments come back through the callback
// endpoint of the web interface which forwards them to Fulfill. Deliveries
// must carry the oracle's BLS signature over the request id, the configured
// public key is what makes the public callback endpoint trustworthy.
type service struct {
	baseUrl     string
	callbackUrl string
	client      *http.Client
	suite       *bn256.Suite
	publicKey   kyber.Point

	lock         *sync.Mutex
	requests     map[string]bool // request id -> fulfilled
	fulfillments chan ports.RandomnessFulfillment
	done         chan struct{}
	closed       bool
	wg           sync.WaitGroup
}

func NewService(
	baseUrl, callbackUrl, publicKey string,
) (ports.RandomnessSource, error) {
	if len(baseUrl) <= 0 {
		return nil, fmt.Errorf("missing oracle url")
	}
	if len(callbackUrl) <= 0 {
		return nil, fmt.Errorf("missing callback url")
	}
	if len(publicKey) <= 0 {
		return nil, fmt.Errorf("missing oracle public key")
	}

	buf, err := hex.DecodeString(publicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid oracle public key: %s", err)
	}
	suite := bn256.NewSuite()
	point := suite.G2().Point()
	if err := point.UnmarshalBinary(buf); err != nil {
		return nil, fmt.Errorf("invalid oracle public key: %s", err)
	}

	return &service{
		baseUrl:      strings.TrimSuffix(baseUrl, "/"),
		callbackUrl:  callbackUrl,
		client:       &http.Client{Timeout: 15 * time.Second},
		suite:        suite,
		publicKey:    point,
		lock:         &sync.Mutex{},
		requests:     make(map[string]bool),
		fulfillments: make(chan ports.RandomnessFulfillment),
		done:         make(chan struct{}),
	}, nil
}

func (s *service) RequestRandomness(
	ctx context.Context, req ports.RandomnessRequest,
) (string, error) {
	body, err := json.Marshal(randomnessRequest{
		KeyId:            req.KeyId,
		SubscriptionId:   req.SubscriptionId,
		NumWords:         req.NumWords,
		MinConfirmations: req.MinConfirmations,
		CallbackBudget:   req.CallbackBudget,
		CallbackUrl:      s.callbackUrl,
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1/randomness/requests", s.baseUrl)
	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, url, bytes.NewReader(body),
	)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to reach oracle: %s", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		buf, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf(
			"oracle rejected randomness request: %d %s", resp.StatusCode, string(buf),
		)
	}

	var oracleResp randomnessResponse
	if err := json.NewDecoder(resp.Body).Decode(&oracleResp); err != nil {
		return "", fmt.Errorf("failed to decode oracle response: %s", err)
	}
	if len(oracleResp.RequestId) <= 0 {
		return "", fmt.Errorf("oracle returned an empty request id")
	}

	s.lock.Lock()
	s.requests[oracleResp.RequestId] = false
	s.lock.Unlock()

	log.Debugf("registered randomness request %s with oracle", oracleResp.RequestId)
	return oracleResp.RequestId, nil
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
	fulfilled, ok := s.requests[requestId]
	if !ok {
		s.lock.Unlock()
		return ports.ErrUnknownRequest
	}
	if fulfilled {
		s.lock.Unlock()
		return ports.ErrRequestFulfilled
	}
	if len(proof) <= 0 {
		s.lock.Unlock()
		return fmt.Errorf("missing proof for request %s", requestId)
	}
	if err := bls.Verify(s.suite, s.publicKey, []byte(requestId), proof); err != nil {
		s.lock.Unlock()
		return fmt.Errorf("invalid proof for request %s: %s", requestId, err)
	}
	s.requests[requestId] = true
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
