package webhook_notifier

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rafflenet/raffled/internal/core/ports"
	"github.com/sirupsen/logrus"
)

type webhookNotifier struct {
	urls   []string
	client *http.Client
}

func New(urls []string) ports.Notifier {
	return &webhookNotifier{
		urls:   urls,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify posts the JSON message to every configured webhook. The recipient
// is forwarded in the X-Raffle-Recipient header so receivers can route it.
func (n *webhookNotifier) Notify(ctx context.Context, to any, message string) error {
	recipient, ok := to.(string)
	if !ok {
		return fmt.Errorf("recipient must be a string")
	}

	if len(n.urls) == 0 {
		return fmt.Errorf("no webhook configured")
	}

	var wg sync.WaitGroup
	atLeastOneSuccess := atomic.Bool{}

	for _, url := range n.urls {
		wg.Add(1)
		go func(webhookURL string) {
			defer wg.Done()

			req, err := http.NewRequestWithContext(
				ctx, http.MethodPost, webhookURL, strings.NewReader(message),
			)
			if err != nil {
				logrus.WithError(err).Warnf("failed to build request for webhook %s", webhookURL)
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Raffle-Recipient", recipient)

			resp, err := n.client.Do(req)
			if err != nil {
				logrus.WithError(err).Warnf("failed to reach webhook %s", webhookURL)
				return
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 300 {
				logrus.Warnf("webhook %s replied with status %d", webhookURL, resp.StatusCode)
				return
			}

			atLeastOneSuccess.Store(true)
		}(url)
	}

	wg.Wait()

	if !atLeastOneSuccess.Load() {
		return fmt.Errorf("failed to publish to any webhook")
	}

	return nil
}
