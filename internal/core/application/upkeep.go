package application

import (
	"context"
	"fmt"
	"time"

	"github.com/rafflenet/raffled/internal/core/domain"
	"github.com/rafflenet/raffled/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

func (s *raffleService) CheckUpkeep(ctx context.Context) (bool, DrawStatus) {
	s.currentRoundLock.Lock()
	defer s.currentRoundLock.Unlock()
	return s.checkUpkeep()
}

// checkUpkeep must be called with the current round lock held.
func (s *raffleService) checkUpkeep() (bool, DrawStatus) {
	round := s.currentRound
	status := DrawStatus{
		RoundId:      round.Id,
		Stage:        round.Stage.Code,
		EntrantCount: len(round.Entrants),
		PotAmount:    round.PotAmount,
		Elapsed:      time.Now().Unix() - round.StartingTimestamp,
		Interval:     int64(s.drawInterval.Seconds()),
	}

	needed := round.IsOpen() &&
		status.Elapsed >= status.Interval &&
		status.EntrantCount > 0 &&
		status.PotAmount > 0
	return needed, status
}

func (s *raffleService) PerformUpkeep(ctx context.Context) (string, error) {
	s.currentRoundLock.Lock()
	defer s.currentRoundLock.Unlock()

	// revalidate, the state may have changed since any external check
	needed, status := s.checkUpkeep()
	if !needed {
		return "", ErrUpkeepNotNeeded{status}
	}

	round := s.currentRound
	backup := domain.NewRoundFromEvents(round.Events())
	requestId, err := s.randomness.RequestRandomness(ctx, ports.RandomnessRequest{
		KeyId:            s.oracleKeyId,
		SubscriptionId:   s.oracleSubscriptionId,
		NumWords:         s.numWords,
		MinConfirmations: s.minConfirmations,
		CallbackBudget:   s.callbackBudget,
	})
	if err != nil {
		return "", fmt.Errorf("failed to request randomness: %s", err)
	}

	events, err := round.StartDraw(requestId)
	if err != nil {
		return "", err
	}

	if err := s.saveEvents(ctx, round.Id, events); err != nil {
		// restore the open stage, the orphaned request is rejected as stale
		s.currentRound = backup
		return "", fmt.Errorf("failed to store draw request: %s", err)
	}

	s.scheduleWatchdog(round)

	log.Infof("draw requested for round %s (request: %s)", round.Id, requestId)
	return requestId, nil
}

func (s *raffleService) AbandonDraw(ctx context.Context, reason string) (string, error) {
	s.currentRoundLock.Lock()
	defer s.currentRoundLock.Unlock()
	return s.abandonDraw(ctx, reason)
}

// abandonDraw must be called with the current round lock held.
func (s *raffleService) abandonDraw(ctx context.Context, reason string) (string, error) {
	round := s.currentRound
	requestId := round.PendingRequestId

	events, err := round.AbandonDraw(reason)
	if err != nil {
		return "", err
	}

	if err := s.saveEvents(ctx, round.Id, events); err != nil {
		return "", fmt.Errorf("failed to store abandoned draw: %s", err)
	}

	log.Warnf(
		"abandoned randomness request %s for round %s: %s", requestId, round.Id, reason,
	)
	return requestId, nil
}

func (s *raffleService) runUpkeep() {
	ctx := context.Background()

	needed, _ := s.CheckUpkeep(ctx)
	if !needed {
		return
	}

	if _, err := s.PerformUpkeep(ctx); err != nil {
		log.WithError(err).Warn("failed to perform upkeep")
	}
}

// scheduleWatchdog arms a one-shot abandon check for the pending draw. It
// fires at the fulfillment deadline, or right away for a resumed round
// that outlived its deadline while the daemon was down.
func (s *raffleService) scheduleWatchdog(round *domain.Round) {
	if s.drawTimeout <= 0 || !round.IsDrawing() {
		return
	}

	roundId := round.Id
	requestId := round.PendingRequestId
	deadline := round.DrawTimestamp + int64(s.drawTimeout.Seconds())
	if !s.scheduler.AfterNow(deadline) {
		deadline = s.scheduler.AddNow(1)
	}

	if err := s.scheduler.ScheduleTaskOnce(deadline, func() {
		s.watchDraw(roundId, requestId)
	}); err != nil {
		log.WithError(err).Warnf(
			"failed to schedule abandon check for randomness request %s", requestId,
		)
	}
}

// watchDraw abandons the draw if the given request is still the pending one
// when its deadline fires, then requests fresh randomness for the round.
func (s *raffleService) watchDraw(roundId, requestId string) {
	ctx := context.Background()

	s.currentRoundLock.Lock()
	round := s.currentRound
	if round == nil || round.Id != roundId || !round.IsDrawing() ||
		round.PendingRequestId != requestId {
		s.currentRoundLock.Unlock()
		return
	}

	reason := fmt.Sprintf("no fulfillment within %s", s.drawTimeout)
	if _, err := s.abandonDraw(ctx, reason); err != nil {
		log.WithError(err).Warn("failed to abandon stuck draw")
		s.currentRoundLock.Unlock()
		return
	}
	s.currentRoundLock.Unlock()

	// the draw interval elapsed long ago, reissue without waiting for the
	// next upkeep tick
	if _, err := s.PerformUpkeep(ctx); err != nil {
		log.WithError(err).Warn("failed to request fresh randomness for abandoned draw")
	}
}
