package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rafflenet/raffled/internal/core/domain"
	"github.com/rafflenet/raffled/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

type raffleService struct {
	entryFee             uint64
	drawInterval         time.Duration
	drawTimeout          time.Duration
	upkeepInterval       time.Duration
	numWords             uint32
	minConfirmations     uint32
	callbackBudget       uint64
	oracleKeyId          string
	oracleSubscriptionId uint64

	repoManager ports.RepoManager
	randomness  ports.RandomnessSource
	treasury    ports.Treasury
	scheduler   ports.SchedulerService
	notifier    ports.Notifier

	eventsCh chan domain.RoundEvent

	currentRoundLock sync.Mutex
	currentRound     *domain.Round
	lastResult       *WinnerRecord
}

func NewService(
	entryFee uint64,
	drawInterval, drawTimeout, upkeepInterval time.Duration,
	numWords, minConfirmations uint32,
	callbackBudget uint64,
	oracleKeyId string,
	oracleSubscriptionId uint64,
	repoManager ports.RepoManager,
	randomnessSvc ports.RandomnessSource,
	treasurySvc ports.Treasury,
	schedulerSvc ports.SchedulerService,
	notifierSvc ports.Notifier,
) (Service, error) {
	if entryFee <= 0 {
		return nil, fmt.Errorf("missing entry fee")
	}
	if drawInterval <= 0 {
		return nil, fmt.Errorf("missing draw interval")
	}
	if upkeepInterval <= 0 {
		return nil, fmt.Errorf("missing upkeep interval")
	}
	if numWords <= 0 {
		numWords = 1
	}

	svc := &raffleService{
		entryFee:             entryFee,
		drawInterval:         drawInterval,
		drawTimeout:          drawTimeout,
		upkeepInterval:       upkeepInterval,
		numWords:             numWords,
		minConfirmations:     minConfirmations,
		callbackBudget:       callbackBudget,
		oracleKeyId:          oracleKeyId,
		oracleSubscriptionId: oracleSubscriptionId,
		repoManager:          repoManager,
		randomness:           randomnessSvc,
		treasury:             treasurySvc,
		scheduler:            schedulerSvc,
		notifier:             notifierSvc,
		eventsCh:             make(chan domain.RoundEvent),
		currentRoundLock:     sync.Mutex{},
	}

	repoManager.EventBus().RegisterEventsHandler(
		domain.RoundTopic, func(events []domain.RoundEvent) {
			round := domain.NewRoundFromEvents(events)

			go func() {
				defer func() {
					if r := recover(); r != nil {
						log.Errorf("recovered from panic in propagateEvents: %v", r)
					}
				}()

				svc.propagateEvents(events)
			}()

			if !round.IsEnded() {
				return
			}

			go func() {
				defer func() {
					if r := recover(); r != nil {
						log.Errorf("recovered from panic in notifyWinner: %v", r)
					}
				}()

				svc.notifyWinner(round)
			}()
		},
	)

	return svc, nil
}

func (s *raffleService) Start() error {
	log.Debug("starting raffle service")
	if err := s.resume(); err != nil {
		return err
	}

	s.scheduler.Start()
	if err := s.scheduler.ScheduleTaskEvery(s.upkeepInterval, s.runUpkeep); err != nil {
		return err
	}

	go s.listenToFulfillments()
	return nil
}

func (s *raffleService) Stop() {
	s.scheduler.Stop()
	s.randomness.Close()
	log.Debug("closed connection to randomness source")
	s.treasury.Close()
	log.Debug("closed connection to treasury")
	s.repoManager.Close()
	log.Debug("closed connection to db")
	close(s.eventsCh)
}

func (s *raffleService) Enter(
	ctx context.Context, participant string, feePaid uint64,
) error {
	s.currentRoundLock.Lock()
	defer s.currentRoundLock.Unlock()

	round := s.currentRound
	backup := domain.NewRoundFromEvents(round.Events())

	events, err := round.RegisterEntry(domain.Entry{
		Participant: participant,
		FeePaid:     feePaid,
	})
	if err != nil {
		return err
	}

	if err := s.treasury.Deposit(ctx, participant, feePaid); err != nil {
		s.currentRound = backup
		return fmt.Errorf("failed to collect entry fee: %s", err)
	}

	if err := s.saveEvents(ctx, round.Id, events); err != nil {
		s.currentRound = backup
		if refundErr := s.treasury.Transfer(ctx, participant, feePaid); refundErr != nil {
			log.WithError(refundErr).Error(
				"failed to refund entry fee, collected funds are kept as surplus",
			)
		} else {
			log.Debugf("refunded entry fee to %s after failed persist", participant)
		}
		return fmt.Errorf("failed to store entry: %s", err)
	}

	log.Debugf("registered entry for %s in round %s", participant, round.Id)
	return nil
}

func (s *raffleService) GetInfo(ctx context.Context) (*ServiceInfo, error) {
	s.currentRoundLock.Lock()
	defer s.currentRoundLock.Unlock()

	round := s.currentRound
	return &ServiceInfo{
		RoundId:          round.Id,
		Stage:            round.Stage.Code.String(),
		EntryFee:         round.EntryFee,
		PotAmount:        round.PotAmount,
		EntrantCount:     len(round.Entrants),
		RoundStartTime:   round.StartingTimestamp,
		NextDrawTime:     round.StartingTimestamp + int64(s.drawInterval.Seconds()),
		PendingRequestId: round.PendingRequestId,
		RecentWinner:     s.lastResult,
	}, nil
}

func (s *raffleService) GetCurrentRound(ctx context.Context) (*domain.Round, error) {
	s.currentRoundLock.Lock()
	defer s.currentRoundLock.Unlock()
	return domain.NewRoundFromEvents(s.currentRound.Events()), nil
}

func (s *raffleService) GetRoundById(ctx context.Context, id string) (*domain.Round, error) {
	return s.repoManager.Rounds().GetRoundWithId(ctx, id)
}

func (s *raffleService) GetParticipant(ctx context.Context, index int) (string, error) {
	s.currentRoundLock.Lock()
	defer s.currentRoundLock.Unlock()
	return s.currentRound.ParticipantAt(index)
}

func (s *raffleService) GetLastWinner(ctx context.Context) (*WinnerRecord, error) {
	s.currentRoundLock.Lock()
	defer s.currentRoundLock.Unlock()
	return s.lastResult, nil
}

func (s *raffleService) GetRecentWinners(
	ctx context.Context, limit int,
) ([]WinnerRecord, error) {
	rounds, err := s.repoManager.Rounds().GetSettledRounds(ctx, limit)
	if err != nil {
		return nil, err
	}

	winners := make([]WinnerRecord, 0, len(rounds))
	for _, round := range rounds {
		winners = append(winners, WinnerRecord{
			RoundId:     round.Id,
			Winner:      round.Winner,
			WinnerIndex: round.WinnerIndex,
			Payout:      round.Payout,
			Timestamp:   round.EndingTimestamp,
		})
	}
	return winners, nil
}

func (s *raffleService) GetEventsChannel(ctx context.Context) <-chan domain.RoundEvent {
	return s.eventsCh
}

func (s *raffleService) listenToFulfillments() {
	for fulfillment := range s.randomness.Fulfillments() {
		if err := s.handleFulfillment(context.Background(), fulfillment); err != nil {
			log.WithError(err).Warn("failed to settle draw")
		}
	}
}

func (s *raffleService) handleFulfillment(
	ctx context.Context, fulfillment ports.RandomnessFulfillment,
) error {
	s.currentRoundLock.Lock()
	defer s.currentRoundLock.Unlock()

	if len(fulfillment.Words) <= 0 {
		return fmt.Errorf(
			"empty fulfillment for randomness request %s", fulfillment.RequestId,
		)
	}

	round := s.currentRound
	// the randomness source already filters replays, revalidate anyway
	if !round.IsDrawing() || fulfillment.RequestId != round.PendingRequestId {
		return domain.ErrStaleFulfillment{
			RequestId: fulfillment.RequestId,
			Pending:   round.PendingRequestId,
		}
	}

	word := fulfillment.Words[0]
	index, winner, payout, err := round.DrawResult(word)
	if err != nil {
		return err
	}

	if err := s.treasury.Transfer(ctx, winner, payout); err != nil {
		// the round stays in drawing stage so the fulfillment can be redelivered
		return ErrTransferFailed{Winner: winner, Amount: payout, Err: err}
	}

	events, err := round.Settle(fulfillment.RequestId, word)
	if err != nil {
		return err
	}

	if err := s.saveEvents(ctx, round.Id, events); err != nil {
		log.WithError(err).Error("failed to store settled round")
	}

	s.lastResult = &WinnerRecord{
		RoundId:     round.Id,
		Winner:      winner,
		WinnerIndex: index,
		Payout:      payout,
		Timestamp:   round.EndingTimestamp,
	}

	log.Infof(
		"round %s settled: winner %s (index %d) paid %d", round.Id, winner, index, payout,
	)

	return s.openNewRound(ctx)
}

func (s *raffleService) openNewRound(ctx context.Context) error {
	round := domain.NewRound(s.entryFee)
	events, err := round.Open()
	if err != nil {
		return err
	}
	s.currentRound = round

	if err := s.saveEvents(ctx, round.Id, events); err != nil {
		log.WithError(err).Warn("failed to store new round events")
	}

	log.Debugf("opened new round %s", round.Id)
	return nil
}

func (s *raffleService) resume() error {
	ctx := context.Background()

	lastSettled, err := s.repoManager.Rounds().GetLastSettledRound(ctx)
	if err != nil {
		return fmt.Errorf("failed to get last settled round: %s", err)
	}
	if lastSettled != nil {
		s.lastResult = &WinnerRecord{
			RoundId:     lastSettled.Id,
			Winner:      lastSettled.Winner,
			WinnerIndex: lastSettled.WinnerIndex,
			Payout:      lastSettled.Payout,
			Timestamp:   lastSettled.EndingTimestamp,
		}
	}

	current, err := s.repoManager.Rounds().GetCurrentRound(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current round: %s", err)
	}
	if current == nil {
		return s.openNewRound(ctx)
	}

	round, err := s.repoManager.Events().Load(ctx, current.Id)
	if err != nil {
		return fmt.Errorf("failed to load events for round %s: %s", current.Id, err)
	}
	s.currentRound = round

	if round.EntryFee != s.entryFee {
		log.Warnf(
			"resumed round %s keeps its entry fee %d, configured fee %d applies from the next round",
			round.Id, round.EntryFee, s.entryFee,
		)
	}
	if round.IsDrawing() {
		log.Warnf(
			"resumed round %s with pending randomness request %s",
			round.Id, round.PendingRequestId,
		)
		s.scheduleWatchdog(round)
		return nil
	}

	log.Debugf("resumed open round %s with %d entrants", round.Id, len(round.Entrants))
	return nil
}

func (s *raffleService) saveEvents(
	ctx context.Context, id string, events []domain.RoundEvent,
) error {
	if len(events) <= 0 {
		return nil
	}
	round, err := s.repoManager.Events().Save(ctx, id, events...)
	if err != nil {
		return err
	}
	if err := s.repoManager.Rounds().AddOrUpdateRound(ctx, *round); err != nil {
		return err
	}
	return s.repoManager.EventBus().Save(ctx, domain.RoundTopic, id, events)
}

func (s *raffleService) propagateEvents(events []domain.RoundEvent) {
	lastEvent := events[len(events)-1]
	s.eventsCh <- lastEvent
}

func (s *raffleService) notifyWinner(round *domain.Round) {
	if s.notifier == nil {
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"round_id":     round.Id,
		"winner":       round.Winner,
		"winner_index": round.WinnerIndex,
		"payout":       round.Payout,
		"random_word":  round.RandomWord,
		"settled_at":   round.EndingTimestamp,
	})
	if err != nil {
		log.WithError(err).Warn("failed to serialize winner notification")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.notifier.Notify(ctx, round.Winner, string(payload)); err != nil {
		log.WithError(err).Warn("failed to notify winner")
	}
}
