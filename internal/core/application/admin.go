package application

import (
	"context"
	"fmt"

	"github.com/rafflenet/raffled/internal/core/ports"
)

type TreasuryBalance struct {
	Pool    uint64
	Surplus uint64
}

type RoundDetails struct {
	RoundId      string
	Stage        string
	EntryFee     uint64
	PotAmount    uint64
	EntrantCount int
	Entrants     []string
	StartedAt    int64
	EndedAt      int64
	RandomWord   uint64
	Winner       string
	Payout       uint64
}

type AdminService interface {
	GetBalance(ctx context.Context) (*TreasuryBalance, error)
	GetRoundDetails(ctx context.Context, roundId string) (*RoundDetails, error)
	GetRounds(ctx context.Context, after int64, before int64) ([]string, error)
	GetAccountBalance(ctx context.Context, participant string) (uint64, error)
}

type adminService struct {
	repoManager ports.RepoManager
	treasurySvc ports.Treasury
}

func NewAdminService(
	repoManager ports.RepoManager, treasurySvc ports.Treasury,
) AdminService {
	return &adminService{
		repoManager: repoManager,
		treasurySvc: treasurySvc,
	}
}

func (a *adminService) GetBalance(ctx context.Context) (*TreasuryBalance, error) {
	pool, err := a.treasurySvc.PoolBalance(ctx)
	if err != nil {
		return nil, err
	}

	// overpaid entry fees pile up as surplus, they never join the pot
	var pot uint64
	current, err := a.repoManager.Rounds().GetCurrentRound(ctx)
	if err != nil {
		return nil, err
	}
	if current != nil {
		pot = current.PotAmount
	}

	if pool < pot {
		return nil, fmt.Errorf(
			"treasury pool %d is lower than the current pot %d", pool, pot,
		)
	}

	return &TreasuryBalance{
		Pool:    pool,
		Surplus: pool - pot,
	}, nil
}

func (a *adminService) GetRoundDetails(
	ctx context.Context, roundId string,
) (*RoundDetails, error) {
	round, err := a.repoManager.Rounds().GetRoundWithId(ctx, roundId)
	if err != nil {
		return nil, err
	}

	return &RoundDetails{
		RoundId:      round.Id,
		Stage:        round.Stage.Code.String(),
		EntryFee:     round.EntryFee,
		PotAmount:    round.PotAmount,
		EntrantCount: len(round.Entrants),
		Entrants:     round.Entrants,
		StartedAt:    round.StartingTimestamp,
		EndedAt:      round.EndingTimestamp,
		RandomWord:   round.RandomWord,
		Winner:       round.Winner,
		Payout:       round.Payout,
	}, nil
}

func (a *adminService) GetRounds(
	ctx context.Context, after int64, before int64,
) ([]string, error) {
	return a.repoManager.Rounds().GetRoundsIds(ctx, after, before)
}

func (a *adminService) GetAccountBalance(
	ctx context.Context, participant string,
) (uint64, error) {
	return a.treasurySvc.AccountBalance(ctx, participant)
}
