package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/rafflenet/raffled/internal/core/domain"
)

const (
	upsertRoundQuery = `
		INSERT INTO round (
			id, entry_fee, starting_timestamp, ending_timestamp, ended,
			stage_code, pot_amount, pending_request_id, draw_timestamp,
			random_word, winner_index, winner, payout, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ending_timestamp = excluded.ending_timestamp,
			ended = excluded.ended,
			stage_code = excluded.stage_code,
			pot_amount = excluded.pot_amount,
			pending_request_id = excluded.pending_request_id,
			draw_timestamp = excluded.draw_timestamp,
			random_word = excluded.random_word,
			winner_index = excluded.winner_index,
			winner = excluded.winner,
			payout = excluded.payout,
			version = excluded.version`

	upsertEntrantQuery = `
		INSERT INTO entrant (round_id, position, participant)
		VALUES (?, ?, ?)
		ON CONFLICT(round_id, position) DO UPDATE SET
			participant = excluded.participant`

	selectRoundColumns = `
		id, entry_fee, starting_timestamp, ending_timestamp, ended,
		stage_code, pot_amount, pending_request_id, draw_timestamp,
		random_word, winner_index, winner, payout, version`
)

type roundRepository struct {
	db *sql.DB
}

func NewRoundRepository(config ...interface{}) (domain.RoundRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("cannot open round repository: invalid config, expected db at 0")
	}

	return &roundRepository{db}, nil
}

func (r *roundRepository) Close() {
	_ = r.db.Close()
}

func (r *roundRepository) AddOrUpdateRound(ctx context.Context, round domain.Round) error {
	return execTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(
			ctx, upsertRoundQuery,
			round.Id,
			int64(round.EntryFee),
			round.StartingTimestamp,
			round.EndingTimestamp,
			round.Stage.Ended,
			int64(round.Stage.Code),
			int64(round.PotAmount),
			round.PendingRequestId,
			round.DrawTimestamp,
			strconv.FormatUint(round.RandomWord, 10),
			int64(round.WinnerIndex),
			round.Winner,
			int64(round.Payout),
			int64(round.Version),
		); err != nil {
			return fmt.Errorf("failed to upsert round: %w", err)
		}

		for pos, participant := range round.Entrants {
			if _, err := tx.ExecContext(
				ctx, upsertEntrantQuery, round.Id, int64(pos), participant,
			); err != nil {
				return fmt.Errorf("failed to upsert entrant: %w", err)
			}
		}

		return nil
	})
}

func (r *roundRepository) GetRoundWithId(
	ctx context.Context, id string,
) (*domain.Round, error) {
	query := fmt.Sprintf("SELECT %s FROM round WHERE id = ?", selectRoundColumns)
	round, err := r.scanRound(ctx, r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("round with id %s not found", id)
		}
		return nil, err
	}
	return round, nil
}

func (r *roundRepository) GetCurrentRound(ctx context.Context) (*domain.Round, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM round WHERE ended = false ORDER BY starting_timestamp DESC LIMIT 1",
		selectRoundColumns,
	)
	round, err := r.scanRound(ctx, r.db.QueryRowContext(ctx, query))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return round, nil
}

func (r *roundRepository) GetLastSettledRound(ctx context.Context) (*domain.Round, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM round WHERE ended = true ORDER BY ending_timestamp DESC LIMIT 1",
		selectRoundColumns,
	)
	round, err := r.scanRound(ctx, r.db.QueryRowContext(ctx, query))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return round, nil
}

func (r *roundRepository) GetSettledRounds(
	ctx context.Context, limit int,
) ([]domain.Round, error) {
	if limit <= 0 {
		limit = -1
	}
	query := fmt.Sprintf(
		"SELECT %s FROM round WHERE ended = true ORDER BY ending_timestamp DESC LIMIT ?",
		selectRoundColumns,
	)
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	rounds := make([]domain.Round, 0)
	for rows.Next() {
		round, err := scanRoundRow(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		rounds = append(rounds, *round)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// release the connection before querying the entrants, the pool is
	// capped at a single connection
	rows.Close()

	for i := range rounds {
		entrants, err := r.getEntrants(ctx, rounds[i].Id)
		if err != nil {
			return nil, err
		}
		rounds[i].Entrants = entrants
	}
	return rounds, nil
}

func (r *roundRepository) GetRoundsIds(
	ctx context.Context, startedAfter int64, startedBefore int64,
) ([]string, error) {
	query := "SELECT id FROM round WHERE ended = true"
	args := make([]interface{}, 0, 2)
	if startedAfter > 0 {
		query += " AND starting_timestamp > ?"
		args = append(args, startedAfter)
	}
	if startedBefore > 0 {
		query += " AND starting_timestamp < ?"
		args = append(args, startedBefore)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *roundRepository) scanRound(
	ctx context.Context, row rowScanner,
) (*domain.Round, error) {
	round, err := scanRoundRow(row)
	if err != nil {
		return nil, err
	}

	entrants, err := r.getEntrants(ctx, round.Id)
	if err != nil {
		return nil, err
	}
	round.Entrants = entrants

	return round, nil
}

func scanRoundRow(row rowScanner) (*domain.Round, error) {
	var (
		round       domain.Round
		entryFee    int64
		stageCode   int64
		potAmount   int64
		randomWord  string
		winnerIndex int64
		payout      int64
		version     int64
	)
	if err := row.Scan(
		&round.Id,
		&entryFee,
		&round.StartingTimestamp,
		&round.EndingTimestamp,
		&round.Stage.Ended,
		&stageCode,
		&potAmount,
		&round.PendingRequestId,
		&round.DrawTimestamp,
		&randomWord,
		&winnerIndex,
		&round.Winner,
		&payout,
		&version,
	); err != nil {
		return nil, err
	}

	word, err := strconv.ParseUint(randomWord, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse random word for round %s: %s", round.Id, err)
	}

	round.EntryFee = uint64(entryFee)
	round.Stage.Code = domain.RoundStage(stageCode)
	round.PotAmount = uint64(potAmount)
	round.RandomWord = word
	round.WinnerIndex = uint32(winnerIndex)
	round.Payout = uint64(payout)
	round.Version = uint(version)

	return &round, nil
}

func (r *roundRepository) getEntrants(ctx context.Context, roundId string) ([]string, error) {
	rows, err := r.db.QueryContext(
		ctx,
		"SELECT participant FROM entrant WHERE round_id = ? ORDER BY position ASC",
		roundId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entrants := make([]string, 0)
	for rows.Next() {
		var participant string
		if err := rows.Scan(&participant); err != nil {
			return nil, err
		}
		entrants = append(entrants, participant)
	}
	return entrants, rows.Err()
}
