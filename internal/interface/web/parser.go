package webservice

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rafflenet/raffled/internal/core/application"
	"github.com/rafflenet/raffled/internal/core/domain"
)

type enterRequest struct {
	Participant string `json:"participant"`
	FeePaid     uint64 `json:"fee_paid"`
}

type fulfillmentRequest struct {
	RequestId string   `json:"request_id"`
	Words     []string `json:"random_words"`
	Proof     string   `json:"proof"`
}

type abandonRequest struct {
	Reason string `json:"reason"`
}

// random words are rendered as strings, a uint64 does not survive a
// round trip through a JSON number
type roundResponse struct {
	Id               string   `json:"id"`
	Stage            string   `json:"stage"`
	Ended            bool     `json:"ended"`
	EntryFee         uint64   `json:"entry_fee"`
	PotAmount        uint64   `json:"pot_amount"`
	Entrants         []string `json:"entrants"`
	StartedAt        int64    `json:"started_at"`
	EndedAt          int64    `json:"ended_at,omitempty"`
	PendingRequestId string   `json:"pending_request_id,omitempty"`
	RandomWord       string   `json:"random_word,omitempty"`
	WinnerIndex      uint32   `json:"winner_index,omitempty"`
	Winner           string   `json:"winner,omitempty"`
	Payout           uint64   `json:"payout,omitempty"`
}

type winnerResponse struct {
	RoundId     string `json:"round_id"`
	Winner      string `json:"winner"`
	WinnerIndex uint32 `json:"winner_index"`
	Payout      uint64 `json:"payout"`
	SettledAt   int64  `json:"settled_at"`
}

type infoResponse struct {
	RoundId          string          `json:"round_id"`
	Stage            string          `json:"stage"`
	EntryFee         uint64          `json:"entry_fee"`
	PotAmount        uint64          `json:"pot_amount"`
	EntrantCount     int             `json:"entrant_count"`
	RoundStartTime   int64           `json:"round_start_time"`
	NextDrawTime     int64           `json:"next_draw_time"`
	PendingRequestId string          `json:"pending_request_id,omitempty"`
	RecentWinner     *winnerResponse `json:"recent_winner,omitempty"`
}

type upkeepResponse struct {
	Needed       bool   `json:"needed"`
	RoundId      string `json:"round_id"`
	Stage        string `json:"stage"`
	EntrantCount int    `json:"entrant_count"`
	PotAmount    uint64 `json:"pot_amount"`
	Elapsed      int64  `json:"elapsed"`
	Interval     int64  `json:"interval"`
}

type balanceResponse struct {
	Pool    uint64 `json:"pool"`
	Surplus uint64 `json:"surplus"`
}

type roundDetailsResponse struct {
	RoundId      string   `json:"round_id"`
	Stage        string   `json:"stage"`
	EntryFee     uint64   `json:"entry_fee"`
	PotAmount    uint64   `json:"pot_amount"`
	EntrantCount int      `json:"entrant_count"`
	Entrants     []string `json:"entrants"`
	StartedAt    int64    `json:"started_at"`
	EndedAt      int64    `json:"ended_at,omitempty"`
	RandomWord   string   `json:"random_word,omitempty"`
	Winner       string   `json:"winner,omitempty"`
	Payout       uint64   `json:"payout,omitempty"`
}

// From interface type to app type

func parseFulfillment(req fulfillmentRequest) (string, []uint64, []byte, error) {
	if len(req.RequestId) <= 0 {
		return "", nil, nil, fmt.Errorf("missing request id")
	}
	if len(req.Words) <= 0 {
		return "", nil, nil, fmt.Errorf("missing random words")
	}

	words := make([]uint64, 0, len(req.Words))
	for _, w := range req.Words {
		word, err := strconv.ParseUint(w, 10, 64)
		if err != nil {
			return "", nil, nil, fmt.Errorf("invalid random word %s", w)
		}
		words = append(words, word)
	}

	var proof []byte
	if len(req.Proof) > 0 {
		buf, err := hex.DecodeString(req.Proof)
		if err != nil {
			return "", nil, nil, fmt.Errorf("invalid proof: %s", err)
		}
		proof = buf
	}

	return req.RequestId, words, proof, nil
}

// From app type to interface type

func toRoundResponse(round *domain.Round) roundResponse {
	resp := roundResponse{
		Id:               round.Id,
		Stage:            round.Stage.Code.String(),
		Ended:            round.Stage.Ended,
		EntryFee:         round.EntryFee,
		PotAmount:        round.PotAmount,
		Entrants:         round.Entrants,
		StartedAt:        round.StartingTimestamp,
		EndedAt:          round.EndingTimestamp,
		PendingRequestId: round.PendingRequestId,
		Winner:           round.Winner,
		WinnerIndex:      round.WinnerIndex,
		Payout:           round.Payout,
	}
	if round.Stage.Ended {
		resp.RandomWord = strconv.FormatUint(round.RandomWord, 10)
	}
	return resp
}

func toWinnerResponse(record *application.WinnerRecord) *winnerResponse {
	if record == nil {
		return nil
	}
	return &winnerResponse{
		RoundId:     record.RoundId,
		Winner:      record.Winner,
		WinnerIndex: record.WinnerIndex,
		Payout:      record.Payout,
		SettledAt:   record.Timestamp,
	}
}

func toInfoResponse(info *application.ServiceInfo) infoResponse {
	return infoResponse{
		RoundId:          info.RoundId,
		Stage:            info.Stage,
		EntryFee:         info.EntryFee,
		PotAmount:        info.PotAmount,
		EntrantCount:     info.EntrantCount,
		RoundStartTime:   info.RoundStartTime,
		NextDrawTime:     info.NextDrawTime,
		PendingRequestId: info.PendingRequestId,
		RecentWinner:     toWinnerResponse(info.RecentWinner),
	}
}

func toUpkeepResponse(needed bool, status application.DrawStatus) upkeepResponse {
	return upkeepResponse{
		Needed:       needed,
		RoundId:      status.RoundId,
		Stage:        status.Stage.String(),
		EntrantCount: status.EntrantCount,
		PotAmount:    status.PotAmount,
		Elapsed:      status.Elapsed,
		Interval:     status.Interval,
	}
}

func toRoundDetailsResponse(details *application.RoundDetails) roundDetailsResponse {
	resp := roundDetailsResponse{
		RoundId:      details.RoundId,
		Stage:        details.Stage,
		EntryFee:     details.EntryFee,
		PotAmount:    details.PotAmount,
		EntrantCount: details.EntrantCount,
		Entrants:     details.Entrants,
		StartedAt:    details.StartedAt,
		EndedAt:      details.EndedAt,
		Winner:       details.Winner,
		Payout:       details.Payout,
	}
	if len(details.Winner) > 0 {
		resp.RandomWord = strconv.FormatUint(details.RandomWord, 10)
	}
	return resp
}

func toEventPayload(event domain.RoundEvent) (string, interface{}) {
	switch e := event.(type) {
	case domain.RoundStarted:
		return "round_started", gin.H{
			"round_id":  e.Id,
			"entry_fee": e.EntryFee,
			"timestamp": e.Timestamp,
		}
	case domain.EntryRecorded:
		return "entry_recorded", gin.H{
			"round_id":    e.Id,
			"participant": e.Participant,
			"fee_paid":    e.FeePaid,
			"timestamp":   e.Timestamp,
		}
	case domain.DrawRequested:
		return "draw_requested", gin.H{
			"round_id":   e.Id,
			"request_id": e.RequestId,
			"timestamp":  e.Timestamp,
		}
	case domain.RoundSettled:
		return "round_settled", gin.H{
			"round_id":     e.Id,
			"request_id":   e.RequestId,
			"random_word":  strconv.FormatUint(e.RandomWord, 10),
			"winner_index": e.WinnerIndex,
			"winner":       e.Winner,
			"payout":       e.Payout,
			"timestamp":    e.Timestamp,
		}
	case domain.DrawAbandoned:
		return "draw_abandoned", gin.H{
			"round_id":   e.Id,
			"request_id": e.RequestId,
			"reason":     e.Reason,
			"timestamp":  e.Timestamp,
		}
	}
	return "unknown", gin.H{}
}
