package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

// commands
var (
	balanceCmd = &cli.Command{
		Name:   "balance",
		Usage:  "Get the treasury balance",
		Action: balanceAction,
	}
	accountCmd = &cli.Command{
		Name:   "account",
		Usage:  "Get the balance of a participant account",
		Flags:  []cli.Flag{participantFlag},
		Action: accountAction,
	}
	roundInfoCmd = &cli.Command{
		Name:   "round-info",
		Usage:  "Get round info",
		Flags:  []cli.Flag{roundIdFlag},
		Action: roundInfoAction,
	}
	roundsInTimeRangeCmd = &cli.Command{
		Name:   "rounds",
		Usage:  "Get ids of settled rounds started in the given time range",
		Flags:  []cli.Flag{beforeDateFlag, afterDateFlag},
		Action: roundsInTimeRangeAction,
	}
	abandonDrawCmd = &cli.Command{
		Name:   "abandon-draw",
		Usage:  "Abandon the pending draw and reopen the current round",
		Flags:  []cli.Flag{reasonFlag},
		Action: abandonDrawAction,
	}
)

var timeout = time.Minute

func balanceAction(ctx *cli.Context) error {
	baseURL := ctx.String(urlFlagName)
	token := ctx.String(tokenFlagName)

	url := fmt.Sprintf("%s/v1/admin/balance", baseURL)
	balance, err := getBalance(url, token)
	if err != nil {
		return err
	}

	fmt.Println(balance)
	return nil
}

func accountAction(ctx *cli.Context) error {
	baseURL := ctx.String(urlFlagName)
	token := ctx.String(tokenFlagName)
	participant := ctx.String(participantFlagName)

	url := fmt.Sprintf("%s/v1/admin/accounts/%s", baseURL, participant)
	balance, err := get[uint64](url, "balance", token)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d\n", participant, balance)
	return nil
}

func roundInfoAction(ctx *cli.Context) error {
	baseURL := ctx.String(urlFlagName)
	token := ctx.String(tokenFlagName)
	roundId := ctx.String(roundIdFlagName)

	url := fmt.Sprintf("%s/v1/admin/rounds/%s", baseURL, roundId)
	details, err := getRoundDetails(url, token)
	if err != nil {
		return err
	}

	fmt.Println(details)
	return nil
}

func roundsInTimeRangeAction(ctx *cli.Context) error {
	baseURL := ctx.String(urlFlagName)
	token := ctx.String(tokenFlagName)
	beforeDate := ctx.String(beforeDateFlagName)
	afterDate := ctx.String(afterDateFlagName)

	url := fmt.Sprintf("%s/v1/admin/rounds", baseURL)
	if afterDate != "" {
		afterTs, err := time.Parse(dateFormat, afterDate)
		if err != nil {
			return fmt.Errorf("invalid --after-date format, must be %s", dateFormat)
		}
		url = fmt.Sprintf("%s?after=%d", url, afterTs.Unix())
	}
	if beforeDate != "" {
		beforeTs, err := time.Parse(dateFormat, beforeDate)
		if err != nil {
			return fmt.Errorf("invalid --before-date format, must be %s", dateFormat)
		}
		if afterDate != "" {
			url = fmt.Sprintf("%s&before=%d", url, beforeTs.Unix())
		} else {
			url = fmt.Sprintf("%s?before=%d", url, beforeTs.Unix())
		}
	}

	roundIds, err := get[[]string](url, "rounds", token)
	if err != nil {
		return err
	}

	respJson, err := json.MarshalIndent(roundIds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to json encode round ids: %s", err)
	}
	fmt.Println(string(respJson))
	return nil
}

func abandonDrawAction(ctx *cli.Context) error {
	baseURL := ctx.String(urlFlagName)
	token := ctx.String(tokenFlagName)
	reason := ctx.String(reasonFlagName)

	url := fmt.Sprintf("%s/v1/admin/draw/abandon", baseURL)
	body := fmt.Sprintf(`{"reason": "%s"}`, reason)

	requestId, err := post[string](url, body, "request_id", token)
	if err != nil {
		return err
	}

	fmt.Println("draw abandoned, randomness request revoked:")
	fmt.Println(requestId)
	return nil
}

func post[T any](url, body, key, token string) (result T, err error) {
	req, err := http.NewRequest("POST", url, strings.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Add("Content-Type", "application/json")
	if len(token) > 0 {
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	}
	client := &http.Client{Timeout: timeout}

	resp, err := client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err = fmt.Errorf("failed to post: %s", string(buf))
		return
	}
	if key == "" {
		return
	}
	res := make(map[string]T)
	if err = json.Unmarshal(buf, &res); err != nil {
		return
	}

	result = res[key]
	return
}

func get[T any](url, key, token string) (result T, err error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return
	}
	req.Header.Add("Content-Type", "application/json")
	if len(token) > 0 {
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return
	}
	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("failed to get: %s", string(buf))
		return
	}

	res := make(map[string]T)
	if err = json.Unmarshal(buf, &res); err != nil {
		return
	}

	result = res[key]
	return
}

type balance struct {
	Pool    uint64 `json:"pool"`
	Surplus uint64 `json:"surplus"`
}

func (b balance) String() string {
	return fmt.Sprintf("pool: %d\nsurplus: %d", b.Pool, b.Surplus)
}

func getBalance(url, token string) (*balance, error) {
	buf, err := getRaw(url, token)
	if err != nil {
		return nil, err
	}

	result := &balance{}
	if err := json.Unmarshal(buf, result); err != nil {
		return nil, err
	}
	return result, nil
}

type roundDetails struct {
	RoundId      string   `json:"round_id"`
	Stage        string   `json:"stage"`
	EntryFee     uint64   `json:"entry_fee"`
	PotAmount    uint64   `json:"pot_amount"`
	EntrantCount int      `json:"entrant_count"`
	Entrants     []string `json:"entrants"`
	StartedAt    int64    `json:"started_at"`
	EndedAt      int64    `json:"ended_at"`
	RandomWord   string   `json:"random_word"`
	Winner       string   `json:"winner"`
	Payout       uint64   `json:"payout"`
}

func (r roundDetails) String() string {
	lines := []string{
		fmt.Sprintf("round: %s", r.RoundId),
		fmt.Sprintf("stage: %s", r.Stage),
		fmt.Sprintf("entry fee: %d", r.EntryFee),
		fmt.Sprintf("pot: %d", r.PotAmount),
		fmt.Sprintf("entrants (%d): %s", r.EntrantCount, strings.Join(r.Entrants, ", ")),
		fmt.Sprintf("started at: %s", time.Unix(r.StartedAt, 0).Format(time.RFC3339)),
	}
	if r.EndedAt > 0 {
		lines = append(lines, fmt.Sprintf("ended at: %s", time.Unix(r.EndedAt, 0).Format(time.RFC3339)))
	}
	if len(r.Winner) > 0 {
		lines = append(
			lines,
			fmt.Sprintf("random word: %s", r.RandomWord),
			fmt.Sprintf("winner: %s", r.Winner),
			fmt.Sprintf("payout: %d", r.Payout),
		)
	}
	return strings.Join(lines, "\n")
}

func getRoundDetails(url, token string) (*roundDetails, error) {
	buf, err := getRaw(url, token)
	if err != nil {
		return nil, err
	}

	result := &roundDetails{}
	if err := json.Unmarshal(buf, result); err != nil {
		return nil, err
	}
	return result, nil
}

func getRaw(url, token string) ([]byte, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Content-Type", "application/json")
	if len(token) > 0 {
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get: %s", string(buf))
	}
	return buf, nil
}
