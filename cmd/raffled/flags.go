package main

import (
	"fmt"
	"time"

	"github.com/rafflenet/raffled/internal/config"
	"github.com/urfave/cli/v2"
)

const (
	urlFlagName         = "url"
	tokenFlagName       = "token"
	roundIdFlagName     = "id"
	participantFlagName = "participant"
	reasonFlagName      = "reason"
	beforeDateFlagName  = "before-date"
	afterDateFlagName   = "after-date"

	dateFormat = time.DateOnly
)

var (
	urlFlag = &cli.StringFlag{
		Name:  urlFlagName,
		Usage: "the url where to reach the raffle daemon",
		Value: fmt.Sprintf("http://localhost:%d", config.DefaultPort),
	}
	tokenFlag = &cli.StringFlag{
		Name:  tokenFlagName,
		Usage: "admin token used to authenticate against the admin endpoints",
	}
	roundIdFlag = &cli.StringFlag{
		Name:     roundIdFlagName,
		Usage:    "id of the round",
		Required: true,
	}
	participantFlag = &cli.StringFlag{
		Name:     participantFlagName,
		Usage:    "participant account to inspect",
		Required: true,
	}
	reasonFlag = &cli.StringFlag{
		Name:  reasonFlagName,
		Usage: "reason recorded with the abandoned draw",
	}
	beforeDateFlag = &cli.StringFlag{
		Name:  beforeDateFlagName,
		Usage: fmt.Sprintf("fetch rounds started before the given date, format %s", dateFormat),
	}
	afterDateFlag = &cli.StringFlag{
		Name:  afterDateFlagName,
		Usage: fmt.Sprintf("fetch rounds started after the given date, format %s", dateFormat),
	}
)
