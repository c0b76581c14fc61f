package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rafflenet/raffled/internal/config"
	webservice "github.com/rafflenet/raffled/internal/interface/web"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// Version will be set during build time
var Version string

func mainAction(_ *cli.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("invalid config: %s", err)
	}

	log.SetLevel(log.Level(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %s", err)
	}

	appSvc, err := cfg.AppService()
	if err != nil {
		return err
	}

	svcConfig := webservice.Config{
		Port:       cfg.Port,
		AdminToken: cfg.AdminToken,
		NoAuth:     cfg.NoAuth,
	}

	svc, err := webservice.NewService(
		svcConfig, appSvc, cfg.AdminService(), cfg.RandomnessService(),
	)
	if err != nil {
		return err
	}

	log.Infof("raffle daemon config: %s", cfg)

	log.Debug("starting service...")
	if err := svc.Start(); err != nil {
		return err
	}

	log.RegisterExitHandler(svc.Stop)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, os.Interrupt)
	<-sigChan

	log.Debug("shutting down service...")
	log.Exit(0)

	return nil
}

func main() {
	app := cli.NewApp()
	app.Version = Version
	app.Name = "raffled"
	app.Usage = "run or manage the raffle daemon"
	app.UsageText = "Run the raffle daemon with:\n\traffled\nManage the raffle daemon with:\n\traffled [global options] command [command options]"
	app.Commands = append(
		app.Commands,
		balanceCmd,
		accountCmd,
		roundInfoCmd,
		roundsInTimeRangeCmd,
		abandonDrawCmd,
	)
	app.Action = mainAction
	app.Flags = append(app.Flags, urlFlag, tokenFlag)

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
