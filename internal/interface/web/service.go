package webservice

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rafflenet/raffled/internal/core/application"
	"github.com/rafflenet/raffled/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

type Service interface {
	Start() error
	Stop()
}

type service struct {
	config Config
	server *http.Server
	appSvc application.Service
	broker *broker
}

func NewService(
	svcConfig Config,
	appSvc application.Service, adminSvc application.AdminService,
	randomnessSvc ports.RandomnessSource,
) (Service, error) {
	if err := svcConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service config: %s", err)
	}

	router := gin.Default()
	router.Use(corsMiddleware())

	eventsBroker := newBroker()
	handler := newRaffleHandler(appSvc, randomnessSvc, eventsBroker)

	v1 := router.Group("/v1")
	{
		v1.GET("/info", handler.getInfo)
		v1.GET("/round", handler.getCurrentRound)
		v1.GET("/round/entrants/:index", handler.getEntrant)
		v1.POST("/round/entries", handler.enter)
		v1.GET("/rounds/:id", handler.getRound)
		v1.GET("/winners", handler.getRecentWinners)
		v1.GET("/winners/last", handler.getLastWinner)
		v1.GET("/upkeep", handler.checkUpkeep)
		v1.POST("/upkeep", handler.performUpkeep)
		v1.POST("/randomness/fulfillments", handler.fulfillRandomness)
		v1.GET("/events", handler.streamEvents)
	}

	adminHdl := newAdminHandler(adminSvc, appSvc)
	admin := router.Group("/v1/admin")
	if !svcConfig.NoAuth {
		admin.Use(bearerAuth(svcConfig.AdminToken))
	}
	{
		admin.GET("/balance", adminHdl.getBalance)
		admin.GET("/rounds", adminHdl.listRounds)
		admin.GET("/rounds/:id", adminHdl.getRoundDetails)
		admin.GET("/accounts/:participant", adminHdl.getAccountBalance)
		admin.POST("/draw/abandon", adminHdl.abandonDraw)
	}

	return &service{
		config: svcConfig,
		server: &http.Server{Addr: svcConfig.address(), Handler: router},
		appSvc: appSvc,
		broker: eventsBroker,
	}, nil
}

func (s *service) Start() error {
	if err := s.appSvc.Start(); err != nil {
		return fmt.Errorf("failed to start app service: %s", err)
	}
	log.Info("started app service")

	go s.forwardRoundEvents()

	// nolint:all
	go s.server.ListenAndServe()
	log.Infof("started listening at %s", s.config.address())

	return nil
}

func (s *service) Stop() {
	//nolint:all
	s.server.Shutdown(context.Background())
	log.Info("stopped web server")
	s.appSvc.Stop()
	log.Info("stopped app service")
}

// forwardRoundEvents drains the app service events channel and fans the
// events out to the stream subscribers. It returns when the app service
// closes the channel on shutdown.
func (s *service) forwardRoundEvents() {
	eventsCh := s.appSvc.GetEventsChannel(context.Background())
	for event := range eventsCh {
		s.broker.broadcast(event)
	}
}
