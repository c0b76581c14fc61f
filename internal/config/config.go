package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/rafflenet/raffled/internal/core/application"
	"github.com/rafflenet/raffled/internal/core/ports"
	"github.com/rafflenet/raffled/internal/infrastructure/db"
	webhook_notifier "github.com/rafflenet/raffled/internal/infrastructure/notifier/webhook"
	httporacle "github.com/rafflenet/raffled/internal/infrastructure/oracle/http"
	signeroracle "github.com/rafflenet/raffled/internal/infrastructure/oracle/signer"
	timescheduler "github.com/rafflenet/raffled/internal/infrastructure/scheduler/gocron"
	inmemorytreasury "github.com/rafflenet/raffled/internal/infrastructure/treasury/inmemory"
	redistreasury "github.com/rafflenet/raffled/internal/infrastructure/treasury/redis"
	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var (
	supportedEventDbs = supportedType{
		"badger": {},
	}
	supportedDbs = supportedType{
		"badger": {},
		"sqlite": {},
	}
	supportedEventBuses = supportedType{
		"inmemory": {},
		"postgres": {},
	}
	supportedSchedulers = supportedType{
		"gocron": {},
	}
	supportedOracles = supportedType{
		"signer": {},
		"http":   {},
	}
	supportedTreasuries = supportedType{
		"inmemory": {},
		"redis":    {},
	}
)

type Config struct {
	Datadir    string
	Port       uint32
	LogLevel   int
	NoAuth     bool
	AdminToken string `json:"-"`

	DbType       string
	EventDbType  string
	EventBusType string
	DbDir        string
	EventDbDir   string
	EventBusUrl  string

	EntryFee         uint64
	DrawInterval     time.Duration
	DrawTimeout      time.Duration
	UpkeepInterval   time.Duration
	NumWords         uint32
	MinConfirmations uint32
	CallbackBudget   uint64

	SchedulerType string

	OracleType             string
	OracleUrl              string
	OracleCallbackUrl      string
	OraclePublicKey        string
	OracleKeyId            string
	OracleSubscriptionId   uint64
	OracleConfirmationTime time.Duration

	TreasuryType string
	RedisUrl     string

	WebhookUrls []string

	repo       ports.RepoManager
	svc        application.Service
	adminSvc   application.AdminService
	randomness ports.RandomnessSource
	treasury   ports.Treasury
	scheduler  ports.SchedulerService
	notifier   ports.Notifier
}

func (c *Config) String() string {
	json, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(json)
}

var (
	Datadir                = "DATADIR"
	Port                   = "PORT"
	LogLevel               = "LOG_LEVEL"
	NoAuth                 = "NO_AUTH"
	AdminToken             = "ADMIN_TOKEN"
	EventDbType            = "EVENT_DB_TYPE"
	DbType                 = "DB_TYPE"
	EventBusType           = "EVENT_BUS_TYPE"
	EventBusUrl            = "EVENT_BUS_URL"
	EntryFee               = "ENTRY_FEE"
	DrawInterval           = "DRAW_INTERVAL"
	DrawTimeout            = "DRAW_TIMEOUT"
	UpkeepInterval         = "UPKEEP_INTERVAL"
	NumWords               = "NUM_WORDS"
	MinConfirmations       = "MIN_CONFIRMATIONS"
	CallbackBudget         = "CALLBACK_BUDGET"
	SchedulerType          = "SCHEDULER_TYPE"
	OracleType             = "ORACLE_TYPE"
	OracleUrl              = "ORACLE_URL"
	OracleCallbackUrl      = "ORACLE_CALLBACK_URL"
	OraclePublicKey        = "ORACLE_PUBLIC_KEY"
	OracleKeyId            = "ORACLE_KEY_ID"
	OracleSubscriptionId   = "ORACLE_SUBSCRIPTION_ID"
	OracleConfirmationTime = "ORACLE_CONFIRMATION_TIME"
	TreasuryType           = "TREASURY_TYPE"
	RedisUrl               = "REDIS_URL"
	WebhookUrls            = "WEBHOOK_URLS"

	defaultDatadir          = btcutil.AppDataDir("raffled", false)
	DefaultPort             = 7070
	defaultLogLevel         = 4
	defaultNoAuth           = false
	defaultDbType           = "badger"
	defaultEventDbType      = "badger"
	defaultEventBusType     = "inmemory"
	defaultEntryFee         = 10_000_000
	defaultDrawInterval     = 3600
	defaultDrawTimeout      = 0
	defaultUpkeepInterval   = 60
	defaultNumWords         = 1
	defaultMinConfirmations = 3
	defaultCallbackBudget   = 100_000
	defaultSchedulerType    = "gocron"
	defaultOracleType       = "signer"
	defaultConfirmationTime = 2
	defaultTreasuryType     = "inmemory"

	defaultRedisNumOfRetries = 5
)

func LoadConfig() (*Config, error) {
	viper.SetEnvPrefix("RAFFLE")
	viper.AutomaticEnv()

	viper.SetDefault(Datadir, defaultDatadir)
	viper.SetDefault(Port, DefaultPort)
	viper.SetDefault(LogLevel, defaultLogLevel)
	viper.SetDefault(NoAuth, defaultNoAuth)
	viper.SetDefault(DbType, defaultDbType)
	viper.SetDefault(EventDbType, defaultEventDbType)
	viper.SetDefault(EventBusType, defaultEventBusType)
	viper.SetDefault(EntryFee, defaultEntryFee)
	viper.SetDefault(DrawInterval, defaultDrawInterval)
	viper.SetDefault(DrawTimeout, defaultDrawTimeout)
	viper.SetDefault(UpkeepInterval, defaultUpkeepInterval)
	viper.SetDefault(NumWords, defaultNumWords)
	viper.SetDefault(MinConfirmations, defaultMinConfirmations)
	viper.SetDefault(CallbackBudget, defaultCallbackBudget)
	viper.SetDefault(SchedulerType, defaultSchedulerType)
	viper.SetDefault(OracleType, defaultOracleType)
	viper.SetDefault(OracleConfirmationTime, defaultConfirmationTime)
	viper.SetDefault(TreasuryType, defaultTreasuryType)

	if err := initDatadir(); err != nil {
		return nil, fmt.Errorf("error while creating datadir: %s", err)
	}

	dbPath := filepath.Join(viper.GetString(Datadir), "db")

	var eventBusUrl string
	if viper.GetString(EventBusType) == "postgres" {
		eventBusUrl = viper.GetString(EventBusUrl)
		if eventBusUrl == "" {
			return nil, fmt.Errorf("EVENT_BUS_URL not provided")
		}
	}

	var redisUrl string
	if viper.GetString(TreasuryType) == "redis" {
		redisUrl = viper.GetString(RedisUrl)
		if redisUrl == "" {
			return nil, fmt.Errorf("REDIS_URL not provided")
		}
	}

	return &Config{
		Datadir:                viper.GetString(Datadir),
		Port:                   viper.GetUint32(Port),
		LogLevel:               viper.GetInt(LogLevel),
		NoAuth:                 viper.GetBool(NoAuth),
		AdminToken:             viper.GetString(AdminToken),
		DbType:                 viper.GetString(DbType),
		EventDbType:            viper.GetString(EventDbType),
		EventBusType:           viper.GetString(EventBusType),
		DbDir:                  dbPath,
		EventDbDir:             dbPath,
		EventBusUrl:            eventBusUrl,
		EntryFee:               viper.GetUint64(EntryFee),
		DrawInterval:           time.Duration(viper.GetInt64(DrawInterval)) * time.Second,
		DrawTimeout:            time.Duration(viper.GetInt64(DrawTimeout)) * time.Second,
		UpkeepInterval:         time.Duration(viper.GetInt64(UpkeepInterval)) * time.Second,
		NumWords:               viper.GetUint32(NumWords),
		MinConfirmations:       viper.GetUint32(MinConfirmations),
		CallbackBudget:         viper.GetUint64(CallbackBudget),
		SchedulerType:          viper.GetString(SchedulerType),
		OracleType:             viper.GetString(OracleType),
		OracleUrl:              viper.GetString(OracleUrl),
		OracleCallbackUrl:      viper.GetString(OracleCallbackUrl),
		OraclePublicKey:        viper.GetString(OraclePublicKey),
		OracleKeyId:            viper.GetString(OracleKeyId),
		OracleSubscriptionId:   viper.GetUint64(OracleSubscriptionId),
		OracleConfirmationTime: time.Duration(viper.GetInt64(OracleConfirmationTime)) * time.Second,
		TreasuryType:           viper.GetString(TreasuryType),
		RedisUrl:               redisUrl,
		WebhookUrls:            viper.GetStringSlice(WebhookUrls),
	}, nil
}

func initDatadir() error {
	datadir := viper.GetString(Datadir)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

func (c *Config) Validate() error {
	if !supportedEventDbs.supports(c.EventDbType) {
		return fmt.Errorf("event db type not supported, please select one of: %s", supportedEventDbs)
	}
	if !supportedDbs.supports(c.DbType) {
		return fmt.Errorf("db type not supported, please select one of: %s", supportedDbs)
	}
	if !supportedEventBuses.supports(c.EventBusType) {
		return fmt.Errorf("event bus type not supported, please select one of: %s", supportedEventBuses)
	}
	if !supportedSchedulers.supports(c.SchedulerType) {
		return fmt.Errorf("scheduler type not supported, please select one of: %s", supportedSchedulers)
	}
	if !supportedOracles.supports(c.OracleType) {
		return fmt.Errorf("oracle type not supported, please select one of: %s", supportedOracles)
	}
	if !supportedTreasuries.supports(c.TreasuryType) {
		return fmt.Errorf("treasury type not supported, please select one of: %s", supportedTreasuries)
	}
	if c.EntryFee <= 0 {
		return fmt.Errorf("invalid entry fee, must be greater than 0")
	}
	if c.DrawInterval < 2*time.Second {
		return fmt.Errorf("invalid draw interval, must be at least 2 seconds")
	}
	if c.UpkeepInterval <= 0 {
		return fmt.Errorf("invalid upkeep interval, must be greater than 0")
	}
	if c.DrawTimeout > 0 && c.DrawTimeout < c.UpkeepInterval {
		return fmt.Errorf("invalid draw timeout, must be at least the upkeep interval")
	}

	if err := c.repoManager(); err != nil {
		return err
	}
	if err := c.randomnessService(); err != nil {
		return err
	}
	if err := c.treasuryService(); err != nil {
		return err
	}
	if err := c.schedulerService(); err != nil {
		return err
	}
	if err := c.notifierService(); err != nil {
		return err
	}
	if err := c.adminService(); err != nil {
		return err
	}
	return nil
}

func (c *Config) AppService() (application.Service, error) {
	if c.svc == nil {
		if err := c.appService(); err != nil {
			return nil, err
		}
	}
	return c.svc, nil
}

func (c *Config) AdminService() application.AdminService {
	return c.adminSvc
}

func (c *Config) RandomnessService() ports.RandomnessSource {
	return c.randomness
}

func (c *Config) repoManager() error {
	var eventStoreConfig []interface{}
	var dataStoreConfig []interface{}
	var eventBusConfig []interface{}
	logger := log.New()

	switch c.EventDbType {
	case "badger":
		eventStoreConfig = []interface{}{c.EventDbDir, logger}
	default:
		return fmt.Errorf("unknown event db type")
	}

	switch c.DbType {
	case "badger":
		dataStoreConfig = []interface{}{c.DbDir, logger}
	case "sqlite":
		dataStoreConfig = []interface{}{c.DbDir}
	default:
		return fmt.Errorf("unknown db type")
	}

	switch c.EventBusType {
	case "inmemory":
		eventBusConfig = []interface{}{}
	case "postgres":
		eventBusConfig = []interface{}{c.EventBusUrl}
	default:
		return fmt.Errorf("unknown event bus type")
	}

	svc, err := db.NewService(db.ServiceConfig{
		EventStoreType:   c.EventDbType,
		DataStoreType:    c.DbType,
		EventBusType:     c.EventBusType,
		EventStoreConfig: eventStoreConfig,
		DataStoreConfig:  dataStoreConfig,
		EventBusConfig:   eventBusConfig,
	})
	if err != nil {
		return err
	}

	c.repo = svc
	return nil
}

func (c *Config) randomnessService() error {
	var svc ports.RandomnessSource
	var err error
	switch c.OracleType {
	case "signer":
		svc, err = signeroracle.NewService(c.OracleConfirmationTime)
	case "http":
		svc, err = httporacle.NewService(
			c.OracleUrl, c.OracleCallbackUrl, c.OraclePublicKey,
		)
	default:
		err = fmt.Errorf("unknown oracle type")
	}
	if err != nil {
		return err
	}

	c.randomness = svc
	return nil
}

func (c *Config) treasuryService() error {
	var svc ports.Treasury
	switch c.TreasuryType {
	case "inmemory":
		svc = inmemorytreasury.NewService()
	case "redis":
		opts, err := goredis.ParseURL(c.RedisUrl)
		if err != nil {
			return fmt.Errorf("invalid redis url: %s", err)
		}
		svc = redistreasury.NewService(goredis.NewClient(opts), defaultRedisNumOfRetries)
	default:
		return fmt.Errorf("unknown treasury type")
	}

	c.treasury = svc
	return nil
}

func (c *Config) schedulerService() error {
	var svc ports.SchedulerService
	var err error
	switch c.SchedulerType {
	case "gocron":
		svc = timescheduler.NewScheduler()
	default:
		err = fmt.Errorf("unknown scheduler type")
	}
	if err != nil {
		return err
	}

	c.scheduler = svc
	return nil
}

func (c *Config) notifierService() error {
	if len(c.WebhookUrls) <= 0 {
		return nil
	}
	c.notifier = webhook_notifier.New(c.WebhookUrls)
	return nil
}

func (c *Config) appService() error {
	svc, err := application.NewService(
		c.EntryFee, c.DrawInterval, c.DrawTimeout, c.UpkeepInterval,
		c.NumWords, c.MinConfirmations, c.CallbackBudget,
		c.OracleKeyId, c.OracleSubscriptionId,
		c.repo, c.randomness, c.treasury, c.scheduler, c.notifier,
	)
	if err != nil {
		return err
	}

	c.svc = svc
	return nil
}

func (c *Config) adminService() error {
	c.adminSvc = application.NewAdminService(c.repo, c.treasury)
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}
