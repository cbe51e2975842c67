package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/BTreeMap/CatalogRelay/internal/api"
	"github.com/BTreeMap/CatalogRelay/internal/catalog"
	"github.com/BTreeMap/CatalogRelay/internal/flow"
	"github.com/BTreeMap/CatalogRelay/internal/genai"
	"github.com/BTreeMap/CatalogRelay/internal/messaging"
	"github.com/BTreeMap/CatalogRelay/internal/store"
	"github.com/BTreeMap/CatalogRelay/internal/twiliowhatsapp"
	"github.com/BTreeMap/CatalogRelay/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for CatalogRelay state data
	DefaultStateDir = "/var/lib/catalogrelay"
	// DefaultDBFileName is the SQLite receipts database filename
	DefaultDBFileName = "catalogrelay.db"
	// TransportCloudAPI sends through the WhatsApp Cloud API
	TransportCloudAPI = "cloudapi"
	// TransportTwilio sends through Twilio
	TransportTwilio = "twilio"
	// GreetingStoreMemory keeps greeted users in process memory
	GreetingStoreMemory = "memory"
	// GreetingStoreRedis keeps greeted users in a Redis set
	GreetingStoreRedis = "redis"
)

// logLevel is shared by the default handler so LOG_LEVEL can be applied after .env is loaded.
var logLevel = new(slog.LevelVar)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()
	setLogLevel(config.LogLevel)

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping CatalogRelay with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "receipts_dsn_set", *flags.receiptsDSN != "",
		"api_addr", *flags.apiAddr, "transport", *flags.transport, "greeting_store", *flags.greetingStore)
	if err := run(ctx, flags); err != nil {
		slog.Error("CatalogRelay failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("CatalogRelay exited successfully")
}

// Config holds environment configuration
type Config struct {
	LogLevel string

	// Cloud API send
	AccessToken   string
	GraphVersion  string
	PhoneNumberID string
	GraphBaseURL  string
	VerifyToken   string

	// Catalog
	CatalogID        string
	CatalogLookupURL string
	CatalogMaxItems  int

	// AI
	OpenAIKey        string
	OpenAIModel      string
	PromptMode       string
	BusinessLocation string
	BusinessHours    string

	// Server and storage
	APIAddr       string
	StateDir      string
	ReceiptsDSN   string
	GreetingStore string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Transport
	Transport        string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	// Router and dispatch
	PartDelay       time.Duration
	GenerateInfo    bool
	ImageOnKeywords bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir        *string
	receiptsDSN     *string
	apiAddr         *string
	verifyToken     *string
	accessToken     *string
	graphVersion    *string
	phoneNumberID   *string
	graphBaseURL    *string
	catalogID       *string
	catalogURL      *string
	catalogMaxItems *int
	openaiKey       *string
	openaiModel     *string
	promptMode      *string
	location        *string
	hours           *string
	greetingStore   *string
	redisAddr       *string
	redisPassword   *string
	redisDB         *int
	transport       *string
	twilioSID       *string
	twilioToken     *string
	twilioFrom      *string
	partDelay       *time.Duration
	generateInfo    *bool
	imageOnKeywords *bool
}

// initializeLogger sets up structured logging, debug level until configuration is loaded
func initializeLogger() {
	logLevel.Set(slog.LevelDebug)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}

// setLogLevel applies a LOG_LEVEL value; unknown or empty values keep the current level
func setLogLevel(level string) {
	if level == "" {
		return
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		slog.Warn("invalid LOG_LEVEL, keeping current level", "value", level, "error", err)
		return
	}
	logLevel.Set(l)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		LogLevel:         os.Getenv("LOG_LEVEL"),
		AccessToken:      os.Getenv("ACCESS_TOKEN"),
		GraphVersion:     util.FirstNonEmpty(os.Getenv("VERSION"), messaging.DefaultGraphVersion),
		PhoneNumberID:    os.Getenv("PHONE_NUMBER_ID"),
		GraphBaseURL:     util.FirstNonEmpty(os.Getenv("GRAPH_BASE_URL"), messaging.DefaultGraphBaseURL),
		VerifyToken:      os.Getenv("VERIFY_TOKEN"),
		CatalogID:        os.Getenv("CATALOG_ID"),
		CatalogLookupURL: util.FirstNonEmpty(os.Getenv("CATALOG_LOOKUP_URL"), catalog.DefaultLookupURL),
		CatalogMaxItems:  util.ParseIntEnv("CATALOG_MAX_ITEMS", 0),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      util.FirstNonEmpty(os.Getenv("OPENAI_MODEL"), genai.DefaultModel),
		PromptMode:       util.FirstNonEmpty(os.Getenv("AI_PROMPT_MODE"), string(genai.PromptModeStrict)),
		BusinessLocation: os.Getenv("BUSINESS_LOCATION"),
		BusinessHours:    os.Getenv("BUSINESS_HOURS"),
		APIAddr:          os.Getenv("API_ADDR"),
		StateDir:         util.FirstNonEmpty(os.Getenv("CATALOGRELAY_STATE_DIR"), DefaultStateDir),
		ReceiptsDSN:      util.FirstNonEmpty(os.Getenv("RECEIPTS_DSN"), os.Getenv("DATABASE_URL")),
		GreetingStore:    util.FirstNonEmpty(strings.ToLower(os.Getenv("GREETING_STORE")), GreetingStoreMemory),
		RedisAddr:        util.FirstNonEmpty(os.Getenv("REDIS_ADDR"), "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          util.ParseIntEnv("REDIS_DB", 0),
		Transport:        util.FirstNonEmpty(strings.ToLower(os.Getenv("SEND_TRANSPORT")), TransportCloudAPI),
		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_FROM_NUMBER"),
		PartDelay:        util.ParseDurationEnv("DISPATCH_PART_DELAY", messaging.DefaultPartDelay),
		GenerateInfo:     util.ParseBoolEnv("GENERATE_INFO", false),
		ImageOnKeywords:  util.ParseBoolEnv("IMAGE_ON_KEYWORDS", false),
	}

	// PORT is the conventional variable on hosting platforms
	if config.APIAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			config.APIAddr = ":" + port
		} else {
			config.APIAddr = api.DefaultAddr
		}
	}

	slog.Debug("environment variables loaded",
		"ACCESS_TOKEN_SET", config.AccessToken != "",
		"VERSION", config.GraphVersion,
		"PHONE_NUMBER_ID_SET", config.PhoneNumberID != "",
		"VERIFY_TOKEN_SET", config.VerifyToken != "",
		"CATALOG_ID", config.CatalogID,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"AI_PROMPT_MODE", config.PromptMode,
		"API_ADDR", config.APIAddr,
		"CATALOGRELAY_STATE_DIR", config.StateDir,
		"RECEIPTS_DSN_SET", config.ReceiptsDSN != "",
		"GREETING_STORE", config.GreetingStore,
		"SEND_TRANSPORT", config.Transport,
		"DISPATCH_PART_DELAY", config.PartDelay)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := registerFlags(flag.CommandLine, config)
	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"receiptsDSN_set", *flags.receiptsDSN != "",
		"apiAddr", *flags.apiAddr,
		"catalogID", *flags.catalogID,
		"promptMode", *flags.promptMode,
		"greetingStore", *flags.greetingStore,
		"transport", *flags.transport,
		"partDelay", *flags.partDelay)
	return flags
}

// registerFlags declares every flag on fs with defaults taken from config
func registerFlags(fs *flag.FlagSet, config Config) Flags {
	return Flags{
		stateDir:        fs.String("state-dir", config.StateDir, "state directory for CatalogRelay data (overrides $CATALOGRELAY_STATE_DIR)"),
		receiptsDSN:     fs.String("receipts-dsn", config.ReceiptsDSN, "receipt store DSN: SQLite path or PostgreSQL URL, empty for in-memory (overrides $RECEIPTS_DSN or $DATABASE_URL)"),
		apiAddr:         fs.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR or $PORT)"),
		verifyToken:     fs.String("verify-token", config.VerifyToken, "webhook verification token (overrides $VERIFY_TOKEN)"),
		accessToken:     fs.String("access-token", config.AccessToken, "Cloud API access token (overrides $ACCESS_TOKEN)"),
		graphVersion:    fs.String("graph-version", config.GraphVersion, "Graph API version (overrides $VERSION)"),
		phoneNumberID:   fs.String("phone-number-id", config.PhoneNumberID, "Cloud API sender phone number id (overrides $PHONE_NUMBER_ID)"),
		graphBaseURL:    fs.String("graph-base-url", config.GraphBaseURL, "Graph API base URL (overrides $GRAPH_BASE_URL)"),
		catalogID:       fs.String("catalog-id", config.CatalogID, "product catalog id (overrides $CATALOG_ID)"),
		catalogURL:      fs.String("catalog-lookup-url", config.CatalogLookupURL, "catalog lookup endpoint (overrides $CATALOG_LOOKUP_URL)"),
		catalogMaxItems: fs.Int("catalog-max-items", config.CatalogMaxItems, "maximum products per catalog message, 0 for all (overrides $CATALOG_MAX_ITEMS)"),
		openaiKey:       fs.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel:     fs.String("openai-model", config.OpenAIModel, "OpenAI chat model (overrides $OPENAI_MODEL)"),
		promptMode:      fs.String("prompt-mode", config.PromptMode, "AI prompt mode: strict or open (overrides $AI_PROMPT_MODE)"),
		location:        fs.String("business-location", config.BusinessLocation, "business location given to the AI (overrides $BUSINESS_LOCATION)"),
		hours:           fs.String("business-hours", config.BusinessHours, "business hours given to the AI (overrides $BUSINESS_HOURS)"),
		greetingStore:   fs.String("greeting-store", config.GreetingStore, "greeting store: memory or redis (overrides $GREETING_STORE)"),
		redisAddr:       fs.String("redis-addr", config.RedisAddr, "Redis address for the greeting store (overrides $REDIS_ADDR)"),
		redisPassword:   fs.String("redis-password", config.RedisPassword, "Redis password (overrides $REDIS_PASSWORD)"),
		redisDB:         fs.Int("redis-db", config.RedisDB, "Redis database (overrides $REDIS_DB)"),
		transport:       fs.String("transport", config.Transport, "send transport: cloudapi or twilio (overrides $SEND_TRANSPORT)"),
		twilioSID:       fs.String("twilio-account-sid", config.TwilioAccountSID, "Twilio account SID (overrides $TWILIO_ACCOUNT_SID)"),
		twilioToken:     fs.String("twilio-auth-token", config.TwilioAuthToken, "Twilio auth token (overrides $TWILIO_AUTH_TOKEN)"),
		twilioFrom:      fs.String("twilio-from", config.TwilioFrom, "Twilio WhatsApp sender number (overrides $TWILIO_FROM_NUMBER)"),
		partDelay:       fs.Duration("part-delay", config.PartDelay, "delay between the parts of a paired send (overrides $DISPATCH_PART_DELAY)"),
		generateInfo:    fs.Bool("generate-info", config.GenerateInfo, "answer the info button with a generated reply (overrides $GENERATE_INFO)"),
		imageOnKeywords: fs.Bool("image-on-keywords", config.ImageOnKeywords, "attach the product image to replies mentioning image keywords (overrides $IMAGE_ON_KEYWORDS)"),
	}
}

// usesSQLite reports whether the receipts DSN selects a SQLite file
func usesSQLite(flags Flags) bool {
	dsn := *flags.receiptsDSN
	return dsn != "" && store.DetectDSNType(dsn) == "sqlite"
}

// resolveReceiptsDSN maps a bare "sqlite" DSN onto the default database in the state directory
func resolveReceiptsDSN(flags Flags) string {
	if strings.EqualFold(*flags.receiptsDSN, "sqlite") {
		return filepath.Join(*flags.stateDir, DefaultDBFileName)
	}
	return *flags.receiptsDSN
}

// buildStoreOptions constructs receipt store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	dsn := resolveReceiptsDSN(flags)
	if dsn == "" {
		slog.Debug("No receipts DSN provided, will use in-memory store")
		return storeOpts
	}
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
		storeOpts = append(storeOpts, store.WithPostgresDSN(dsn))
	} else {
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", dsn)
		storeOpts = append(storeOpts, store.WithSQLiteDSN(dsn))
	}
	return storeOpts
}

// buildRedisOptions constructs Redis greeting store options
func buildRedisOptions(flags Flags) []store.RedisOption {
	return []store.RedisOption{
		store.WithRedisAddr(*flags.redisAddr),
		store.WithRedisPassword(*flags.redisPassword),
		store.WithRedisDB(*flags.redisDB),
	}
}

// buildCatalogOptions constructs catalog resolver options
func buildCatalogOptions(flags Flags) []catalog.Option {
	var opts []catalog.Option
	if *flags.catalogURL != "" {
		opts = append(opts, catalog.WithLookupURL(*flags.catalogURL))
	}
	return opts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	return genaiOpts
}

// buildResponderOptions constructs AI responder options
func buildResponderOptions(flags Flags) []genai.ResponderOption {
	return []genai.ResponderOption{
		genai.WithPromptMode(genai.ParsePromptMode(*flags.promptMode)),
		genai.WithBusinessFacts(*flags.location, *flags.hours),
	}
}

// buildComposerOptions constructs response composer options
func buildComposerOptions(flags Flags) []messaging.ComposerOption {
	return []messaging.ComposerOption{
		messaging.WithCatalogID(*flags.catalogID),
		messaging.WithMaxItems(*flags.catalogMaxItems),
	}
}

// buildCloudAPIOptions constructs Cloud API sender options
func buildCloudAPIOptions(flags Flags) []messaging.CloudAPIOption {
	return []messaging.CloudAPIOption{
		messaging.WithGraphBaseURL(*flags.graphBaseURL),
		messaging.WithGraphVersion(*flags.graphVersion),
		messaging.WithPhoneNumberID(*flags.phoneNumberID),
		messaging.WithAccessToken(*flags.accessToken),
	}
}

// buildTwilioOptions constructs Twilio client options
func buildTwilioOptions(flags Flags) []twiliowhatsapp.Option {
	var opts []twiliowhatsapp.Option
	if *flags.twilioSID != "" {
		opts = append(opts, twiliowhatsapp.WithAccountSID(*flags.twilioSID))
	}
	if *flags.twilioToken != "" {
		opts = append(opts, twiliowhatsapp.WithAuthToken(*flags.twilioToken))
	}
	if *flags.twilioFrom != "" {
		opts = append(opts, twiliowhatsapp.WithFromWhats(*flags.twilioFrom))
	}
	return opts
}

// buildDispatcherOptions constructs dispatcher options; the receipt store is added during wiring
func buildDispatcherOptions(flags Flags) []messaging.DispatcherOption {
	return []messaging.DispatcherOption{messaging.WithPartDelay(*flags.partDelay)}
}

// buildRouterOptions constructs message router options
func buildRouterOptions(flags Flags) []flow.Option {
	return []flow.Option{
		flow.WithGenerateInfo(*flags.generateInfo),
		flow.WithImageOnKeywords(*flags.imageOnKeywords),
	}
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.verifyToken != "" {
		apiOpts = append(apiOpts, api.WithVerifyToken(*flags.verifyToken))
	}
	return apiOpts
}
