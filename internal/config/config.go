package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	CHAIN_BSC_MAINNET_RPC string = "https://bsc-dataseed.binance.org"
	CHAIN_BSC_TESTNET_RPC string = "https://data-seed-prebsc-1-s1.binance.org:8545"

	DEFAULT_GAS_MARGIN_BPS   int64 = 1000
	DEFAULT_TRANSFER_TIMEOUT       = 2 * time.Minute
)

var log = InitLogger()

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SslMode  string

	ConnectTimeout  time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the lib/pq connection URL. User and password are escaped.
func (c *PostgresConfig) DSN() string {
	q := url.Values{}
	q.Set("sslmode", c.SslMode)
	q.Set("client_encoding", "UTF8")
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

type ChainConfig struct {
	RpcUrl          string
	ChainId         int64
	PrivateKey      string
	TokenAddress    string
	GasMarginBps    int64
	TransferTimeout time.Duration

	MasterChefAddress string
	FeedStartBlock    uint64
	FeedConfirmations uint64
	FeedInterval      time.Duration
	// ActionSources maps a lower-case contract address to the channel its
	// outgoing transfers are credited in.
	ActionSources map[string]string
}

type LedgerConfig struct {
	LinkBaseUrl        string
	DedupeEvents       bool
	AutoCompensate     bool
	ReconcileSpec      string
	StalePendingAfter  time.Duration
	SignatureReplayTTL time.Duration
}

type HttpConfig struct {
	Addr           string
	RateLimit      float64
	RateLimitBurst int
	AdminToken     string
}

type TelegramConfig struct {
	Token       string
	AdminChatId int64
}

type AppConfig struct {
	Storage  string
	RedisUrl string
	Chain    *ChainConfig
	Ledger   *LedgerConfig
	Http     *HttpConfig
	Telegram *TelegramConfig
}

func InitConfig() (*AppConfig, error) {
	err := godotenv.Load()
	if err != nil {
		log.Error("Error loading .env file")
	}

	return &AppConfig{
		Storage:  envString("STORAGE", "postgres"),
		RedisUrl: os.Getenv("REDIS_URL"),
		Chain:    LoadChainConfig(),
		Ledger:   LoadLedgerConfig(),
		Http:     LoadHttpConfig(),
		Telegram: LoadTelegramConfig(),
	}, nil
}

func LoadPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		DBName:   os.Getenv("DB_NAME"),
		SslMode:  envString("DB_SSLMODE", "disable"),

		ConnectTimeout:  envDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
		MaxOpenConns:    int(envInt("DB_MAX_OPEN_CONNS", 20)),
		MaxIdleConns:    int(envInt("DB_MAX_IDLE_CONNS", 5)),
		ConnMaxLifetime: envDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
	}
}

func LoadChainConfig() *ChainConfig {
	return &ChainConfig{
		RpcUrl:          envString("CHAIN_RPC_URL", CHAIN_BSC_TESTNET_RPC),
		ChainId:         envInt("CHAIN_ID", 97),
		PrivateKey:      os.Getenv("PRIVATE_KEY"),
		TokenAddress:    os.Getenv("TOKEN_ADDRESS"),
		GasMarginBps:    gasMarginBps(),
		TransferTimeout: envDuration("TRANSFER_TIMEOUT", DEFAULT_TRANSFER_TIMEOUT),
		ActionSources:   ParseActionSources(os.Getenv("ACTION_SOURCES")),

		MasterChefAddress: os.Getenv("MASTER_CHEF_ADDRESS"),
		FeedStartBlock:    uint64(envInt("FEED_START_BLOCK", 0)),
		FeedConfirmations: uint64(envInt("FEED_CONFIRMATIONS", 3)),
		FeedInterval:      envDuration("FEED_INTERVAL", 5*time.Second),
	}
}

// gasMarginBps refuses negative margins: the ceiling must never fall below
// the estimate.
func gasMarginBps() int64 {
	margin := envInt("GAS_MARGIN_BPS", DEFAULT_GAS_MARGIN_BPS)
	if margin < 0 {
		log.Errorf("GAS_MARGIN_BPS must not be negative, got %d; using %d", margin, DEFAULT_GAS_MARGIN_BPS)
		return DEFAULT_GAS_MARGIN_BPS
	}
	return margin
}

func LoadLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		LinkBaseUrl:        os.Getenv("LINK_BASE_URL"),
		DedupeEvents:       envBool("LEDGER_DEDUPE_EVENTS", true),
		AutoCompensate:     envBool("AUTO_COMPENSATE", false),
		ReconcileSpec:      envString("RECONCILE_SPEC", "@every 1m"),
		StalePendingAfter:  envDuration("STALE_PENDING_AFTER", 30*time.Minute),
		SignatureReplayTTL: envDuration("SIGNATURE_REPLAY_TTL", time.Minute),
	}
}

func LoadHttpConfig() *HttpConfig {
	return &HttpConfig{
		Addr:           envString("HTTP_ADDR", ":8080"),
		RateLimit:      envFloat("HTTP_RATE_LIMIT", 5),
		RateLimitBurst: int(envInt("HTTP_RATE_LIMIT_BURST", 10)),
		AdminToken:     os.Getenv("ADMIN_TOKEN"),
	}
}

func LoadTelegramConfig() *TelegramConfig {
	return &TelegramConfig{
		Token:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		AdminChatId: envInt("TELEGRAM_ADMIN_CHAT_ID", 0),
	}
}

// ParseActionSources reads "0xaddr:pool,0xaddr2:swap".
func ParseActionSources(s string) map[string]string {
	res := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		addr, channel, ok := strings.Cut(pair, ":")
		if !ok {
			log.Error("Invalid ACTION_SOURCES entry: ", pair)
			continue
		}
		res[strings.ToLower(strings.TrimSpace(addr))] = strings.TrimSpace(channel)
	}
	return res
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	res, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Errorf("Error parsing %s", key)
		return def
	}
	return res
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	res, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Errorf("Error parsing %s", key)
		return def
	}
	return res
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	res, err := strconv.ParseBool(v)
	if err != nil {
		log.Errorf("Error parsing %s", key)
		return def
	}
	return res
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	res, err := time.ParseDuration(v)
	if err != nil {
		log.Errorf("Error parsing %s", key)
		return def
	}
	return res
}
