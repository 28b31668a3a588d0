package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"postfinance/internal/checksum"
)

const (
	DefaultEntryURL         = "https://e-payment.postfinance.ch/ncol/test/orderstandard_utf8.asp"
	DefaultFallbackLanguage = "de_DE"

	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Env      string
	LogLevel string

	DBConfig struct {
		Host     string
		Port     int
		User     string
		Password string
		Name     string
		SSLMode  string
	}
	StoreDriver    string
	MigrationsPath string

	HTTPPort           int
	CORSAllowedOrigins []string

	KafkaEnabled            bool
	KafkaBrokerURL          string
	KafkaOrderEventsTopic   string
	KafkaPaymentStatusTopic string
	KafkaConsumerGroup      string

	OutboxPollInterval time.Duration
	OutboxPollTimeout  time.Duration
	OutboxBatchSize    int

	PostFinance PostFinanceConfig
	Shop        ShopConfig
}

// PostFinanceConfig is everything the offsite backend needs from the merchant
// account configuration.
type PostFinanceConfig struct {
	// SecretKey is the SHA-IN passphrase used to sign payment requests.
	SecretKey string
	// ShaOutKey is the SHA-OUT passphrase the gateway signs notifications with.
	ShaOutKey        string
	PSPID            string
	Currency         string
	HashAlgorithm    checksum.Algorithm
	LanguageTable    map[string]string
	FallbackLanguage string
	EntryURL         string
	ExtraFields      map[string]string
	SkipConfirmation bool
}

type ShopConfig struct {
	FinishedURL string
	CancelPath  string
}

// ConfigurationError reports a missing or malformed setting. It is only ever
// returned while loading configuration.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Key, e.Reason)
}

var fallbackLanguagePattern = regexp.MustCompile(`^[a-z]{2}_[A-Z]{2}$`)

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(getEnvOrDefault("ENV_FILE", ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := &Config{}
	cfg.Env = getEnvOrDefault("APP_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.DBConfig.Host = getEnvOrDefault("PAYMENTS_DB_HOST", "localhost")
	cfg.DBConfig.Port = getEnvAsInt("PAYMENTS_DB_PORT", 5432)
	cfg.DBConfig.User = getEnvOrDefault("PAYMENTS_DB_USER", "user")
	cfg.DBConfig.Password = getEnvOrDefault("PAYMENTS_DB_PASSWORD", "password")
	cfg.DBConfig.Name = getEnvOrDefault("PAYMENTS_DB_NAME", "postfinance_db")
	cfg.DBConfig.SSLMode = getEnvOrDefault("PAYMENTS_DB_SSLMODE", "disable")
	cfg.StoreDriver = getEnvOrDefault("STORE_DRIVER", StoreDriverPostgres)
	cfg.MigrationsPath = getEnvOrDefault("MIGRATIONS_PATH", "")

	cfg.HTTPPort = getEnvAsInt("HTTP_PORT", 8082)
	cfg.CORSAllowedOrigins = splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173"))

	cfg.KafkaEnabled = getEnvAsBool("KAFKA_ENABLED", true)
	cfg.KafkaBrokerURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaOrderEventsTopic = getEnvOrDefault("KAFKA_ORDER_EVENTS_TOPIC", "order_payment_tasks")
	cfg.KafkaPaymentStatusTopic = getEnvOrDefault("KAFKA_PAYMENT_STATUS_TOPIC", "payment_status_updates")
	cfg.KafkaConsumerGroup = getEnvOrDefault("KAFKA_CONSUMER_GROUP", "postfinance-order-events-group")

	cfg.OutboxPollInterval = getEnvAsDuration("OUTBOX_POLL_INTERVAL", 1*time.Second)
	cfg.OutboxPollTimeout = getEnvAsDuration("OUTBOX_POLL_TIMEOUT", 500*time.Millisecond)
	cfg.OutboxBatchSize = getEnvAsInt("OUTBOX_BATCH_SIZE", 10)

	cfg.Shop.FinishedURL = getEnvOrDefault("SHOP_FINISHED_URL", "/shop/finished/")
	cfg.Shop.CancelPath = getEnvOrDefault("SHOP_CANCEL_PATH", "/shop/cart/delete/")

	pf := &cfg.PostFinance
	pf.SecretKey = os.Getenv("POSTFINANCE_SECRET_KEY")
	pf.ShaOutKey = os.Getenv("POSTFINANCE_SHAOUT_KEY")
	pf.PSPID = os.Getenv("POSTFINANCE_PSP_ID")
	pf.Currency = strings.ToUpper(os.Getenv("POSTFINANCE_CURRENCY"))
	pf.FallbackLanguage = strings.TrimSpace(os.Getenv("POSTFINANCE_FALLBACK_LANGUAGE"))
	if pf.FallbackLanguage == "" {
		pf.FallbackLanguage = DefaultFallbackLanguage
	}
	pf.EntryURL = getEnvOrDefault("POSTFINANCE_ENTRY_URL", DefaultEntryURL)
	pf.SkipConfirmation = getEnvAsBool("POSTFINANCE_SKIP_CONFIRMATION_VIEW", false)

	algo, err := checksum.ParseAlgorithm(os.Getenv("POSTFINANCE_HASH_ALGORITHM"))
	if err != nil {
		return nil, &ConfigurationError{Key: "POSTFINANCE_HASH_ALGORITHM", Reason: err.Error()}
	}
	pf.HashAlgorithm = algo

	pf.LanguageTable = map[string]string{}
	pf.ExtraFields = map[string]string{}
	if path := os.Getenv("POSTFINANCE_SETTINGS_FILE"); path != "" {
		settings, err := LoadSettingsFile(path)
		if err != nil {
			return nil, &ConfigurationError{Key: "POSTFINANCE_SETTINGS_FILE", Reason: err.Error()}
		}
		settings.apply(pf)
	}
	if raw := os.Getenv("POSTFINANCE_RFC5646_CONVERSION_TABLE"); raw != "" {
		table, err := parsePairs(raw)
		if err != nil {
			return nil, &ConfigurationError{Key: "POSTFINANCE_RFC5646_CONVERSION_TABLE", Reason: err.Error()}
		}
		for k, v := range table {
			pf.LanguageTable[k] = v
		}
	}
	if raw := os.Getenv("POSTFINANCE_EXTRA_CONFIGS"); raw != "" {
		extra, err := parsePairs(raw)
		if err != nil {
			return nil, &ConfigurationError{Key: "POSTFINANCE_EXTRA_CONFIGS", Reason: err.Error()}
		}
		for k, v := range extra {
			pf.ExtraFields[k] = v
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns a *ConfigurationError for the first problem found.
func (c *Config) Validate() error {
	if err := c.PostFinance.Validate(); err != nil {
		return err
	}
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return &ConfigurationError{Key: "STORE_DRIVER", Reason: fmt.Sprintf("unsupported driver %q", c.StoreDriver)}
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return &ConfigurationError{Key: "HTTP_PORT", Reason: "must be between 1 and 65535"}
	}
	return nil
}

func (pf *PostFinanceConfig) Validate() error {
	required := []struct{ key, value string }{
		{"POSTFINANCE_SECRET_KEY", pf.SecretKey},
		{"POSTFINANCE_SHAOUT_KEY", pf.ShaOutKey},
		{"POSTFINANCE_PSP_ID", pf.PSPID},
		{"POSTFINANCE_CURRENCY", pf.Currency},
	}
	for _, r := range required {
		if r.value == "" {
			return &ConfigurationError{Key: r.key, Reason: "must be set"}
		}
	}
	if len(pf.Currency) != 3 {
		return &ConfigurationError{Key: "POSTFINANCE_CURRENCY", Reason: "must be an ISO 4217 code"}
	}
	if _, err := checksum.ParseAlgorithm(string(pf.HashAlgorithm)); err != nil {
		return &ConfigurationError{Key: "POSTFINANCE_HASH_ALGORITHM", Reason: err.Error()}
	}
	if err := ValidateFallbackLanguage(pf.FallbackLanguage); err != nil {
		return err
	}
	u, err := url.Parse(pf.EntryURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigurationError{Key: "POSTFINANCE_ENTRY_URL", Reason: "must be an absolute URL"}
	}
	return nil
}

// ValidateFallbackLanguage checks the "xx_YY" form: an ISO-639-1 code, an
// underscore and an ISO-3166 code.
func ValidateFallbackLanguage(lang string) error {
	if !fallbackLanguagePattern.MatchString(lang) {
		return &ConfigurationError{
			Key:    "POSTFINANCE_FALLBACK_LANGUAGE",
			Reason: fmt.Sprintf("%q must be in format \"xx_YY\" where \"xx\" is a ISO-639-1 code and \"YY\" a ISO-3166 code", lang),
		}
	}
	return nil
}

func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBConfig.Host, c.DBConfig.Port, c.DBConfig.User, c.DBConfig.Password, c.DBConfig.Name, c.DBConfig.SSLMode)
}

func (c *Config) GetDBMigrationConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.DBConfig.User), url.QueryEscape(c.DBConfig.Password), c.DBConfig.Host, c.DBConfig.Port, c.DBConfig.Name, c.DBConfig.SSLMode)
}

func (c *Config) GetKafkaBrokers() []string {
	return splitList(c.KafkaBrokerURL)
}

// parsePairs reads "key=value,key=value".
func parsePairs(raw string) (map[string]string, error) {
	out := map[string]string{}
	for _, item := range splitList(raw) {
		k, v, ok := strings.Cut(item, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("malformed pair %q, expected key=value", item)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnvOrDefault(key, strconv.FormatBool(defaultValue))
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
