package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Hub        HubConfig
	Classifier ClassifierConfig
	Channel    ChannelConfig
	Cleanup    CleanupConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for managed-postgres posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

// HubConfig controls the realtime hub.
type HubConfig struct {
	// PresenceTTL is how long a session stays "online" without any
	// received event before it is considered gone.
	PresenceTTL time.Duration

	// AllowedOrigins for the websocket upgrade. Empty or "*" allows all.
	AllowedOrigins []string
}

// ClassifierConfig controls the AI sector classifier.
// An empty APIKey disables classification; routing falls back to the
// first active sector.
type ClassifierConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// ChannelConfig points at the external messaging gateway used for
// outbound delivery. An empty GatewayURL is allowed outside production;
// sends are then logged and dropped.
type ChannelConfig struct {
	GatewayURL  string
	Token       string
	SendTimeout time.Duration
}

// CleanupConfig controls background archival of stale conversations.
type CleanupConfig struct {
	InactiveAfter time.Duration
	Interval      time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	{
		d, err := optDuration("JWT_ACCESS_TTL")
		d, parseErrs = appendDurErr(parseErrs, d, err)
		c.Auth.AccessTokenTTL = d
	}

	{
		d, err := optDuration("HUB_PRESENCE_TTL")
		d, parseErrs = appendDurErr(parseErrs, d, err)
		c.Hub.PresenceTTL = d
	}
	if raw := strings.TrimSpace(os.Getenv("HUB_ALLOWED_ORIGINS")); raw != "" {
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Hub.AllowedOrigins = append(c.Hub.AllowedOrigins, o)
			}
		}
	}

	c.Classifier.APIKey = os.Getenv("OPENAI_API_KEY")
	c.Classifier.Model = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	{
		d, err := optDuration("CLASSIFIER_TIMEOUT")
		d, parseErrs = appendDurErr(parseErrs, d, err)
		c.Classifier.Timeout = d
	}

	c.Channel.GatewayURL = strings.TrimSpace(os.Getenv("CHANNEL_GATEWAY_URL"))
	c.Channel.Token = os.Getenv("CHANNEL_GATEWAY_TOKEN")
	{
		d, err := optDuration("CHANNEL_SEND_TIMEOUT")
		d, parseErrs = appendDurErr(parseErrs, d, err)
		c.Channel.SendTimeout = d
	}

	{
		d, err := optDuration("CLEANUP_INACTIVE_AFTER")
		d, parseErrs = appendDurErr(parseErrs, d, err)
		c.Cleanup.InactiveAfter = d
	}
	{
		d, err := optDuration("CLEANUP_INTERVAL")
		d, parseErrs = appendDurErr(parseErrs, d, err)
		c.Cleanup.Interval = d
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
		if c.Channel.GatewayURL == "" {
			errs = append(errs, errors.New("CHANNEL_GATEWAY_URL is required in production"))
		}
	}

	if c.Auth.AccessTokenTTL <= 0 {
		// Short-lived by default; agents re-handshake on reconnect anyway.
		c.Auth.AccessTokenTTL = 12 * time.Hour
	}
	if c.Hub.PresenceTTL <= 0 {
		c.Hub.PresenceTTL = 5 * time.Minute
	}
	if c.Classifier.Timeout <= 0 {
		c.Classifier.Timeout = 5 * time.Second
	}
	if c.Channel.SendTimeout <= 0 {
		c.Channel.SendTimeout = 10 * time.Second
	}
	if c.Cleanup.InactiveAfter <= 0 {
		// Mirrors the usual "one quiet week means the client is gone" rule.
		c.Cleanup.InactiveAfter = 7 * 24 * time.Hour
	}
	if c.Cleanup.Interval <= 0 {
		c.Cleanup.Interval = time.Hour
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

// optDuration parses an optional duration env var. Absence is fine
// (defaults apply in Validate); a present but malformed value is a
// config error, never a silent zero.
func optDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 30s or 5m, got %q", key, v)
	}
	return d, nil
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func appendDurErr(errs []error, d time.Duration, err error) (time.Duration, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return d, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	for i, e := range errs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.Error())
	}
	return errors.New(b.String())
}
