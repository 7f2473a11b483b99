package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"snowstream/pkg/errors"
)

// Property keys with defaults. Timing values are empirically tuned; the
// defaults must not change without re-measuring backpressure behavior.
const (
	KeyBatchSize              = "orders.batch.size"
	KeyInsertPauseMillis      = "insert.pause.millis"
	KeyFlushWaitSeconds       = "flush.wait.seconds"
	KeyWorkerFlushWaitSeconds = "worker.flush.wait.seconds"
	KeyBatchMaxRetries        = "batch.max.retries"
	KeyBatchRetryDelayMillis  = "batch.retry.delay.millis"
	KeyBackpressureAttempts   = "backpressure.max.attempts"
	KeyBackpressureInitMillis = "backpressure.initial.delay.millis"
	KeyBackpressureMaxMillis  = "backpressure.max.delay.millis"

	KeyOrdersPipe    = "pipe.orders.name"
	KeyItemsPipe     = "pipe.order_items.name"
	KeyOrdersChannel = "channel.orders.name"
	KeyItemsChannel  = "channel.order_items.name"
)

var requiredProperties = []string{
	KeyOrdersPipe,
	KeyItemsPipe,
	KeyOrdersChannel,
	KeyItemsChannel,
}

var requiredProfileFields = []string{
	"user", "account", "url", "private_key", "database", "schema", "warehouse",
}

// DefaultRole is assumed when the profile omits an explicit role.
const DefaultRole = "AUTOMATED_INTELLIGENCE"

// Profile holds the warehouse connection profile loaded from profile.json.
type Profile struct {
	Account    string `mapstructure:"account"`
	User       string `mapstructure:"user"`
	URL        string `mapstructure:"url"`
	PrivateKey string `mapstructure:"private_key"`
	Database   string `mapstructure:"database"`
	Schema     string `mapstructure:"schema"`
	Warehouse  string `mapstructure:"warehouse"`
	Role       string `mapstructure:"role"`
}

// Config is the explicit configuration value constructed once at startup and
// passed into each component. There is no ambient/global lookup.
type Config struct {
	Profile Profile

	props *viper.Viper
}

// Load reads the key/value properties file and the JSON connection profile,
// validating both. A missing file or missing required key is a fatal startup
// fault.
func Load(propertiesPath, profilePath string) (*Config, error) {
	if _, err := os.Stat(propertiesPath); err != nil {
		return nil, errors.Newf(errors.ErrCodeConfigNotFound,
			"properties file not found: %s", propertiesPath)
	}
	if _, err := os.Stat(profilePath); err != nil {
		return nil, errors.Newf(errors.ErrCodeConfigNotFound,
			"profile file not found: %s", profilePath)
	}

	props := viper.New()
	props.SetConfigFile(propertiesPath)
	props.SetConfigType("properties")
	if err := props.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to parse properties file %s", propertiesPath))
	}

	prof := viper.New()
	prof.SetConfigFile(profilePath)
	prof.SetConfigType("json")
	if err := prof.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to parse profile file %s", profilePath))
	}

	var profile Profile
	if err := prof.Unmarshal(&profile); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid,
			"failed to decode connection profile")
	}

	cfg := &Config{Profile: profile, props: props}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// New builds a Config from in-memory values. Used by the setup wizard and by
// tests; Load is the production path.
func New(props map[string]string, profile Profile) *Config {
	v := viper.New()
	for k, val := range props {
		v.Set(k, val)
	}
	if profile.Role == "" {
		profile.Role = DefaultRole
	}
	return &Config{Profile: profile, props: v}
}

func (c *Config) validate() error {
	var missing []string
	for _, key := range requiredProperties {
		if !c.props.IsSet(key) || c.props.GetString(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return errors.Newf(errors.ErrCodeConfigMissingKey,
			"required properties missing: %s", strings.Join(missing, ", "))
	}

	prof := map[string]string{
		"user":        c.Profile.User,
		"account":     c.Profile.Account,
		"url":         c.Profile.URL,
		"private_key": c.Profile.PrivateKey,
		"database":    c.Profile.Database,
		"schema":      c.Profile.Schema,
		"warehouse":   c.Profile.Warehouse,
	}
	missing = missing[:0]
	for _, field := range requiredProfileFields {
		if prof[field] == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return errors.Newf(errors.ErrCodeConfigMissingKey,
			"required profile fields missing: %s", strings.Join(missing, ", "))
	}

	if c.Profile.Role == "" {
		c.Profile.Role = DefaultRole
	}
	return nil
}

// Property returns a raw string property, or def when unset.
func (c *Config) Property(key, def string) string {
	if !c.props.IsSet(key) {
		return def
	}
	return c.props.GetString(key)
}

// IntProperty returns an integer property, or def when unset.
func (c *Config) IntProperty(key string, def int) int {
	if !c.props.IsSet(key) {
		return def
	}
	return c.props.GetInt(key)
}

// BatchSize is the number of orders generated and appended per batch.
func (c *Config) BatchSize() int {
	return c.IntProperty(KeyBatchSize, 10000)
}

// InsertPause is the drain pause between the order insert and the dependent
// item insert within one batch.
func (c *Config) InsertPause() time.Duration {
	return time.Duration(c.IntProperty(KeyInsertPauseMillis, 100)) * time.Millisecond
}

// FlushWait is the post-run wait before reconciliation begins.
func (c *Config) FlushWait() time.Duration {
	return time.Duration(c.IntProperty(KeyFlushWaitSeconds, 5)) * time.Second
}

// WorkerFlushWait is the per-worker settle wait after its last batch.
func (c *Config) WorkerFlushWait() time.Duration {
	return time.Duration(c.IntProperty(KeyWorkerFlushWaitSeconds, 2)) * time.Second
}

// BatchMaxRetries is the number of outer retries per insert call.
func (c *Config) BatchMaxRetries() int {
	return c.IntProperty(KeyBatchMaxRetries, 3)
}

// BatchRetryDelay is the linear backoff unit for the outer retry loop.
func (c *Config) BatchRetryDelay() time.Duration {
	return time.Duration(c.IntProperty(KeyBatchRetryDelayMillis, 1000)) * time.Millisecond
}

// BackpressureMaxAttempts is the channel-layer retry budget.
func (c *Config) BackpressureMaxAttempts() int {
	return c.IntProperty(KeyBackpressureAttempts, 5)
}

// BackpressureInitialDelay is the first channel-layer backoff delay.
func (c *Config) BackpressureInitialDelay() time.Duration {
	return time.Duration(c.IntProperty(KeyBackpressureInitMillis, 1000)) * time.Millisecond
}

// BackpressureMaxDelay caps the channel-layer exponential backoff.
func (c *Config) BackpressureMaxDelay() time.Duration {
	return time.Duration(c.IntProperty(KeyBackpressureMaxMillis, 30000)) * time.Millisecond
}

// OrdersPipe returns the pipe name for the orders table.
func (c *Config) OrdersPipe() string { return c.props.GetString(KeyOrdersPipe) }

// ItemsPipe returns the pipe name for the order items table.
func (c *Config) ItemsPipe() string { return c.props.GetString(KeyItemsPipe) }

// OrdersChannel returns the base channel name for the orders stream.
func (c *Config) OrdersChannel() string { return c.props.GetString(KeyOrdersChannel) }

// ItemsChannel returns the base channel name for the order items stream.
func (c *Config) ItemsChannel() string { return c.props.GetString(KeyItemsChannel) }
