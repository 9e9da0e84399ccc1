package toast

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/WelcomerTeam/Toast/discord"
	"github.com/WelcomerTeam/Toast/rest"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, for example TOAST_TOKEN.
const EnvPrefix = "TOAST_"

type Configuration struct {
	Token string `yaml:"token" env:"TOKEN"`

	// Identifier labels metrics and the status api.
	Identifier string `yaml:"identifier" env:"IDENTIFIER"`

	Shards   ShardConfiguration    `yaml:"shards" envPrefix:"SHARDS_"`
	Identify IdentifyConfiguration `yaml:"identify" envPrefix:"IDENTIFY_"`
	Timeouts TimeoutConfiguration  `yaml:"timeouts" envPrefix:"TIMEOUT_"`
	REST     RESTConfiguration     `yaml:"rest" envPrefix:"REST_"`
	Producer ProducerConfiguration `yaml:"producer" envPrefix:"PRODUCER_"`
	HTTP     HTTPConfiguration     `yaml:"http" envPrefix:"HTTP_"`
	Logging  LoggingConfiguration  `yaml:"logging" envPrefix:"LOG_"`
}

type ShardConfiguration struct {
	// Count is "auto" or a number.
	Count string `yaml:"count" env:"COUNT"`

	// IDs is a range list such as "0-3,6".
	IDs string `yaml:"ids" env:"IDS"`

	// This is used to segment automatically sharded processes.
	NodeCount int32 `yaml:"node_count" env:"NODE_COUNT"`
	NodeID    int32 `yaml:"node_id" env:"NODE_ID"`
}

type IdentifyConfiguration struct {
	Intents        int64 `yaml:"intents" env:"INTENTS"`
	LargeThreshold int32 `yaml:"large_threshold" env:"LARGE_THRESHOLD"`
	Compress       bool  `yaml:"compress" env:"COMPRESS"`

	OS      string `yaml:"os" env:"OS"`
	Browser string `yaml:"browser" env:"BROWSER"`
	Device  string `yaml:"device" env:"DEVICE"`

	Presence *PresenceConfiguration `yaml:"presence"`

	// URL of an identify coordinator. Empty uses in-process buckets.
	URL     string            `yaml:"url" env:"URL"`
	Headers map[string]string `yaml:"headers"`
}

// PresenceConfiguration is the presence sent when identifying. Activity
// name and state may contain {{shard_id}}.
type PresenceConfiguration struct {
	Status        string `yaml:"status"`
	AFK           bool   `yaml:"afk"`
	ActivityType  int    `yaml:"activity_type"`
	ActivityName  string `yaml:"activity_name"`
	ActivityState string `yaml:"activity_state"`
	ActivityURL   string `yaml:"activity_url"`
}

type TimeoutConfiguration struct {
	WaitGuild        time.Duration `yaml:"wait_guild" env:"WAIT_GUILD"`
	Hello            time.Duration `yaml:"hello" env:"HELLO"`
	Close            time.Duration `yaml:"close" env:"CLOSE"`
	SpawnDelay       time.Duration `yaml:"spawn_delay" env:"SPAWN_DELAY"`
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff" env:"RECONNECT_BACKOFF"`
}

type RESTConfiguration struct {
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	Version int    `yaml:"version" env:"VERSION"`

	// Redirects every request through a proxy such as twilight or nirn.
	ProxyURL string `yaml:"proxy_url" env:"PROXY_URL"`

	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	TimeOffset     time.Duration `yaml:"time_offset" env:"TIME_OFFSET"`
	RetryLimit     *int          `yaml:"retry_limit" env:"RETRY_LIMIT"`

	GlobalRateLimit               *int `yaml:"global_rate_limit" env:"GLOBAL_RATE_LIMIT"`
	InvalidRequestWarningInterval int  `yaml:"invalid_request_warning_interval" env:"INVALID_REQUEST_WARNING_INTERVAL"`

	// Route prefixes that error instead of waiting when rate limited. "*"
	// rejects every route.
	RejectOnRateLimit []string `yaml:"reject_on_rate_limit" env:"REJECT_ON_RATE_LIMIT" envSeparator:","`
}

type ProducerConfiguration struct {
	// Type is an mq client name. Empty disables producing.
	Type    string         `yaml:"type" env:"TYPE"`
	Address string         `yaml:"address" env:"ADDRESS"`
	Channel string         `yaml:"channel" env:"CHANNEL"`
	Options map[string]any `yaml:"options"`

	// Events that are not produced.
	Blacklist []string `yaml:"blacklist" env:"BLACKLIST" envSeparator:","`
}

type HTTPConfiguration struct {
	// Address of the status and metrics listener. Empty disables it.
	Address string `yaml:"address" env:"ADDRESS"`
}

type LoggingConfiguration struct {
	Level   string `yaml:"level" env:"LEVEL"`
	Console bool   `yaml:"console" env:"CONSOLE"`

	FilePath   string `yaml:"file_path" env:"FILE_PATH"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" env:"MAX_AGE_DAYS"`
	Compress   bool   `yaml:"compress" env:"COMPRESS"`
}

var errInvalidShardCount = errors.New("shard count must be auto or a positive number")

// ShardCount returns the configured shard count, 0 meaning auto.
func (c *ShardConfiguration) ShardCount() (int32, error) {
	if c.Count == "" || strings.EqualFold(c.Count, "auto") {
		return 0, nil
	}

	count, err := strconv.ParseInt(c.Count, 10, 32)
	if err != nil || count < 1 {
		return 0, fmt.Errorf("%w: %q", errInvalidShardCount, c.Count)
	}

	return int32(count), nil
}

func (c *PresenceConfiguration) UpdateStatus() *discord.UpdateStatus {
	if c == nil {
		return nil
	}

	presence := &discord.UpdateStatus{
		Status: c.Status,
		AFK:    c.AFK,
	}

	if c.ActivityName != "" || c.ActivityState != "" {
		activity := &discord.Activity{
			Name:  c.ActivityName,
			State: c.ActivityState,
			Type:  discord.ActivityType(c.ActivityType),
		}

		if c.ActivityURL != "" {
			url := c.ActivityURL
			activity.URL = &url
		}

		presence.Activities = []*discord.Activity{activity}
	}

	return presence
}

func (c *Configuration) IdentifyOptions() IdentifyOptions {
	return IdentifyOptions{
		Token:   c.Token,
		Intents: discord.GatewayIntent(c.Identify.Intents),
		Properties: discord.IdentifyProperties{
			OS:      c.Identify.OS,
			Browser: c.Identify.Browser,
			Device:  c.Identify.Device,
		},
		Presence:       c.Identify.Presence.UpdateStatus(),
		LargeThreshold: c.Identify.LargeThreshold,
		Compress:       c.Identify.Compress,
	}
}

// ManagerOptions builds the orchestrator options. The logger and identify
// provider are left for the caller.
func (c *Configuration) ManagerOptions() (ManagerOptions, error) {
	shardCount, err := c.Shards.ShardCount()
	if err != nil {
		return ManagerOptions{}, err
	}

	return ManagerOptions{
		Identifier:       c.Identifier,
		Token:            c.Token,
		ShardCount:       shardCount,
		ShardIDs:         c.Shards.IDs,
		NodeCount:        c.Shards.NodeCount,
		NodeID:           c.Shards.NodeID,
		Identify:         c.IdentifyOptions(),
		WaitGuildTimeout: c.Timeouts.WaitGuild,
		HelloTimeout:     c.Timeouts.Hello,
		CloseTimeout:     c.Timeouts.Close,
		SpawnDelay:       c.Timeouts.SpawnDelay,
		ReconnectBackoff: c.Timeouts.ReconnectBackoff,
	}, nil
}

// RESTOptions builds the pipeline options on top of rest.DefaultOptions.
func (c *Configuration) RESTOptions() (rest.Options, error) {
	options := rest.DefaultOptions()
	options.Token = c.Token
	options.UserAgent = UserAgent

	if c.REST.BaseURL != "" {
		options.BaseURL = c.REST.BaseURL
	}

	if c.REST.Version > 0 {
		options.Version = c.REST.Version
	}

	if c.REST.RequestTimeout > 0 {
		options.RequestTimeout = c.REST.RequestTimeout
	}

	if c.REST.TimeOffset > 0 {
		options.TimeOffset = c.REST.TimeOffset
	}

	if c.REST.RetryLimit != nil {
		options.RetryLimit = *c.REST.RetryLimit
	}

	if c.REST.GlobalRateLimit != nil {
		options.GlobalRateLimit = *c.REST.GlobalRateLimit
	}

	options.InvalidRequestWarningInterval = c.REST.InvalidRequestWarningInterval

	if len(c.REST.RejectOnRateLimit) == 1 && c.REST.RejectOnRateLimit[0] == "*" {
		options.RejectOnRateLimit = rest.RejectAll()
	} else if len(c.REST.RejectOnRateLimit) > 0 {
		options.RejectOnRateLimit = rest.RejectRoutes(c.REST.RejectOnRateLimit...)
	}

	if c.REST.ProxyURL != "" {
		client, err := NewProxyClient(*options.HTTPClient, c.REST.ProxyURL)
		if err != nil {
			return rest.Options{}, err
		}

		options.HTTPClient = client
	}

	return options, nil
}

// ProducerArgs returns the arguments passed to the mq client Connect.
func (c *ProducerConfiguration) ProducerArgs() map[string]any {
	args := make(map[string]any, len(c.Options)+2)

	for key, value := range c.Options {
		if str, ok := value.(string); ok {
			args[key] = str
		} else {
			args[key] = fmt.Sprint(value)
		}
	}

	args["Address"] = c.Address
	args["Channel"] = c.Channel

	return args
}

type ConfigProvider interface {
	GetConfig(ctx context.Context) (*Configuration, error)
	SaveConfig(ctx context.Context, config *Configuration) error
}

// ConfigProviderFromPath reads and writes a yaml file. Environment
// variables override what is read.
type ConfigProviderFromPath struct {
	path string
}

func NewConfigProviderFromPath(path string) ConfigProviderFromPath {
	return ConfigProviderFromPath{path}
}

func (c ConfigProviderFromPath) GetConfig(_ context.Context) (*Configuration, error) {
	var config Configuration

	if c.path != "" {
		data, err := os.ReadFile(c.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(&config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	return &config, nil
}

func (c ConfigProviderFromPath) SaveConfig(_ context.Context, config *Configuration) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(c.path, data, 0o600)
}

// LoadDotEnv loads .env files into the environment. Missing files are
// ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	return nil
}
