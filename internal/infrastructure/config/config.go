package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Surprise Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Session   SessionConfig   `yaml:"session"`
	Device    DeviceConfig    `yaml:"device"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Database  DatabaseConfig  `yaml:"database"`
	Cues      CuesConfig      `yaml:"cues"`
	Clicker   ClickerConfig   `yaml:"clicker"`
	Security  SecurityConfig  `yaml:"security"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServiceConfig identifies this installation.
type ServiceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// SessionConfig holds the timing and randomisation parameters of a session.
//
// Bounds are whole seconds because intervals are drawn as uniform integers.
// Windows and periods are durations ("15m", "900s").
type SessionConfig struct {
	// FailsafeStart is how long Waiting lasts before the session starts on its own.
	FailsafeStart time.Duration `yaml:"failsafe_start"`

	// MaxSession is the longest a session may run before it is forced to end.
	MaxSession time.Duration `yaml:"max_session"`

	// DelayMin is the lower bound (seconds) of every random draw.
	// Must be less than StartSleepMax, OnMax and OffMax.
	DelayMin int `yaml:"delay_min"`

	// StartSleepMax is the upper bound (seconds) of the delay before the first On.
	StartSleepMax int `yaml:"start_sleep_max"`

	// OnMax and OffMax are the upper bounds (seconds) of a single On/Off draw.
	OnMax  int `yaml:"on_max"`
	OffMax int `yaml:"off_max"`

	// AddOnPercent and AddOffPercent are the chances (0-99) of extending an
	// interval with another draw. Extension repeats until a roll fails.
	AddOnPercent  int `yaml:"add_on_percent"`
	AddOffPercent int `yaml:"add_off_percent"`

	// TeasePercent is the chance (0-100) of dividing an interval over 10s by ten.
	TeasePercent int `yaml:"tease_percent"`

	// KeepaliveInterval is how often the device mode is cycled while idle.
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`

	// PowerTiers is the weighted list of power commands picked at random while On.
	// Repeat an entry to make it more likely.
	PowerTiers []string `yaml:"power_tiers"`

	// Modes is the list of device modes sequenced through in shuffled order.
	// Repeat an entry to make it more likely.
	Modes []string `yaml:"modes"`

	// AdjustStep is the level delta applied by one up/down press.
	AdjustStep int `yaml:"adjust_step"`

	// AnnouncePower plays a cue naming the power tier on every change.
	AnnouncePower bool `yaml:"announce_power"`

	// TimeScale multiplies every timer. 1 in production; 0.01 for bench testing.
	TimeScale float64 `yaml:"time_scale"`
}

// DeviceModes lists the mode names the device accepts for session.modes.
var DeviceModes = []string{
	"throb", "climb", "audio-loud", "audio-waves", "combo", "hi-freq",
	"audio-soft", "user", "thump", "ramp", "intense", "waves", "thrust",
	"stroke", "random", "off",
}

// et232LevelMax is the largest value an ET232 register holds.
const et232LevelMax = 255

// DeviceConfig selects and configures the device backend.
type DeviceConfig struct {
	// Backend is "et232" (serial) or "dweeb" (networked JSON).
	Backend string `yaml:"backend"`

	// HardMaxA and HardMaxB are the per-channel ceilings no adjustment may exceed.
	HardMaxA int `yaml:"hard_max_a"`
	HardMaxB int `yaml:"hard_max_b"`

	// Level multipliers applied to the current max level.
	MaxPlusLevel float64 `yaml:"max_plus_level"`
	NormalLevel  float64 `yaml:"normal_level"`
	LowLevel     float64 `yaml:"low_level"`

	Serial    SerialConfig          `yaml:"serial"`
	Dweeb     DweebConfig           `yaml:"dweeb"`
	Reconnect DeviceReconnectConfig `yaml:"reconnect"`
}

// SerialConfig configures the ET232 serial link.
type SerialConfig struct {
	Port        string        `yaml:"port"`
	BaudRate    int           `yaml:"baud_rate"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// DweebConfig configures the networked device server.
type DweebConfig struct {
	// URL is the HTTP device listing endpoint.
	URL string `yaml:"url"`
	// WSURL is the WebSocket command endpoint.
	WSURL string `yaml:"ws_url"`
	// DeviceName selects the device from the listing.
	DeviceName string `yaml:"device_name"`
	// CommandSpacing is the pause after each command sent to the server.
	CommandSpacing time.Duration `yaml:"command_spacing"`
}

// DeviceReconnectConfig controls the reconnect loop of the device consumer.
type DeviceReconnectConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	// NotifyEvery plays the connection problem cue every N failed attempts.
	NotifyEvery int `yaml:"notify_every"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// SecurityConfig contains API authorisation settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains action token settings. An empty Secret leaves the
// action endpoint open to any same-origin JSON client on the network.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	// TokenTTL is the lifetime of tokens minted by `surprise token`.
	// Zero issues tokens that never expire.
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
	// TimerInterval is how often the timer line is pushed to observers.
	TimerInterval time.Duration `yaml:"timer_interval"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DatabaseConfig contains SQLite settings for the session history log.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// CuesConfig configures audio cue playback.
type CuesConfig struct {
	Enabled bool     `yaml:"enabled"`
	Player  string   `yaml:"player"`
	Args    []string `yaml:"args"`
	Dir     string   `yaml:"dir"`
	// Timeout bounds a single playback.
	Timeout time.Duration `yaml:"timeout"`
}

// ClickerConfig configures the presentation clicker input device.
type ClickerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Device  string `yaml:"device"`
	// Keys maps evdev key codes to logical actions (up, down, left, right, middle).
	Keys map[uint16]string `yaml:"keys"`
	// RetryDelay is the pause before reopening the device after a failure.
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SURPRISE_SECTION_KEY
// For example: SURPRISE_DEVICE_BACKEND, SURPRISE_MAX_SESSION
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with the stock session parameters.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			ID:   "surprise-001",
			Name: "Surprise",
		},
		Session: SessionConfig{
			FailsafeStart:     900 * time.Second,
			MaxSession:        120 * time.Minute,
			DelayMin:          15,
			StartSleepMax:     180,
			OnMax:             180,
			OffMax:            120,
			AddOnPercent:      25,
			AddOffPercent:     18,
			TeasePercent:      20,
			KeepaliveInterval: 15 * time.Minute,
			PowerTiers:        []string{"on_low", "on_low", "on_norm", "on_norm", "on_max", "on_max_plus"},
			Modes: []string{
				"waves", "intense", "random", "audio-soft",
				"audio-waves", "hi-freq", "climb", "throb",
				"combo", "thrust", "thump", "ramp", "stroke",
				"intense", "random", "throb", "thrust", "thrust", "ramp",
			},
			AdjustStep: 2,
			TimeScale:  1,
		},
		Device: DeviceConfig{
			Backend:      "et232",
			HardMaxA:     105,
			HardMaxB:     135,
			MaxPlusLevel: 1.1,
			NormalLevel:  0.88,
			LowLevel:     0.73,
			Serial: SerialConfig{
				Port:        "/dev/ttyUSB0",
				BaudRate:    19200,
				ReadTimeout: 500 * time.Millisecond,
			},
			Dweeb: DweebConfig{
				URL:            "http://localhost:31280/devices",
				WSURL:          "ws://localhost:31280/devices",
				DeviceName:     "ET 232",
				CommandSpacing: 1500 * time.Millisecond,
			},
			Reconnect: DeviceReconnectConfig{
				InitialDelay: 200 * time.Millisecond,
				MaxDelay:     5 * time.Second,
				NotifyEvery:  10,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "surprise-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8888,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
			TimerInterval:  500 * time.Millisecond,
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "surprise",
			Bucket:        "sessions",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Database: DatabaseConfig{
			Path:        "./data/surprise.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Cues: CuesConfig{
			Player:  "/usr/bin/mpg123",
			Args:    []string{"-q"},
			Dir:     "sounds",
			Timeout: 10 * time.Second,
		},
		Clicker: ClickerConfig{
			Device: "/dev/input/event0",
			Keys: map[uint16]string{
				1:   "up",
				104: "left",
				109: "right",
				48:  "down",
				42:  "middle",
			},
			RetryDelay: 5 * time.Second,
		},
		Security: SecurityConfig{
			JWT: JWTConfig{TokenTTL: 90 * 24 * time.Hour},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SURPRISE_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SURPRISE_DEVICE_BACKEND"); v != "" {
		cfg.Device.Backend = v
	}
	if v := os.Getenv("SURPRISE_SERIAL_PORT"); v != "" {
		cfg.Device.Serial.Port = v
	}
	if v := os.Getenv("SURPRISE_MAX_SESSION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SURPRISE_MAX_SESSION: %w", err)
		}
		cfg.Session.MaxSession = d
	}
	if v := os.Getenv("SURPRISE_TIME_SCALE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SURPRISE_TIME_SCALE: %w", err)
		}
		cfg.Session.TimeScale = f
	}

	if v := os.Getenv("SURPRISE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("SURPRISE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SURPRISE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SURPRISE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("SURPRISE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("SURPRISE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("SURPRISE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Service.ID == "" {
		errs = append(errs, "service.id is required")
	}

	s := c.Session
	if s.DelayMin < 0 {
		errs = append(errs, "session.delay_min must not be negative")
	}
	for name, bound := range map[string]int{
		"session.start_sleep_max": s.StartSleepMax,
		"session.on_max":          s.OnMax,
		"session.off_max":         s.OffMax,
	} {
		if bound < s.DelayMin {
			errs = append(errs, fmt.Sprintf("%s must be at least session.delay_min", name))
		}
	}
	for name, pct := range map[string]int{
		"session.add_on_percent":  s.AddOnPercent,
		"session.add_off_percent": s.AddOffPercent,
	} {
		if pct < 0 || pct >= 100 {
			errs = append(errs, fmt.Sprintf("%s must be between 0 and 99", name))
		}
	}
	if s.TeasePercent < 0 || s.TeasePercent > 100 {
		errs = append(errs, "session.tease_percent must be between 0 and 100")
	}
	if s.MaxSession <= 0 {
		errs = append(errs, "session.max_session must be positive")
	}
	if s.KeepaliveInterval <= 0 {
		errs = append(errs, "session.keepalive_interval must be positive")
	}
	if len(s.PowerTiers) == 0 {
		errs = append(errs, "session.power_tiers must not be empty")
	}
	if len(s.Modes) == 0 {
		errs = append(errs, "session.modes must not be empty")
	}
	for _, m := range s.Modes {
		if !slices.Contains(DeviceModes, m) {
			errs = append(errs, fmt.Sprintf("session.modes: unknown mode %q", m))
		}
	}
	if s.TimeScale <= 0 {
		errs = append(errs, "session.time_scale must be positive")
	}

	switch strings.ToLower(c.Device.Backend) {
	case "et232", "dweeb":
	default:
		errs = append(errs, "device.backend must be et232 or dweeb")
	}
	if c.Device.HardMaxA <= 0 || c.Device.HardMaxB <= 0 {
		errs = append(errs, "device.hard_max_a and device.hard_max_b must be positive")
	}
	if strings.EqualFold(c.Device.Backend, "et232") && (c.Device.HardMaxA > et232LevelMax || c.Device.HardMaxB > et232LevelMax) {
		errs = append(errs, fmt.Sprintf("device.hard_max_a and device.hard_max_b must not exceed %d for et232", et232LevelMax))
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	const minJWTSecretLength = 32
	if c.Security.JWT.Secret != "" && len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}
	if c.Security.JWT.TokenTTL < 0 {
		errs = append(errs, "security.jwt.token_ttl must not be negative")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url, influxdb.org and influxdb.bucket are required when InfluxDB is enabled")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the database is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
