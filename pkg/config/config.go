// Package config provides YAML-based configuration loading for the
// log multiplexing engine.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	// AppName is an optional logical name for the running process,
	// used as the default registered-subsystem prefix.
	AppName string `mapstructure:"app_name"`

	// DataDir is loaded and defaulted but not read by any component:
	// sink.path and diag.output_path are used as given.
	DataDir string `mapstructure:"data_dir"`

	// Engine holds the core de-interleaving pipeline's fixed sizing
	// and policy knobs (spec.md §6).
	Engine EngineConfig `mapstructure:"engine"`

	// Log holds the logger's own settings — the engine's diagnostics
	// and registration-event output, never the multiplexed stream
	// itself.
	Log LogConfig `mapstructure:"log"`

	// Sink selects and configures the single output driver.
	Sink SinkConfig `mapstructure:"sink"`

	// Net holds dial-backoff settings. They are loaded and defaulted,
	// but neither the quic nor the mqtt sink reads them.
	Net NetConfig `mapstructure:"net"`

	// Webtail optionally starts a websocket live-tail server,
	// independent of the configured Sink. logmux-node starts the
	// server but writes nothing into its Broadcaster, so connected
	// clients receive no multiplexed bytes from it.
	Webtail WebtailConfig `mapstructure:"webtail"`

	// Formats controls the numeric/textual header formatting knobs
	// carried forward from the original's LogFormat / per-type default
	// formats (log.h lines 22-38, 141-152).
	Formats FormatsConfig `mapstructure:"formats"`

	// Diag optionally periodically snapshots engine health to a file,
	// independent of the Sink.
	Diag DiagConfig `mapstructure:"diag"`
}

// DiagConfig configures the periodic engine-health snapshot reporter.
type DiagConfig struct {
	Enable     bool   `mapstructure:"enable"`
	PeriodMS   uint32 `mapstructure:"period_ms"`
	OutputPath string `mapstructure:"output_path"`
}

// FormatsConfig exposes the header formatting knobs spec.md §6 only
// gestures at ("a configured base/width"), including the toggle for
// the optional monotonic-time field spec.md's S1 scenario calls
// `noTimeField`.
type FormatsConfig struct {
	TaskIDBase uint8 `mapstructure:"task_id_base"`
	TaskIDFill uint8 `mapstructure:"task_id_fill"`

	TickEnabled bool  `mapstructure:"tick_enabled"`
	TickBase    uint8 `mapstructure:"tick_base"`
	TickFill    uint8 `mapstructure:"tick_fill"`

	AlignSigned      bool `mapstructure:"align_signed"`
	AppendBasePrefix bool `mapstructure:"append_base_prefix"`
}

// EngineConfig holds every fixed-at-construction sizing and policy
// option named in spec.md §6.
type EngineConfig struct {
	ChunkSize            int    `mapstructure:"chunk_size"`
	QueueLength          int    `mapstructure:"queue_length"`
	RingBufferLength     int    `mapstructure:"rb_length"`
	TransmitBufferLength int    `mapstructure:"tx_length"`
	PauseLengthMS        uint32 `mapstructure:"pause_length_ms"`
	RefreshPeriodMS      uint32 `mapstructure:"refresh_period_ms"`
	Blocking             bool   `mapstructure:"blocking"`
	// TaskRepresentation: "none", "id", or "name".
	TaskRepresentation string `mapstructure:"task_representation"`
	LogFromInterrupt   bool   `mapstructure:"log_from_interrupt"`
	EnableFluentAPI    bool   `mapstructure:"enable_fluent_api"`
	// AllowRegistrationLog mirrors the original's
	// allowRegistrationLog: log every RegisterCurrentTask call.
	AllowRegistrationLog bool `mapstructure:"allow_registration_log"`
}

// LogConfig defines the ambient logger's own settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// WebtailConfig configures the optional live-tail websocket server.
type WebtailConfig struct {
	Enable bool   `mapstructure:"enable"`
	Listen string `mapstructure:"listen"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		AppName: "logmux",
		DataDir: "./data",
		Engine: EngineConfig{
			ChunkSize:            8,
			QueueLength:          64,
			RingBufferLength:     64,
			TransmitBufferLength: 32,
			PauseLengthMS:        100,
			RefreshPeriodMS:      1000,
			Blocking:             true,
			TaskRepresentation:   "id",
			LogFromInterrupt:     true,
			EnableFluentAPI:      false,
			AllowRegistrationLog: true,
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Outputs:     []string{"stdout"},
			Development: true,
			Rotation: RotationConfig{
				Enable:     false,
				Filename:   "logs/logmux.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Sink: SinkConfig{
			Kind: "file",
			Path: "logs/output.log",
		},
		Net: NetConfig{DialBackoffInitialMS: 500, DialBackoffMaxMS: 30000, DialBackoffJitterMS: 100},
		Webtail: WebtailConfig{
			Enable: false,
			Listen: ":8089",
		},
		Formats: FormatsConfig{
			TaskIDBase:  16,
			TaskIDFill:  2,
			TickEnabled: false,
			TickBase:    10,
			TickFill:    5,
		},
		Diag: DiagConfig{
			Enable:     false,
			PeriodMS:   5000,
			OutputPath: "logs/diag.cbor",
		},
	}
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment
// overrides. Environment variables use the prefix LOGMUX, and `.`/`-`
// are replaced with `_`. Example: LOGMUX_LOG_LEVEL=debug
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LOGMUX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("app_name", cfg.AppName)
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("engine.chunk_size", cfg.Engine.ChunkSize)
	v.SetDefault("engine.queue_length", cfg.Engine.QueueLength)
	v.SetDefault("engine.rb_length", cfg.Engine.RingBufferLength)
	v.SetDefault("engine.tx_length", cfg.Engine.TransmitBufferLength)
	v.SetDefault("engine.pause_length_ms", cfg.Engine.PauseLengthMS)
	v.SetDefault("engine.refresh_period_ms", cfg.Engine.RefreshPeriodMS)
	v.SetDefault("engine.blocking", cfg.Engine.Blocking)
	v.SetDefault("engine.task_representation", cfg.Engine.TaskRepresentation)
	v.SetDefault("engine.log_from_interrupt", cfg.Engine.LogFromInterrupt)
	v.SetDefault("engine.enable_fluent_api", cfg.Engine.EnableFluentAPI)
	v.SetDefault("engine.allow_registration_log", cfg.Engine.AllowRegistrationLog)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("sink.kind", cfg.Sink.Kind)
	v.SetDefault("sink.path", cfg.Sink.Path)
	v.SetDefault("net.dial_backoff_initial_ms", cfg.Net.DialBackoffInitialMS)
	v.SetDefault("net.dial_backoff_max_ms", cfg.Net.DialBackoffMaxMS)
	v.SetDefault("net.dial_backoff_jitter_ms", cfg.Net.DialBackoffJitterMS)
	v.SetDefault("webtail.enable", cfg.Webtail.Enable)
	v.SetDefault("webtail.listen", cfg.Webtail.Listen)
	v.SetDefault("formats.task_id_base", cfg.Formats.TaskIDBase)
	v.SetDefault("formats.task_id_fill", cfg.Formats.TaskIDFill)
	v.SetDefault("formats.tick_enabled", cfg.Formats.TickEnabled)
	v.SetDefault("formats.tick_base", cfg.Formats.TickBase)
	v.SetDefault("formats.tick_fill", cfg.Formats.TickFill)
	v.SetDefault("formats.align_signed", cfg.Formats.AlignSigned)
	v.SetDefault("formats.append_base_prefix", cfg.Formats.AppendBasePrefix)
	v.SetDefault("diag.enable", cfg.Diag.Enable)
	v.SetDefault("diag.period_ms", cfg.Diag.PeriodMS)
	v.SetDefault("diag.output_path", cfg.Diag.OutputPath)

	if path == "" {
		if envPath := os.Getenv("LOGMUX_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("logmux")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".logmux"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var viperConfigFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &viperConfigFileNotFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch lvl {
	case "debug", "info", "warn", "warning", "error":
		// ok
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stdout"}
	}

	if c.Engine.ChunkSize < 2 {
		return fmt.Errorf("engine.chunk_size must be >= 2, got %d", c.Engine.ChunkSize)
	}
	if c.Engine.QueueLength < 1 {
		return fmt.Errorf("engine.queue_length must be >= 1, got %d", c.Engine.QueueLength)
	}
	if c.Engine.RingBufferLength < 1 {
		return fmt.Errorf("engine.rb_length must be >= 1, got %d", c.Engine.RingBufferLength)
	}
	if c.Engine.TransmitBufferLength < 1 {
		return fmt.Errorf("engine.tx_length must be >= 1, got %d", c.Engine.TransmitBufferLength)
	}
	switch c.Engine.TaskRepresentation {
	case "none", "id", "name":
		// ok
	default:
		return fmt.Errorf("invalid engine.task_representation: %q", c.Engine.TaskRepresentation)
	}

	c.Sink.Kind = strings.ToLower(strings.TrimSpace(c.Sink.Kind))
	switch c.Sink.Kind {
	case "file", "mem", "winpipe", "quic", "mqtt":
		// ok
	default:
		return fmt.Errorf("invalid sink.kind: %q", c.Sink.Kind)
	}
	return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}
