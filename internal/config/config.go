package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/ledger"
)

// EnvPrefix is prepended to every environment override,
// e.g. TIMELOCK_DB_PATH for db.path.
const EnvPrefix = "TIMELOCK"

// Config is the complete CLI configuration.
type Config struct {
	DB      DBConfig      `mapstructure:"db" json:"db"`
	Program ProgramConfig `mapstructure:"program" json:"program"`
	Rent    RentConfig    `mapstructure:"rent" json:"rent"`
	Log     LogConfig     `mapstructure:"log" json:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" json:"metrics"`
}

// DBConfig locates the ledger database.
type DBConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

// ProgramConfig identifies the timelock program.
type ProgramConfig struct {
	ID string `mapstructure:"id" json:"id"`
}

// RentConfig holds the rent-exemption parameters.
type RentConfig struct {
	LamportsPerByteYear uint64 `mapstructure:"lamports_per_byte_year" json:"lamports_per_byte_year"`
	ExemptionThreshold  uint64 `mapstructure:"exemption_threshold" json:"exemption_threshold"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// MetricsConfig controls metrics export. An empty Textfile disables it.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" json:"textfile"`
}

// Default returns the built-in configuration.
func Default() *Config {
	rent := ledger.DefaultRent()
	return &Config{
		DB:      DBConfig{Path: "timelock.db"},
		Program: ProgramConfig{ID: ir.DefaultTimelockProgramID.String()},
		Rent: RentConfig{
			LamportsPerByteYear: rent.LamportsPerByteYear,
			ExemptionThreshold:  rent.ExemptionThreshold,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// SetDefaults registers the defaults with v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("db.path", d.DB.Path)
	v.SetDefault("program.id", d.Program.ID)
	v.SetDefault("rent.lamports_per_byte_year", d.Rent.LamportsPerByteYear)
	v.SetDefault("rent.exemption_threshold", d.Rent.ExemptionThreshold)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
}

// NewViper returns a viper instance with defaults and environment
// overrides registered. If file is non-empty it is read as YAML.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	return v, nil
}

// Load reads v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ProgramID parses the configured program address.
func (c *Config) ProgramID() (ir.Pubkey, error) {
	id, err := ir.ParsePubkey(c.Program.ID)
	if err != nil {
		return ir.Pubkey{}, fmt.Errorf("program.id: %w", err)
	}
	return id, nil
}

// LedgerRent returns the configured rent parameters.
func (c *Config) LedgerRent() ledger.Rent {
	return ledger.Rent{
		LamportsPerByteYear: c.Rent.LamportsPerByteYear,
		ExemptionThreshold:  c.Rent.ExemptionThreshold,
	}
}

// NewLogger builds the configured slog logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Log.Level)}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
