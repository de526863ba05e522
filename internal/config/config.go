package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/dkeye/Quiz/internal/core"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	LogLevel   string        `mapstructure:"log_level"`
	Port       int           `mapstructure:"port"`
	TCPAddr    string        `mapstructure:"tcp_addr"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	SendBuffer int           `mapstructure:"send_buffer"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Game      GameConfig      `mapstructure:"game"`
}

type RateLimitConfig struct {
	Messages int           `mapstructure:"messages"`
	Interval time.Duration `mapstructure:"interval"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type GameConfig struct {
	MinPlayers           int           `mapstructure:"min_players"`
	MaxPlayers           int           `mapstructure:"max_players"`
	RoundTime            time.Duration `mapstructure:"round_time"`
	IntermissionTimeout  time.Duration `mapstructure:"intermission_timeout"`
	NumberOfAlternatives int           `mapstructure:"number_of_alternatives"`
	Points               []int         `mapstructure:"points"`
}

// MaxAlternatives is bounded by the letters a client can label choices with.
const MaxAlternatives = 26

func (g GameConfig) Rules() core.Rules {
	return core.Rules{
		MinPlayers:          g.MinPlayers,
		MaxPlayers:          g.MaxPlayers,
		RoundTime:           g.RoundTime,
		IntermissionTimeout: g.IntermissionTimeout,
		Alternatives:        g.NumberOfAlternatives,
		Points:              g.Points,
	}
}

// Load reads config/config.<CONFIG_ENV>.yaml, falling back to defaults when
// the file is missing.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)

	v.SetEnvPrefix("QUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", fileName, err)
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Int("min_players", cfg.Game.MinPlayers).
		Int("max_players", cfg.Game.MaxPlayers).
		Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	rules := core.DefaultRules()

	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("port", 8080)
	v.SetDefault("tcp_addr", "")
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("rate_limit.messages", 20)
	v.SetDefault("rate_limit.interval", "1s")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "quiz.games")
	v.SetDefault("game.min_players", rules.MinPlayers)
	v.SetDefault("game.max_players", rules.MaxPlayers)
	v.SetDefault("game.round_time", rules.RoundTime.String())
	v.SetDefault("game.intermission_timeout", rules.IntermissionTimeout.String())
	v.SetDefault("game.number_of_alternatives", rules.Alternatives)
	v.SetDefault("game.points", rules.Points)
}

func (c *Config) Validate() error {
	var errs []error
	g := c.Game
	if g.MinPlayers < 1 {
		errs = append(errs, errors.New("game.min_players must be at least 1"))
	}
	if g.MaxPlayers < g.MinPlayers {
		errs = append(errs, errors.New("game.max_players must not be below game.min_players"))
	}
	if g.RoundTime <= 0 {
		errs = append(errs, errors.New("game.round_time must be positive"))
	}
	if g.IntermissionTimeout <= 0 {
		errs = append(errs, errors.New("game.intermission_timeout must be positive"))
	}
	if g.NumberOfAlternatives < 1 || g.NumberOfAlternatives > MaxAlternatives {
		errs = append(errs, fmt.Errorf("game.number_of_alternatives must be within 1..%d", MaxAlternatives))
	}
	if len(g.Points) == 0 {
		errs = append(errs, errors.New("game.points must not be empty"))
	}
	for i := 1; i < len(g.Points); i++ {
		if g.Points[i] > g.Points[i-1] {
			errs = append(errs, fmt.Errorf("game.points must be descending, %d follows %d", g.Points[i], g.Points[i-1]))
			break
		}
	}
	if c.ReadLimit <= 0 {
		errs = append(errs, errors.New("read_limit must be positive"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("send_buffer must be positive"))
	}
	if c.RateLimit.Messages <= 0 || c.RateLimit.Interval <= 0 {
		errs = append(errs, errors.New("rate_limit.messages and rate_limit.interval must be positive"))
	}
	return errors.Join(errs...)
}
