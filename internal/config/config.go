package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DialectMSSQL    = "mssql"
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Config is read from the environment once, in the entry points.
type Config struct {
	ParamPrefix string `env:"PARAM_PREFIX,required"`
	// ParamFile switches parameter lookups from SSM to a local YAML file.
	ParamFile string `env:"PARAM_FILE"`
	// ParamCacheTTL bounds how long SSM values are reused between requests.
	ParamCacheTTL time.Duration `env:"PARAM_CACHE_TTL" envDefault:"5m"`

	StateTable       string `env:"STATE_TABLE"`
	DynamoDBEndpoint string `env:"DYNAMODB_ENDPOINT"`

	DB DBConfig

	MaxContextItems    int    `env:"MAX_CONTEXT_ITEMS" envDefault:"20"`
	MaxQuestionLength  int    `env:"MAX_QUESTION_LENGTH" envDefault:"500"`
	MaxAgentIterations int    `env:"MAX_AGENT_ITERATIONS" envDefault:"15"`
	TopK               int    `env:"TOP_K" envDefault:"5"`
	HTTPAddr           string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
	OpenAIBaseURL      string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
}

// DBConfig describes the database the agent answers questions about.
type DBConfig struct {
	Dialect string `env:"DB_DIALECT" envDefault:"mssql"`
	DSN     string `env:"DB_DSN"`

	// Azure SQL credentials, used when DSN is empty.
	Server   string `env:"AZSERVER"`
	Database string `env:"AZDATABASE"`
	User     string `env:"AZSQLUSER"`
	Password string `env:"AZSQLPASS"`

	Schema        string   `env:"DB_SCHEMA" envDefault:"src"`
	IncludeTables []string `env:"DB_INCLUDE_TABLES" envSeparator:"," envDefault:"vw_Maximo_Asset,vw_Maximo_WorkOrders,vw_Maximo_Locations"`
	SampleRows    int      `env:"DB_SAMPLE_ROWS" envDefault:"3"`
	MaxOpenConns  int      `env:"DB_MAX_OPEN_CONNS" envDefault:"5"`
}

// Load parses the process environment and validates the result.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that env tags cannot express.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ParamPrefix) == "" {
		return errors.New("config: PARAM_PREFIX must not be empty")
	}
	if c.ParamCacheTTL < 0 {
		return errors.New("config: PARAM_CACHE_TTL must not be negative")
	}
	switch c.DB.Dialect {
	case DialectMSSQL:
		if c.DB.DSN == "" && (c.DB.Server == "" || c.DB.Database == "" || c.DB.User == "") {
			return errors.New("config: mssql requires DB_DSN or AZSERVER, AZDATABASE and AZSQLUSER")
		}
	case DialectPostgres, DialectSQLite:
		if c.DB.DSN == "" {
			return fmt.Errorf("config: %s requires DB_DSN", c.DB.Dialect)
		}
	default:
		return fmt.Errorf("config: unsupported DB_DIALECT %q", c.DB.Dialect)
	}
	return nil
}

// ConnString returns the driver connection string for the configured database.
func (d DBConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Server,
		RawQuery: url.Values{"database": {d.Database}}.Encode(),
	}
	return u.String()
}

// Tables returns the trimmed, non-empty include list.
func (d DBConfig) Tables() []string {
	out := make([]string, 0, len(d.IncludeTables))
	for _, t := range d.IncludeTables {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
