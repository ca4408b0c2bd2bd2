package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/yaml.v3"

	"github.com/seantiz/simcbot/internal/params"
	"github.com/seantiz/simcbot/internal/profile"
)

const (
	defaultListenAddr      = ":8080"
	defaultProfileDir      = "profiles"
	defaultReportDir       = "reports"
	defaultDBPath          = ":memory:"
	defaultAddonPath       = "files/simulationcraft.zip"
	defaultOutboxDir       = "outbox"
	defaultJobTimeout      = 300 * time.Second
	defaultShutdownTimeout = 30 * time.Second
	defaultAMQPExchange    = "simcbot"
	defaultAMQPRoutingKey  = "simcbot.delivery"

	envConfigFile      = "SIMCBOT_CONFIG"
	envListenAddr      = "SIMCBOT_LISTEN_ADDR"
	envSimcPath        = "SIMCBOT_SIMC_PATH"
	envProfileDir      = "SIMCBOT_PROFILE_DIR"
	envReportDir       = "SIMCBOT_REPORT_DIR"
	envJobTimeout      = "SIMCBOT_JOB_TIMEOUT"
	envShutdownTimeout = "SIMCBOT_SHUTDOWN_TIMEOUT"
	envKeepFiles       = "SIMCBOT_KEEP_FILES"
	envDBPath          = "SIMCBOT_DB_PATH"
	envLogLevel        = "SIMCBOT_LOG_LEVEL"
	envLogFormat       = "SIMCBOT_LOG_FORMAT"
	envOwnerID         = "SIMCBOT_OWNER_ID"
	envSendAsDM        = "SIMCBOT_SEND_AS_DM"
	envAddonPath       = "SIMCBOT_ADDON_PATH"
	envAMQPURL         = "SIMCBOT_AMQP_URL"
	envAMQPExchange    = "SIMCBOT_AMQP_EXCHANGE"
	envAMQPRoutingKey  = "SIMCBOT_AMQP_ROUTING_KEY"
	envOutboxDir       = "SIMCBOT_OUTBOX_DIR"
	envIterations      = "SIMCBOT_ITERATIONS"
	envThreads         = "SIMCBOT_THREADS"
	envMaxThreads      = "SIMCBOT_MAX_THREADS"
)

// Log formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config holds application configuration. Defaults are overlaid by the YAML
// file named in SIMCBOT_CONFIG, then by individual environment variables.
type Config struct {
	ListenAddr      string        `yaml:"listen_addr"`
	SimcPath        string        `yaml:"simc_path"`
	ProfileDir      string        `yaml:"profile_dir"`
	ReportDir       string        `yaml:"report_dir"`
	JobTimeout      time.Duration `yaml:"job_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	KeepFiles       bool          `yaml:"keep_files"`
	DBPath          string        `yaml:"db_path"`
	LogLevel        slog.Level    `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	OwnerID         string        `yaml:"owner_id"`
	SendAsDM        bool          `yaml:"send_as_dm"`
	AddonPath       string        `yaml:"addon_path"`
	OutboxDir       string        `yaml:"outbox_dir"`
	AMQP            AMQPConfig    `yaml:"amqp"`
	Params          ParamsConfig  `yaml:"params"`
}

// AMQPConfig selects the AMQP delivery transport. An empty URL means
// deliveries go to the outbox directory instead.
type AMQPConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
}

// Bound is an integer simulation setting with its allowed range.
type Bound struct {
	Default int `yaml:"default"`
	Min     int `yaml:"min"`
	Max     int `yaml:"max"`
}

// ParamsConfig holds the adjustable simulation settings.
type ParamsConfig struct {
	Threads    Bound `yaml:"threads"`
	Iterations Bound `yaml:"iterations"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:      defaultListenAddr,
		ProfileDir:      defaultProfileDir,
		ReportDir:       defaultReportDir,
		JobTimeout:      defaultJobTimeout,
		ShutdownTimeout: defaultShutdownTimeout,
		DBPath:          defaultDBPath,
		LogLevel:        slog.LevelInfo,
		LogFormat:       FormatJSON,
		AddonPath:       defaultAddonPath,
		OutboxDir:       defaultOutboxDir,
		AMQP: AMQPConfig{
			Exchange:   defaultAMQPExchange,
			RoutingKey: defaultAMQPRoutingKey,
		},
		Params: ParamsConfig{
			Threads:    Bound{Default: 1, Min: 1, Max: 4},
			Iterations: Bound{Default: 5000, Min: 500, Max: 20000},
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file and the
// environment. It does not validate; call Validate before use.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(envConfigFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	str(envListenAddr, &cfg.ListenAddr)
	str(envSimcPath, &cfg.SimcPath)
	str(envProfileDir, &cfg.ProfileDir)
	str(envReportDir, &cfg.ReportDir)
	str(envDBPath, &cfg.DBPath)
	str(envLogFormat, &cfg.LogFormat)
	str(envOwnerID, &cfg.OwnerID)
	str(envAddonPath, &cfg.AddonPath)
	str(envOutboxDir, &cfg.OutboxDir)
	str(envAMQPURL, &cfg.AMQP.URL)
	str(envAMQPExchange, &cfg.AMQP.Exchange)
	str(envAMQPRoutingKey, &cfg.AMQP.RoutingKey)

	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}

	var errs []error
	errs = append(errs,
		envDuration(envJobTimeout, &cfg.JobTimeout),
		envDuration(envShutdownTimeout, &cfg.ShutdownTimeout),
		envBool(envKeepFiles, &cfg.KeepFiles),
		envBool(envSendAsDM, &cfg.SendAsDM),
		envInt(envIterations, &cfg.Params.Iterations.Default),
		envInt(envThreads, &cfg.Params.Threads.Default),
		envInt(envMaxThreads, &cfg.Params.Threads.Max),
	)

	return cfg, errors.Join(errs...)
}

func envDuration(name string, dst *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Bare integers are seconds.
		n, nerr := strconv.Atoi(v)
		if nerr != nil {
			return fmt.Errorf("%s: invalid duration %q", name, v)
		}
		d = time.Duration(n) * time.Second
	}
	*dst = d
	return nil
}

func envBool(name string, dst *bool) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: invalid boolean %q", name, v)
	}
	*dst = b
	return nil
}

func envInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", name, v)
	}
	*dst = n
	return nil
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var errs []error

	if c.SimcPath == "" {
		errs = append(errs, fmt.Errorf("simc path is required (%s)", envSimcPath))
	} else if _, err := os.Stat(c.SimcPath); err != nil {
		errs = append(errs, fmt.Errorf("simc path: %w", err))
	}
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.ProfileDir == "" {
		errs = append(errs, errors.New("profile dir is required"))
	}
	if c.ReportDir == "" {
		errs = append(errs, errors.New("report dir is required"))
	}
	if c.JobTimeout <= 0 {
		errs = append(errs, fmt.Errorf("job timeout must be positive, got %s", c.JobTimeout))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout))
	}
	if c.LogFormat != FormatJSON && c.LogFormat != FormatConsole {
		errs = append(errs, fmt.Errorf("log format must be %q or %q, got %q", FormatJSON, FormatConsole, c.LogFormat))
	}
	if c.AMQP.URL != "" && c.AMQP.Exchange == "" {
		errs = append(errs, errors.New("amqp exchange is required when an amqp url is set"))
	}
	if c.AMQP.URL == "" && c.OutboxDir == "" {
		errs = append(errs, errors.New("either an amqp url or an outbox dir is required"))
	}

	errs = append(errs,
		c.Params.Threads.validate("threads"),
		c.Params.Iterations.validate("iterations"),
	)

	return errors.Join(errs...)
}

func (b Bound) validate(name string) error {
	if b.Min < 1 {
		return fmt.Errorf("%s: minimum must be at least 1, got %d", name, b.Min)
	}
	if b.Min > b.Max {
		return fmt.Errorf("%s: minimum %d is above maximum %d", name, b.Min, b.Max)
	}
	if b.Default < b.Min || b.Default > b.Max {
		return fmt.Errorf("%s: default %d is outside [%d, %d]", name, b.Default, b.Min, b.Max)
	}
	return nil
}

// Parameters returns the registry definitions in display order. The output
// parameter's value is a placeholder; each job overrides it with its own
// report path.
func (c Config) Parameters() []params.Parameter {
	return []params.Parameter{
		{Name: profile.OutputParam, Value: params.String("out.html")},
		params.Bounded(profile.ThreadsParam, c.Params.Threads.Default, c.Params.Threads.Min, c.Params.Threads.Max),
		params.Bounded(profile.IterationsParam, c.Params.Iterations.Default, c.Params.Iterations.Min, c.Params.Iterations.Max),
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured logger writing to w. The console format uses
// a colored human-readable handler; anything else logs JSON.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	if format == FormatConsole {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
