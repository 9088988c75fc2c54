package capture

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/enex/errcapture/exclog"
	"github.com/enex/errcapture/internal/version"
)

// LocalEnvironment disables remote reporting.
const LocalEnvironment = "local"

const (
	DefaultFlushTimeout = 2 * time.Second
)

// Config keys. Nested keys use the config file layout.
const (
	KeyEnvironment       = "environment"
	KeyDSN               = "dsn"
	KeyAttachStacktrace  = "attach-stacktrace"
	KeySendDefaultPII    = "send-default-pii"
	KeyHandledErrorTypes = "exception_handling.handled_errors_types"
	KeyRelease           = "release"
	KeyDebug             = "debug"
	KeyFlushTimeout      = "flush-timeout"
	KeyLogFile           = "log-file"
	KeyLogSize           = "log-size"
)

// envBindings maps keys to the variables a host deployment already sets.
var envBindings = map[string][]string{
	KeyEnvironment:       {"APP_ENV"},
	KeyDSN:               {"SENTRY_DSN"},
	KeyAttachStacktrace:  {"SENTRY_ATTACHSTACKTRACE"},
	KeySendDefaultPII:    {"SENTRY_SEND_DEFAULT_PII"},
	KeyHandledErrorTypes: {"ERRCAPTURE_HANDLED_ERRORS_TYPES"},
}

// Config is read once at startup and not changed afterwards.
type Config struct {
	Environment      string
	DSN              string
	AttachStacktrace bool
	SendDefaultPII   bool
	// HandledErrorTypes is nil when not configured.
	HandledErrorTypes *Mask
	Release           string
	Debug             bool
	FlushTimeout      time.Duration
	LogFile           string
	LogSize           int64
}

// DefaultConfig mirrors the defaults LoadConfig applies.
func DefaultConfig() Config {
	return Config{
		Environment:      LocalEnvironment,
		AttachStacktrace: true,
		SendDefaultPII:   true,
		Release:          version.Release(),
		FlushTimeout:     DefaultFlushTimeout,
		LogSize:          exclog.DefaultLogSize,
	}
}

// ErrorLevel is the configured handled error types, or DefaultMask.
func (c Config) ErrorLevel() Mask {
	if c.HandledErrorTypes != nil {
		return *c.HandledErrorTypes
	}
	return DefaultMask
}

// RemoteEnabled reports whether the remote client should be initialized.
func (c Config) RemoteEnabled() bool {
	return c.DSN != "" && c.Environment != "" && c.Environment != LocalEnvironment
}

// LogOptions are the base log options derived from the config.
func (c Config) LogOptions() exclog.Options {
	return exclog.Options{File: c.LogFile, LogSize: c.LogSize}
}

// BindEnv registers defaults and environment variables on v. Variables not
// listed in envBindings use the ERRCAPTURE_ prefix.
func BindEnv(v *viper.Viper) error {
	d := DefaultConfig()
	v.SetDefault(KeyEnvironment, d.Environment)
	v.SetDefault(KeyAttachStacktrace, d.AttachStacktrace)
	v.SetDefault(KeySendDefaultPII, d.SendDefaultPII)
	v.SetDefault(KeyRelease, d.Release)
	v.SetDefault(KeyFlushTimeout, d.FlushTimeout)
	v.SetDefault(KeyLogSize, d.LogSize)

	v.SetEnvPrefix("ERRCAPTURE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("error binding env for '%s': %w", key, err)
		}
	}

	return nil
}

// LoadConfig reads a Config out of v. BindEnv should have been called.
func LoadConfig(v *viper.Viper) (Config, error) {
	c := Config{
		Environment:      v.GetString(KeyEnvironment),
		DSN:              v.GetString(KeyDSN),
		AttachStacktrace: v.GetBool(KeyAttachStacktrace),
		SendDefaultPII:   v.GetBool(KeySendDefaultPII),
		Release:          v.GetString(KeyRelease),
		Debug:            v.GetBool(KeyDebug),
		FlushTimeout:     v.GetDuration(KeyFlushTimeout),
		LogFile:          v.GetString(KeyLogFile),
		LogSize:          v.GetInt64(KeyLogSize),
	}

	if raw := strings.TrimSpace(v.GetString(KeyHandledErrorTypes)); raw != "" {
		m, err := ParseMask(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyHandledErrorTypes, err)
		}
		c.HandledErrorTypes = &m
	}

	if strings.Contains(c.Release, "@") {
		if _, _, err := version.ParseRelease(c.Release); err != nil {
			return Config{}, err
		}
	}

	if c.FlushTimeout <= 0 {
		c.FlushTimeout = DefaultFlushTimeout
	}

	return c, nil
}

// LoadDotEnv loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error loading env file %s: %w", path, err)
	}
	return nil
}

// ReadConfigFile points v at path when the file exists.
func ReadConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error loading config file %s: %w", path, err)
		}
	}

	return nil
}
