package command

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/enex/errcapture/capture"
	uctx "github.com/enex/errcapture/internal/context"
	"github.com/enex/errcapture/internal/logging"
)

const appName = "errcapture"

var (
	flagConfig  string
	flagEnvFile string
	flagSession capture.StaticSession
)

// appState is what every subcommand works with once the root has loaded
// configuration.
type appState struct {
	config capture.Config
	client *capture.SentryClient
}

var current appState

func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Forward exception log entries to Sentry",
		Long: `Forward exception log entries to Sentry while keeping the local exception log.

Configuration priority (highest to lowest):
  1. Command-line flags
  2. Environment variables (APP_ENV, SENTRY_DSN, SENTRY_ATTACHSTACKTRACE,
     SENTRY_SEND_DEFAULT_PII, otherwise ERRCAPTURE_ prefix)
  3. .env file
  4. Config file
  5. Default values`,
		Example: `  # Send a test error to the configured DSN
  $ APP_ENV=production SENTRY_DSN=https://key@o1.ingest.sentry.io/1 errcapture report "smoke test"

  # Forward JSON lines from a framework log pipe
  $ tail -F exceptions.jsonl | errcapture pipe --metric-addr 127.0.0.1:9100`,
		SilenceUsage:      true,
		PersistentPreRunE: rootPreRunE,
		PersistentPostRunE: func(c *cobra.Command, args []string) error {
			if logger := uctx.Logger(c.Context()); logger != nil {
				return logger.Close()
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&flagConfig, "config", defaultConfigFile(), "config file")
	flags.StringVar(&flagEnvFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	flags.String(capture.KeyEnvironment, "", "deployment environment; \"local\" disables remote reporting")
	flags.String(capture.KeyDSN, "", "Sentry DSN")
	flags.Bool(capture.KeyAttachStacktrace, true, "attach stack traces to events")
	flags.Bool(capture.KeySendDefaultPII, true, "send personally identifying data")
	flags.String("handled-errors-types", "", `handled error kinds, as a number or names joined with "|"`)
	flags.String(capture.KeyRelease, "", "release reported with events")
	flags.Duration(capture.KeyFlushTimeout, capture.DefaultFlushTimeout, "how long to wait for queued events on exit")
	flags.String(capture.KeyLogFile, "", "local exception log file")
	flags.Int64(capture.KeyLogSize, 0, "rotate the exception log beyond this many bytes")
	flags.Bool(capture.KeyDebug, false, "debug logging")

	flags.StringVar(&flagSession.ID, "user-id", "", "id of the authenticated user to attach to events")
	flags.StringVar(&flagSession.UserEmail, "user-email", "", "email of the authenticated user")
	flags.StringVar(&flagSession.UserLogin, "user-login", "", "login of the authenticated user")

	cmd.AddCommand(reportCmd())
	cmd.AddCommand(pipeCmd())
	cmd.AddCommand(configCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

func rootPreRunE(c *cobra.Command, args []string) error {
	if err := capture.LoadDotEnv(flagEnvFile); err != nil {
		return err
	}

	v := viper.New()
	if err := bindFlags(c, v); err != nil {
		return err
	}
	if err := capture.BindEnv(v); err != nil {
		return err
	}
	v.SetDefault(capture.KeyLogFile, defaultLogFile())

	if err := capture.ReadConfigFile(v, flagConfig); err != nil {
		return err
	}

	cfg, err := capture.LoadConfig(v)
	if err != nil {
		return err
	}

	client := capture.NewSentryClient()
	ctx := sentry.SetHubOnContext(c.Context(), client.Hub())

	opts := []logging.Option{logging.Console(), logging.Sentry(ctx)}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		opts = append(opts, logging.Text())
	}
	if cfg.Debug {
		opts = append(opts, logging.Debug())
	}
	logger, err := logging.New(opts...)
	if err != nil {
		return err
	}

	current = appState{config: cfg, client: client}
	c.SetContext(uctx.WithLogger(ctx, logger.With("app", appName)))
	return nil
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var err error
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		name := flag.Name
		switch name {
		case "config", "env-file", "help", "user-id", "user-email", "user-login":
			return
		case "handled-errors-types":
			name = capture.KeyHandledErrorTypes
		}
		if bindErr := v.BindPFlag(name, flag); bindErr != nil && err == nil {
			err = fmt.Errorf("error binding flag '%s': %w", flag.Name, bindErr)
		}
	})
	return err
}

func defaultConfigFile() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

func defaultLogFile() string {
	return filepath.Join(xdg.StateHome, appName, "exceptions.log")
}
