package command

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/enex/errcapture/capture"
)

type configView struct {
	Environment       string `yaml:"environment"`
	DSN               string `yaml:"dsn"`
	RemoteEnabled     bool   `yaml:"remote_enabled"`
	AttachStacktrace  bool   `yaml:"attach_stacktrace"`
	SendDefaultPII    bool   `yaml:"send_default_pii"`
	HandledErrorTypes uint32 `yaml:"handled_errors_types"`
	HandledErrorNames string `yaml:"handled_errors_names"`
	HandledConfigured bool   `yaml:"handled_errors_configured"`
	Release           string `yaml:"release"`
	FlushTimeout      string `yaml:"flush_timeout"`
	LogFile           string `yaml:"log_file"`
	LogSize           int64  `yaml:"log_size"`
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration",
		Long: fmt.Sprintf(`Show the configuration after flags, environment, .env and config file are merged.

Config file: %s

The DSN key is masked.`, defaultConfigFile()),
		RunE: func(c *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(c.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(newConfigView(current.config)); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	return cmd
}

func newConfigView(cfg capture.Config) configView {
	level := cfg.ErrorLevel()
	return configView{
		Environment:       cfg.Environment,
		DSN:               maskDSN(cfg.DSN),
		RemoteEnabled:     cfg.RemoteEnabled(),
		AttachStacktrace:  cfg.AttachStacktrace,
		SendDefaultPII:    cfg.SendDefaultPII,
		HandledErrorTypes: uint32(level),
		HandledErrorNames: level.String(),
		HandledConfigured: cfg.HandledErrorTypes != nil,
		Release:           cfg.Release,
		FlushTimeout:      cfg.FlushTimeout.String(),
		LogFile:           cfg.LogFile,
		LogSize:           cfg.LogSize,
	}
}

func maskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	u.User = url.User("***")
	return u.String()
}
