// Package commands implements the cdpgo command line interface, a thin
// consumer of the cdp package for poking at a browser's debugging port.
package commands

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wirebird/cdpgo/cdp"
	"github.com/wirebird/cdpgo/log"
)

var (
	cfgPath string
	cfg     config
	logger  *log.Logger
	client  *cdp.Client

	flagHost    string
	flagPort    int
	flagVerbose bool
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "cdpgo",
		Short:        "Talk to a browser over the Chrome DevTools Protocol",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = defaultConfig()
			if cfgPath != "" {
				var err error
				if cfg, err = loadConfig(cfgPath, cfg); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("host") {
				cfg.Host = flagHost
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = flagPort
			}
			if cmd.Flags().Changed("verbose") {
				cfg.Verbose = flagVerbose
			}

			l := logrus.New()
			if cfg.Verbose {
				l.SetLevel(logrus.DebugLevel)
			}
			logger = log.New(l, false, nil)
			client = cdp.NewWithHostPort(logger, cfg.Host, cfg.Port)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a TOML config file")
	root.PersistentFlags().StringVar(&flagHost, "host", cdp.DefaultHost, "browser debugging host")
	root.PersistentFlags().IntVar(&flagPort, "port", cdp.DefaultPort, "browser debugging port")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	root.AddCommand(targetsCmd(), sendCmd(), listenCmd())
	return root
}
