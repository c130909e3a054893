// oficinactl 工单工时命令行客户端
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/bitfantasy/oficina/internal/config"
	"github.com/bitfantasy/oficina/internal/shared/apiclient"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd(os.Stdin).Execute(); err != nil {
		os.Exit(1)
	}
}

// cli 命令共享的配置与依赖
type cli struct {
	v        *viper.Viper
	in       io.Reader
	cfg      *config.Config
	logger   *zap.Logger
	logLevel string
}

func newRootCmd(in io.Reader) *cobra.Command {
	c := &cli{v: viper.New(), in: in}

	root := &cobra.Command{
		Use:           "oficinactl",
		Short:         "Drive service-order work sessions from the terminal",
		Version:       fmt.Sprintf("%s (%s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				c.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.String("api-url", "", "backend base URL, e.g. http://localhost:8080/api/v1 (env OFICINA_API_URL)")
	flags.String("token", "", "bearer token (env OFICINA_TOKEN)")
	flags.Duration("poll-interval", 0, "reconciliation poll interval (default 10s)")
	flags.StringVar(&c.logLevel, "log-level", "warn", "log level: debug|info|warn|error")

	c.v.BindPFlag("session.api_url", flags.Lookup("api-url"))
	c.v.BindPFlag("session.token", flags.Lookup("token"))
	c.v.BindPFlag("session.poll_interval", flags.Lookup("poll-interval"))

	root.AddCommand(newSessionCmd(c))
	root.AddCommand(newAppointmentsCmd(c))
	root.AddCommand(newStatusCmd())
	return root
}

func (c *cli) init() error {
	cfg, err := config.LoadWith(c.v)
	if err != nil {
		return err
	}
	c.cfg = cfg

	zapCfg := zap.NewDevelopmentConfig()
	level, err := zap.ParseAtomicLevel(c.logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", c.logLevel, err)
	}
	zapCfg.Level = level
	zapCfg.OutputPaths = []string{"stderr"}
	logger, err := zapCfg.Build()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	c.logger = logger
	return nil
}

func (c *cli) client() *apiclient.Client {
	return apiclient.NewClient(c.cfg.Session.APIURL, c.cfg.Session.Token, c.cfg.Session.Timeout, c.logger)
}
