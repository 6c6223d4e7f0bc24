package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/perfmgr/boostd/internal/config"
	"github.com/perfmgr/boostd/internal/daemon"
)

var configPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the boostd daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		zapCfg := zap.NewProductionConfig()
		if cfg.Logging.Development {
			zapCfg = zap.NewDevelopmentConfig()
		}
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-cfg.Logging.Verbosity))
		zapLog, err := zapCfg.Build()
		if err != nil {
			return err
		}
		defer zapLog.Sync()
		logger := zapr.NewLogger(zapLog)

		d, err := daemon.New(cfg, logger)
		if err != nil {
			logger.Error(err, "daemon startup failed")
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return d.Start(ctx)
	},
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to TOML config file")
	rootCmd.AddCommand(runCmd)
}
