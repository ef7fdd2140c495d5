package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/compute-blade-community/pixelwire/internal/daemon"
	"github.com/compute-blade-community/pixelwire/pkg/log"
	"github.com/sierrasoftworks/humane-errors-go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:          "pixelwired",
	Short:        "pixelwired drives a WS281x LED chain and serves it over gRPC",
	Version:      fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date),
	SilenceUsage: true,
	RunE:         runDaemon,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to the configuration file (default: /etc/pixelwire/config.yaml)")

	flags := rootCmd.Flags()
	flags.String("log-mode", "production", "log encoding, 'production' or 'development'")
	flags.String("backend", "software", "transmit backend: software, hardware or sim")
	flags.Int("pixels", 60, "number of pixels on the chain")
	flags.String("grpc", "/tmp/pixelwire.sock", "gRPC listen address")
}

var flagKeys = map[string]string{
	"log-mode": "log.mode",
	"backend":  "strip.backend",
	"pixels":   "strip.pixels",
	"grpc":     "listen.grpc",
}

// bindFlags maps command line flags onto configuration keys. Flags override the file only when set.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var errs []error
	for name, key := range flagKeys {
		if flag := flags.Lookup(name); flag != nil {
			errs = append(errs, v.BindPFlag(key, flag))
		}
	}
	return errors.Join(errs...)
}

func loadConfig(flags *pflag.FlagSet) (daemon.Config, humane.Error) {
	v := viper.New()
	daemon.SetDefaults(v)

	v.SetEnvPrefix("PIXELWIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindFlags(v, flags); err != nil {
		return daemon.Config{}, humane.Wrap(err, "failed to bind command line flags")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/pixelwire")
		v.AddConfigPath("$HOME/.config/pixelwire")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return daemon.Config{}, humane.Wrap(err, "failed to read configuration file",
				"check that the file is valid YAML",
			)
		}
	}

	return daemon.Load(v)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, herr := loadConfig(cmd.Flags())
	if herr != nil {
		return fmt.Errorf("%s (%s)", herr.Error(), strings.Join(herr.Advice(), "; "))
	}

	logger, err := log.New(cfg.Log.Mode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, cancelCtx := context.WithCancel(log.IntoContext(cmd.Context(), logger))
	defer cancelCtx()

	// setup signal handlers for SIGINT and SIGTERM
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-ctx.Done():
		case sig := <-sigs:
			logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
			cancelCtx()
		}
	}()

	logger.Info("Starting pixelwired",
		zap.String("version", Version),
		zap.String("commit", Commit),
		zap.String("date", Date),
	)

	d, herr := daemon.New(ctx, cfg)
	if herr != nil {
		logger.Error("Failed to initialize daemon",
			zap.Error(herr),
			zap.Strings("advice", herr.Advice()),
		)
		return herr
	}

	runErr := d.Run(ctx)
	if runErr != nil {
		logger.Error("Daemon stopped with error", zap.Error(runErr))
	}

	stopErr := d.GracefulStop(context.WithoutCancel(ctx))
	if stopErr != nil {
		logger.Error("Failed to stop daemon cleanly", zap.Error(stopErr))
	}

	return errors.Join(runErr, stopErr)
}
