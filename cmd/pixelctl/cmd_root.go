package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/compute-blade-community/pixelwire/internal/api"
	"github.com/compute-blade-community/pixelwire/pkg/ctlconfig"
	"github.com/compute-blade-community/pixelwire/pkg/log"
	"github.com/sierrasoftworks/humane-errors-go"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

const defaultServer = "unix:///tmp/pixelwire.sock"

var (
	configPath string
	serverAddr string
	stripName  string
	timeout    time.Duration
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", defaultConfigPath(), "path to the pixelctl configuration file")
	flags.StringVarP(&serverAddr, "server", "s", "", "address of the pixelwired gRPC server (overrides the configured strip)")
	flags.StringVar(&stripName, "strip", "", "named strip from the configuration file (default: current-strip)")
	flags.DurationVar(&timeout, "timeout", 10*time.Second, "timeout for gRPC requests")

	rootCmd.AddCommand(cmdShow, cmdFill, cmdSet, cmdClear, cmdForceClear, cmdStats, cmdConfig)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "pixelctl.yaml"
	}
	return filepath.Join(home, ".config", "pixelctl", "config.yaml")
}

var rootCmd = &cobra.Command{
	Use:          "pixelctl",
	Short:        "pixelctl talks to pixelwired and sets, shows and clears the pixels of an LED strip",
	Version:      fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		origCtx := cmd.Context()

		ctx, cancelCtx := context.WithTimeout(origCtx, timeout)

		// setup signal handler channels
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
		go func() {
			select {
			// Wait for context cancel
			case <-ctx.Done():

			// Wait for signal
			case sig := <-sigs:
				log.FromContext(ctx).Debug("Received signal", zap.String("signal", sig.String()))
				cancelCtx()
			}
		}()

		strip, err := resolveStrip()
		if err != nil {
			return err
		}

		creds, err := transportCredentials(strip)
		if err != nil {
			return err
		}

		conn, dialErr := grpc.NewClient(strip.Server,
			grpc.WithTransportCredentials(creds),
			grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		)
		if dialErr != nil {
			return humane.Wrap(dialErr, "failed to dial grpc server",
				"ensure the gRPC server you are trying to connect to is running and the address is correct",
			)
		}

		ctx = stripIntoContext(ctx, strip)
		cmd.SetContext(clientIntoContext(ctx, api.NewStripServiceClient(conn)))
		return nil
	},
}

// transportCredentials uses mutual TLS when the strip carries certificates.
func transportCredentials(strip ctlconfig.Strip) (credentials.TransportCredentials, humane.Error) {
	if !strip.Authenticated() {
		return insecure.NewCredentials(), nil
	}

	host, _, err := net.SplitHostPort(strip.Server)
	if err != nil {
		return nil, humane.Wrap(err, "authenticated strips need a host:port server address",
			"check the server of the strip in "+configPath,
		)
	}

	tlsConfig, herr := strip.TLSConfig(host)
	if herr != nil {
		return nil, herr
	}
	return credentials.NewTLS(tlsConfig), nil
}

// resolveStrip picks the server from --server, then the named or current strip, then the default socket.
func resolveStrip() (ctlconfig.Strip, humane.Error) {
	strip := ctlconfig.Strip{Server: defaultServer}

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if stripName != "" {
			return strip, humane.New(fmt.Sprintf("no configuration file at %s to look up strip %q", configPath, stripName),
				"add the strip with 'pixelctl config set-strip'",
			)
		}
	case err != nil:
		return strip, humane.Wrap(err, "failed to read pixelctl configuration", "check the permissions of "+configPath)
	default:
		config, herr := ctlconfig.Unmarshal(data)
		if herr != nil {
			return strip, herr
		}
		if stripName != "" {
			config.CurrentStrip = stripName
		}
		if config.CurrentStrip != "" {
			current, herr := ctlconfig.FindCurrentStrip(config)
			if herr != nil {
				return strip, herr
			}
			strip = *current
		}
	}

	if serverAddr != "" {
		strip.Server = serverAddr
	}
	if strip.Brightness == 0 {
		strip.Brightness = 255
	}
	return strip, nil
}
