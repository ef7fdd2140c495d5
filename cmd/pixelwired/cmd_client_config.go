package main

import (
	"fmt"
	"os"

	"github.com/compute-blade-community/pixelwire/internal/daemon"
	"github.com/compute-blade-community/pixelwire/pkg/ctlconfig"
	"github.com/spf13/cobra"
)

var (
	clientServer string
	clientOutput string
)

func init() {
	cmdClientConfig.Flags().StringVarP(&clientServer, "server", "s", "", "address pixelctl should dial (default: listen.grpc)")
	cmdClientConfig.Flags().StringVarP(&clientOutput, "output", "o", "", "write the pixelctl configuration to a file instead of stdout")

	rootCmd.AddCommand(cmdClientConfig)
}

var cmdClientConfig = &cobra.Command{
	Use:   "client-config NAME",
	Short: "Print a pixelctl configuration for this daemon",
	Long: "client-config prints a pixelctl configuration with one strip pointing at this daemon. " +
		"When listen.grpc_authenticated is set it issues a client certificate signed by the daemon's CA.",
	Example: "pixelwired client-config laptop --server 10.0.0.12:9665 -o ~/.config/pixelctl/config.yaml",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, herr := loadConfig(cmd.Flags())
		if herr != nil {
			return herr
		}

		server := clientServer
		if server == "" {
			server = cfg.Listen.Grpc
			if cfg.Listen.GrpcListenMode == "unix" {
				server = "unix://" + server
			}
		}

		strip := ctlconfig.Strip{Server: server, Brightness: cfg.Strip.Brightness}
		if cfg.Listen.GrpcAuthenticated {
			caPEM, certPEM, keyPEM, herr := daemon.IssueClientCertificate(cmd.Context(), cfg.Listen.CertDir, args[0])
			if herr != nil {
				return herr
			}
			strip.SetCertificates(caPEM, certPEM, keyPEM)
		}

		config := ctlconfig.PixelctlConfig{}
		config.SetStrip(cfg.Strip.Name, strip)

		data, herr := config.Marshal()
		if herr != nil {
			return herr
		}

		if clientOutput == "" {
			_, err := fmt.Fprint(cmd.OutOrStdout(), string(data))
			return err
		}
		return os.WriteFile(clientOutput, data, 0o600)
	},
}
