package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/compute-blade-community/pixelwire/pkg/ctlconfig"
	"github.com/spf13/cobra"
)

var configBrightness uint8

func init() {
	cmdConfigSetStrip.Flags().Uint8VarP(&configBrightness, "brightness", "b", 0, "default brightness for show (0 means 255)")

	cmdConfig.AddCommand(cmdConfigSetStrip, cmdConfigUse)
}

var (
	cmdConfig = &cobra.Command{
		Use:   "config",
		Short: "Manage the strips pixelctl knows about",
		// overrides the root hook, no server connection is needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	}

	cmdConfigSetStrip = &cobra.Command{
		Use:     "set-strip NAME",
		Short:   "Add or update a named strip and make it current",
		Example: "pixelctl config set-strip shelf --server 10.0.0.12:9665",
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			config, err := readConfig()
			if err != nil {
				return err
			}

			server := serverAddr
			if server == "" {
				server = defaultServer
			}

			config.SetStrip(args[0], ctlconfig.Strip{Server: server, Brightness: configBrightness})
			return writeConfig(config)
		},
	}

	cmdConfigUse = &cobra.Command{
		Use:     "use NAME",
		Short:   "Make a named strip current",
		Example: "pixelctl config use shelf",
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			config, err := readConfig()
			if err != nil {
				return err
			}

			config.CurrentStrip = args[0]
			if _, herr := ctlconfig.FindCurrentStrip(config); herr != nil {
				return herr
			}
			return writeConfig(config)
		},
	}
)

func readConfig() (ctlconfig.PixelctlConfig, error) {
	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return ctlconfig.PixelctlConfig{}, nil
	}
	if err != nil {
		return ctlconfig.PixelctlConfig{}, fmt.Errorf("failed to read %s: %w", configPath, err)
	}

	config, herr := ctlconfig.Unmarshal(data)
	if herr != nil {
		return config, herr
	}
	return config, nil
}

func writeConfig(config ctlconfig.PixelctlConfig) error {
	data, herr := config.Marshal()
	if herr != nil {
		return herr
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(configPath), err)
	}
	return os.WriteFile(configPath, data, 0o600)
}
