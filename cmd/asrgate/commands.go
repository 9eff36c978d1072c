package main

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/kbukum/asrgate/app"
	"github.com/kbukum/asrgate/config"
	"github.com/kbukum/asrgate/keystore"
	"github.com/kbukum/asrgate/logger"
	"github.com/kbukum/asrgate/util"
)

var (
	configFile string
	envFile    string
)

func loadConfig() (*app.Config, error) {
	var opts []config.LoaderOption
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	if envFile != "" {
		opts = append(opts, config.WithEnvFile(envFile))
	}
	return app.Load(opts...)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc, err := app.New(cfg)
			if err != nil {
				return err
			}
			return svc.Run(cmd.Context())
		},
	}
}

func newKeysCmd() *cobra.Command {
	keys := &cobra.Command{
		Use:   "keys",
		Short: "Manage the API key file",
	}

	var file string
	keys.PersistentFlags().StringVarP(&file, "file", "f", "", "key file (default: keys.file from config)")
	keyFile := func() (string, error) {
		if file != "" {
			return file, nil
		}
		cfg, err := loadConfig()
		if err != nil {
			return "", err
		}
		cfg.Keys.ApplyDefaults()
		return cfg.Keys.File, nil
	}

	keys.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Generate a key and append it to the key file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := keyFile()
			if err != nil {
				return err
			}
			key, err := keystore.NewKey()
			if err != nil {
				return err
			}
			if err := keystore.New(path, keystore.WithLogger(logger.Nop())).Append(key); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	})

	keys.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List masked keys from the key file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := keyFile()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("key file %s: %w", path, err)
			}
			set, err := keystore.New(path, keystore.WithLogger(logger.Nop())).Load()
			if err != nil {
				return err
			}
			for _, k := range slices.Sorted(maps.Keys(set)) {
				fmt.Fprintln(cmd.OutOrStdout(), util.MaskSecret(k, 4))
			}
			return nil
		},
	})
	return keys
}

func newConfigCmd() *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.ApplyDefaults()
			if err := cfg.Validate(); err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	})
	return cfgCmd
}
