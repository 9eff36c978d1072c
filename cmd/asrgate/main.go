package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbukum/asrgate/version"
)

func main() {
	root := &cobra.Command{
		Use:           "asrgate",
		Short:         "Authenticated speech-to-text gateway",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: discovered config.yml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", ".env file (default: discovered .env)")

	serve := newServeCmd()
	root.RunE = serve.RunE
	root.AddCommand(serve, newKeysCmd(), newConfigCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
