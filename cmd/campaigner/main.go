package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	var cfgPath string
	root := &cobra.Command{
		Use:           "campaigner",
		Short:         "Generate, regenerate and plan marketing campaigns",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config/config.json", "config file")

	root.AddCommand(
		serveCMD(&cfgPath),
		migrateCMD(&cfgPath),
		generateCMD(&cfgPath),
		regenerateCMD(&cfgPath),
		mediaPlanCMD(&cfgPath),
		exportCMD(&cfgPath),
		eventsCMD(&cfgPath),
	)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
