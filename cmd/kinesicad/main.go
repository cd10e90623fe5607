package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kinesica-health/kinesica/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kinesicad",
		Short: "Kinesica daemon and CLI",
		Long:  "Kinesica daemon for running the assistant API server and managing the document corpus",
	}

	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.IngestCmd())
	rootCmd.AddCommand(admin.PurgeCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
