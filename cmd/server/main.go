package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "tracectx",
	Short: "tracectx - trace context propagation service",
	Long:  "tracectx serves HTTP, gRPC and queue triggers that continue distributed traces across process boundaries.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tracectx v%s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd, serveCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
