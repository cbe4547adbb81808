// Command craftdeskd runs the CraftDesk ticket and payment service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.4.0"
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "craftdeskd",
	Short: "CraftDesk commission, application and support ticket service",
	Long: `craftdeskd runs the CraftDesk backend: ticket workflows with dynamic
intake questionnaires, freelancer quoting, invoicing against payment
providers, and revenue splitting.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "craftdesk.yaml", "path to the config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("craftdeskd %s\n", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
