// Command moneyflow serves the personal finance dashboard and offers a few
// terminal helpers around it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "moneyflow",
	Short: "MoneyFlow personal finance dashboard",
	Long: `MoneyFlow shows account balances, recent transactions and spending
limits per category, and alerts when a category goes over its limit.

Configuration is read from the environment (and a .env file when present).`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
