package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"moneyflow/internal/cli"
	"moneyflow/internal/config"
	"moneyflow/internal/dashboard"
	"moneyflow/internal/limits"
	"moneyflow/internal/report"
	"moneyflow/internal/seed"
)

var (
	reportSeedFile string
	reportLimits   []string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the dashboard in the terminal",
	Long: `Print balances, totals, the category breakdown and limit progress.

Limits can be overridden for a what-if view; categories that go over their
limit because of an override are listed as alerts.

Examples:
  moneyflow report
  moneyflow report --seed data/seed.yaml
  moneyflow report --limit Переводы=4000 --limit "Услуги=1 000"`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportSeedFile, "seed", "", "Seed file (default: SEED_FILE or built-in data)")
	reportCmd.Flags().StringArrayVar(&reportLimits, "limit", nil, "Override a limit, as category=amount (repeatable)")
}

func runReport(cmd *cobra.Command, _ []string) error {
	cli.LoadEnvFile()
	path := reportSeedFile
	if path == "" {
		path = config.Load().SeedFile
	}
	data, err := seed.FromConfig(path)
	if err != nil {
		return fmt.Errorf("load seed data: %w", err)
	}

	state, err := dashboard.New(data)
	if err != nil {
		return err
	}

	var fired []string
	for _, raw := range reportLimits {
		category, amount, ok := strings.Cut(raw, "=")
		if !ok {
			return fmt.Errorf("invalid --limit %q: want category=amount", raw)
		}
		m, err := limits.ParseLimit(amount)
		if err != nil {
			return err
		}
		upd, err := state.SetLimit(context.Background(), strings.TrimSpace(category), m)
		if err != nil {
			return err
		}
		for _, e := range upd.Alerts {
			fired = append(fired, fmt.Sprintf("%s: %s из %s", e.Category,
				e.Spent.Format(state.Currency()), e.Limit.Format(state.Currency())))
		}
	}

	out := cmd.OutOrStdout()
	if err := report.Render(out, state.Snapshot()); err != nil {
		return err
	}
	if len(fired) > 0 {
		fmt.Fprintln(out, "\nПревышены лимиты:")
		for _, f := range fired {
			fmt.Fprintln(out, "  "+f)
		}
	}
	return nil
}
