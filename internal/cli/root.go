// Package cli implements heliactl, the operator CLI for the boost ledger.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"heliactyl/config"
	"heliactyl/internal/app"
	"heliactyl/internal/auth"
	"heliactyl/internal/boosts"
	"heliactyl/internal/database"
	"heliactyl/internal/domain"
	"heliactyl/internal/service"
	"heliactyl/pkg/logger"

	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "heliactl",
		Short:         "Operate the Heliactyl boost ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCmd(),
		newSweepCmd(),
		newCatalogCmd(),
		newTokenCmd(),
		newCreditCmd(),
	)
	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openApp() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, logger.New(cfg.LogLevel))
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := database.AutoMigrate(a.DB); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one boost sweep now and print what changed",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			res, err := a.Sweeper.RunOnce(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "maximum time for the sweep")
	return cmd
}

func newCatalogCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the boost catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = os.Getenv("BOOSTS_CATALOG_FILE")
			}
			catalog, err := boosts.Load(file)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tRAM\tCPU\tDISK\tPRICES")
			for _, t := range catalog.List() {
				m := t.ResourceMultiplier
				fmt.Fprintf(w, "%s\t%s\tx%g\tx%g\tx%g\t%s\n", t.ID, t.Name, m.RAM, m.CPU, m.Disk, formatPrices(t))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "catalog YAML file (defaults to BOOSTS_CATALOG_FILE or the built-in catalog)")
	return cmd
}

func formatPrices(t boosts.BoostType) string {
	out := ""
	for _, tier := range t.Tiers() {
		if out != "" {
			out += " "
		}
		out += tier + "=" + strconv.FormatInt(t.Prices[tier], 10)
	}
	return out
}

func newTokenCmd() *cobra.Command {
	var (
		userID uint
		email  string
		role   string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return fmt.Errorf("--user is required")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tok, err := auth.GenerateAccessToken(&cfg.JWT, userID, email, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "user", 0, "user id")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&role, "role", domain.RoleUser, "USER or ADMIN")
	return cmd
}

func newCreditCmd() *cobra.Command {
	var (
		userID uint
		amount int64
		reason string
	)
	cmd := &cobra.Command{
		Use:   "credit",
		Short: "Credit coins to a user's wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ref := "cli"
			if reason != "" {
				ref += ":" + reason
			}
			if err := service.CreditCoins(a.DB, userID, amount, ref); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "credited %d coins to user %d\n", amount, userID)
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "user", 0, "user id")
	cmd.Flags().Int64Var(&amount, "amount", 0, "coins to credit")
	cmd.Flags().StringVar(&reason, "reason", "", "reference stored with the transaction")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
