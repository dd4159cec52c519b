package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stoik/replai/services/replai-service/internal/config"
	"github.com/stoik/replai/services/replai-service/internal/db"
	"github.com/stoik/replai/services/replai-service/internal/store"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the database schema",
	Long:  "Creates tables and indexes. Safe to run repeatedly.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		pool, err := db.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer pool.Close()

		fmt.Println("Running migrations...")
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}

		fmt.Println("✓ Database setup complete")
		return nil
	},
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List connected mailboxes",
	Long:  "Prints every connected mailbox with its provider and sync state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		pool, err := db.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer pool.Close()

		accounts, err := store.New(pool).ListAllAccounts(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USER\tPROVIDER\tMAILBOX\tSYNC")
		for _, a := range accounts {
			state := "active"
			if a.SyncPaused {
				state = "paused"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.UserID, a.Provider, a.EmailAddress, state)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("%d connected mailboxes\n", len(accounts))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(accountsCmd)
}
