package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all stored readings",
	Long: `Deletes every reading from the configured database. The schema is kept.
Requires --force.`,
	RunE: clearReadings,
}

func init() {
	clearCmd.Flags().Bool("force", false, "Confirm deletion of all readings")
}

func clearReadings(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	if !force {
		return errors.New("refusing to clear readings without --force")
	}

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear readings: %w", err)
	}
	logger.Info("readings cleared", zap.String("driver", store.Driver()))

	fmt.Fprintln(cmd.OutOrStdout(), "✓ All readings deleted")
	return nil
}
