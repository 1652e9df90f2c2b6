package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/breadwatch/internal/control"
	"github.com/vietddude/breadwatch/internal/core/config"
)

var balanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "Print the token balance and pending bread of an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(time.Minute, args[0], func(ctx context.Context, app *control.App, _ *config.AppConfig) error {
			view, err := app.RefreshBalance(ctx)
			if err != nil {
				return fmt.Errorf("read balance: %w", err)
			}

			out := cmd.OutOrStdout()
			d := app.Dashboard()
			_, _ = fmt.Fprintf(out, "%s %s\n", view.Formatted, d.Symbol)
			if d.Pending != nil {
				_, _ = fmt.Fprintf(out, "pending %s\n", *d.Pending)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}
