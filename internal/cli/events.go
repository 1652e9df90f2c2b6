package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/breadwatch/internal/control"
	"github.com/vietddude/breadwatch/internal/core/config"
)

var eventsCmd = &cobra.Command{
	Use:   "events <address>",
	Short: "Print the mint history of an address, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(5*time.Minute, args[0], func(ctx context.Context, app *control.App, cfg *config.AppConfig) error {
			if err := app.WaitIdle(ctx); err != nil {
				return fmt.Errorf("mint history did not load: %w", err)
			}
			printLedger(cmd.OutOrStdout(), app.Events(), cfg.Token.Symbol)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}

func printLedger(out io.Writer, view control.LedgerView, symbol string) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintf(w, "BLOCK\tTIME\tAMOUNT (%s)\tTX\n", symbol)

	for _, e := range view.Entries {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.BlockNumber, e.Time, e.Formatted, e.TxHash)
	}
	_ = w.Flush()
}
