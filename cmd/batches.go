package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/donation-cli/internal/model"
	"github.com/sells-group/donation-cli/internal/store"
)

var (
	batchesStatus string
	batchesLimit  int
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "List processed batches",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		batches, err := st.ListBatches(ctx, store.BatchFilter{
			Status: model.BatchStatus(batchesStatus),
			Limit:  batchesLimit,
		})
		if err != nil {
			return err
		}

		if len(batches) == 0 {
			fmt.Println("no batches")
			return nil
		}

		for _, b := range batches {
			line := fmt.Sprintf("%s  %-10s  %s  %s", b.ID, b.Status, b.CreatedAt.Format("2006-01-02 15:04"), b.Source)
			if b.Summary != nil {
				line += fmt.Sprintf("  (%d matched, %d new, %d review)",
					b.Summary.Matched, b.Summary.New, b.Summary.NeedsReview)
			}
			fmt.Println(line)
		}
		return nil
	},
}

var batchShowCmd = &cobra.Command{
	Use:   "show <batch-id>",
	Short: "Show one batch and its donations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		b, err := st.GetBatch(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("batch %s (%s) from %s\n", b.ID, b.Status, b.Source)
		if s := b.Summary; s != nil {
			fmt.Printf("  %d in, %d merged, %d discarded, %d matched, %d new, %d review, %d errors\n",
				s.Input, s.Merged, s.Discarded, s.Matched, s.New, s.NeedsReview, s.Errors)
		}

		donations, err := st.ListDonations(ctx, store.DonationFilter{BatchID: b.ID})
		if err != nil {
			return err
		}
		for _, d := range donations {
			sent := " "
			if d.Flags.Sent {
				sent = "*"
			}
			fmt.Printf("  %s %s  %-22s  ref %-10s  $%s  %s\n",
				sent, d.ID, d.Payer.DisplayName, d.Payment.Reference, d.Payment.Amount, d.Status)
		}
		return nil
	},
}

func init() {
	batchesCmd.Flags().StringVar(&batchesStatus, "status", "", "filter by batch status")
	batchesCmd.Flags().IntVar(&batchesLimit, "limit", 20, "maximum batches to list")
	batchesCmd.AddCommand(batchShowCmd)
	rootCmd.AddCommand(batchesCmd)
}
