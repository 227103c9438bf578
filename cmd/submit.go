package main

import (
	"context"
	"fmt"
	"reflect"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/donation-cli/internal/model"
	"github.com/sells-group/donation-cli/internal/store"
	"github.com/sells-group/donation-cli/pkg/directory"
)

var (
	submitBatchID       string
	submitIncludeReview bool
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Post unsent donations to the ledger",
	Long: `Creates directory customers for new payers, applies confirmed address and
contact updates, posts a receipt per donation, and marks each donation sent.
Donations still flagged for address review are skipped unless
--include-review is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		dir, err := initDirectory()
		if err != nil {
			return err
		}

		donations, err := st.ListDonations(ctx, store.DonationFilter{
			BatchID: submitBatchID,
			Unsent:  true,
		})
		if err != nil {
			return err
		}

		var sent, skipped, failed int
		var sentIDs []string
		for _, d := range donations {
			if d.Status == model.StatusAddressReview && !submitIncludeReview && !d.Flags.Edited {
				skipped++
				continue
			}

			if err := submitDonation(ctx, st, dir, d); err != nil {
				zap.L().Error("submit: donation failed",
					zap.String("donation_id", d.ID),
					zap.Error(err),
				)
				failed++
				continue
			}
			sentIDs = append(sentIDs, d.ID)
			sent++
		}

		if len(sentIDs) > 0 {
			if err := st.MarkSent(ctx, sentIDs); err != nil {
				return err
			}
		}

		fmt.Printf("submitted %d donations (%d skipped, %d failed)\n", sent, skipped, failed)
		return nil
	},
}

// submitDonation creates the customer when needed, pushes confirmed address
// and contact changes, and posts the receipt.
func submitDonation(ctx context.Context, st store.Store, dir *directory.Directory, d model.EnrichedDonation) error {
	if d.Payer.CustomerID == "" {
		entry, err := dir.CreateCustomer(ctx, d.Payer)
		if err != nil {
			return err
		}
		d.Payer.CustomerID = entry.ID
		d.Payer.SyncToken = entry.SyncToken
		if err := st.UpdateDonation(ctx, d); err != nil {
			return err
		}
	} else if err := pushCustomerChanges(ctx, dir, d); err != nil {
		return err
	}

	receiptID, err := dir.CreateReceipt(ctx, d, cfg.Ledger.Receipt())
	if err != nil {
		return err
	}
	zap.L().Info("submit: receipt created",
		zap.String("donation_id", d.ID),
		zap.String("receipt_id", receiptID),
	)
	return nil
}

// pushCustomerChanges syncs the donation's payer block back to the directory.
// The current entry is refetched so each update carries a fresh token.
func pushCustomerChanges(ctx context.Context, dir *directory.Directory, d model.EnrichedDonation) error {
	entry, err := dir.GetCustomer(ctx, d.Payer.CustomerID)
	if err != nil {
		return err
	}
	if entry == nil {
		zap.L().Warn("submit: matched customer no longer exists, skipping sync",
			zap.String("customer_id", d.Payer.CustomerID),
		)
		return nil
	}

	if d.Flags.AddressNeedsUpdate && d.Flags.Edited && d.Payer.Address != entry.Address && !d.Payer.Address.Empty() {
		if err := dir.UpdateCustomerAddress(ctx, entry.ID, entry.SyncToken, d.Payer.Address); err != nil {
			return err
		}
		refreshed, err := dir.GetCustomer(ctx, entry.ID)
		if err != nil {
			return err
		}
		if refreshed != nil {
			entry = refreshed
		}
	}

	if !reflect.DeepEqual(d.Payer.Emails, entry.Emails) || !reflect.DeepEqual(d.Payer.Phones, entry.Phones) {
		if len(d.Payer.Emails) > 0 || len(d.Payer.Phones) > 0 {
			if err := dir.UpdateCustomerContact(ctx, entry.ID, entry.SyncToken, d.Payer.Emails, d.Payer.Phones); err != nil {
				return err
			}
		}
	}

	return nil
}

func init() {
	submitCmd.Flags().StringVar(&submitBatchID, "batch", "", "restrict submission to one batch")
	submitCmd.Flags().BoolVar(&submitIncludeReview, "include-review", false, "also submit donations still flagged for address review")
	rootCmd.AddCommand(submitCmd)
}
