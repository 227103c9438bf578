package directory

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/donation-cli/internal/model"
)

// ReceiptConfig identifies the ledger destinations for posted donations.
type ReceiptConfig struct {
	// DepositAccountID is the ledger account receipts are deposited to.
	DepositAccountID string `yaml:"deposit_account_id" mapstructure:"deposit_account_id"`
	// ItemID is the donation line item applied to every receipt.
	ItemID string `yaml:"item_id" mapstructure:"item_id"`
}

// CreateReceipt posts a finalized donation to the ledger and returns the
// created receipt ID. The donation must reference an existing customer.
func (d *Directory) CreateReceipt(ctx context.Context, donation model.EnrichedDonation, cfg ReceiptConfig) (string, error) {
	if donation.Payer.CustomerID == "" {
		return "", eris.Errorf("directory: donation %s has no customer", donation.ID)
	}

	record := map[string]any{
		"Customer__c":       donation.Payer.CustomerID,
		"Amount__c":         donation.Payment.Amount,
		"Reference__c":      donation.Payment.Reference,
		"CheckDate__c":      donation.Payment.CheckDate,
		"DepositDate__c":    donation.Payment.DepositDate,
		"Memo__c":           donation.Payment.Memo,
		"DepositAccount__c": cfg.DepositAccountID,
		"Item__c":           cfg.ItemID,
	}

	id, err := d.client.InsertOne(ctx, "Receipt__c", record)
	if err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("directory: create receipt for donation %s", donation.ID))
	}
	return id, nil
}
