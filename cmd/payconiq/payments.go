package main

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wolfman30/payconiq-go/internal/ledger"
	"github.com/wolfman30/payconiq-go/pkg/payconiq"
)

func newCreateCmd(a *app) *cobra.Command {
	var (
		amount      string
		currency    string
		description string
		reference   string
		callbackURL string
		returnURL   string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "create a payment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cents, err := parseAmount(amount)
			if err != nil {
				return err
			}
			if reference == "" {
				reference = uuid.NewString()
			}
			if callbackURL == "" {
				callbackURL = a.cfg.PayconiqCallbackURL
			}
			if returnURL == "" {
				returnURL = a.cfg.PayconiqReturnURL
			}

			payment, err := a.client.CreatePayment(cmd.Context(), payconiq.PaymentRequest{
				Amount:      cents,
				Currency:    strings.ToUpper(currency),
				Description: description,
				Reference:   reference,
				CallbackURL: callbackURL,
				ReturnURL:   returnURL,
			})
			if err != nil {
				return err
			}
			a.logger.Info("payment created",
				"payment_id", payment.PaymentID,
				"reference", reference,
				"amount", formatAmount(cents),
			)
			a.record(cmd.Context(), payment)
			return a.printJSON(payment)
		},
	}
	f := cmd.Flags()
	f.StringVar(&amount, "amount", "", "amount in major units, e.g. 12.50")
	f.StringVar(&currency, "currency", payconiq.DefaultCurrency, "ISO 4217 currency code")
	f.StringVar(&description, "description", "", "description shown to the payer")
	f.StringVar(&reference, "reference", "", "merchant reference (defaults to a new UUID)")
	f.StringVar(&callbackURL, "callback-url", "", "status callback URL (defaults to PAYCONIQ_CALLBACK_URL)")
	f.StringVar(&returnURL, "return-url", "", "return URL (defaults to PAYCONIQ_RETURN_URL)")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <payment-id>",
		Short: "retrieve a payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payment, err := a.client.RetrievePayment(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.syncStatus(cmd.Context(), payment)
			return a.printJSON(payment)
		},
	}
}

func newRefundCmd(a *app) *cobra.Command {
	var (
		amount      string
		currency    string
		description string
	)
	cmd := &cobra.Command{
		Use:   "refund <payment-id>",
		Short: "refund a payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cents, err := parseAmount(amount)
			if err != nil {
				return err
			}
			payment, err := a.client.RefundPayment(cmd.Context(), args[0], payconiq.RefundRequest{
				Amount:      cents,
				Currency:    strings.ToUpper(currency),
				Description: description,
			})
			if err != nil {
				return err
			}
			a.logger.Info("payment refunded", "payment_id", args[0], "amount", formatAmount(cents))
			if a.ledger != nil {
				if _, err := a.ledger.MarkRefunded(cmd.Context(), args[0], cents); err != nil && !errors.Is(err, ledger.ErrNotFound) {
					a.logger.Warn("ledger refund update failed", "payment_id", args[0], "error", err)
				}
			}
			return a.printJSON(payment)
		},
	}
	f := cmd.Flags()
	f.StringVar(&amount, "amount", "", "amount to refund in major units")
	f.StringVar(&currency, "currency", payconiq.DefaultCurrency, "ISO 4217 currency code")
	f.StringVar(&description, "description", "", "refund description")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

type refundIbanOutput struct {
	PaymentID string `json:"paymentId"`
	IBAN      string `json:"iban"`
}

func newRefundIbanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refund-iban <payment-id>",
		Short: "show the IBAN a refund would be paid to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			iban, err := a.client.GetRefundIban(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printJSON(refundIbanOutput{PaymentID: args[0], IBAN: iban})
		},
	}
}

// record stores a newly created payment. Ledger failures are logged only:
// the payment exists at Payconiq either way.
func (a *app) record(ctx context.Context, payment *payconiq.Payment) {
	if a.ledger == nil {
		return
	}
	if err := a.ledger.Record(ctx, ledger.EntryFromPayment(payment, a.now())); err != nil {
		a.logger.Warn("ledger record failed", "payment_id", payment.PaymentID, "error", err)
	}
}

// syncStatus refreshes the status of a payment the ledger already knows.
func (a *app) syncStatus(ctx context.Context, payment *payconiq.Payment) {
	if a.ledger == nil || payment.Status == "" {
		return
	}
	entry, err := a.ledger.Get(ctx, payment.PaymentID)
	if errors.Is(err, ledger.ErrNotFound) {
		return
	}
	if err != nil {
		a.logger.Warn("ledger lookup failed", "payment_id", payment.PaymentID, "error", err)
		return
	}
	if entry.Status == payment.Status {
		return
	}
	entry.Status = payment.Status
	if err := a.ledger.Record(ctx, *entry); err != nil {
		a.logger.Warn("ledger status update failed", "payment_id", payment.PaymentID, "error", err)
	}
}
