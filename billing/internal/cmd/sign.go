package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mealplanpro/mealplan/billing/internal/razorpay"
)

// newSignCmd computes the checkout signature for a payment, for exercising
// verify-payment against test mode subscriptions.
func newSignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print the checkout signature for a payment and subscription",
		RunE: func(cmd *cobra.Command, args []string) error {
			paymentID, _ := cmd.Flags().GetString("payment")
			subscriptionID, _ := cmd.Flags().GetString("subscription")
			if paymentID == "" || subscriptionID == "" {
				return fmt.Errorf("--payment and --subscription are required")
			}

			cfg, err := loadRazorpayConfig(cmd)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(),
				razorpay.SubscriptionSignature(cfg.Razorpay.KeySecret, paymentID, subscriptionID))
			return nil
		},
	}
	cmd.Flags().String("payment", "", "razorpay_payment_id")
	cmd.Flags().String("subscription", "", "razorpay_subscription_id")
	return cmd
}
