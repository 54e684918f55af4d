package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mealplanpro/mealplan/billing/internal/razorpay"
	"github.com/mealplanpro/mealplan/billing/internal/server"
	"github.com/mealplanpro/mealplan/billing/internal/subscription"
)

func newPlansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Inspect and provision Razorpay plans",
	}
	cmd.AddCommand(newPlansListCmd())
	cmd.AddCommand(newPlansEnsureCmd())
	return cmd
}

func newPlansListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plans on the Razorpay account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRazorpayConfig(cmd)
			if err != nil {
				return err
			}
			count, _ := cmd.Flags().GetInt("count")
			skip, _ := cmd.Flags().GetInt("skip")

			client := server.NewRazorpayClient(cfg.Razorpay)
			list, err := client.ListPlans(cmd.Context(), razorpay.ListOptions{Count: count, Skip: skip})
			if err != nil {
				return fmt.Errorf("list plans: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tNAME\tAMOUNT\tCURRENCY\tPERIOD\tCREATED")
			for _, p := range list.Items {
				created := ""
				if p.CreatedAt > 0 {
					created = time.Unix(p.CreatedAt, 0).UTC().Format(time.RFC3339)
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d %s\t%s\n",
					p.ID, p.Item.Name, p.Item.Amount, p.Item.Currency, p.Interval, p.Period, created)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int("count", 10, "number of plans to fetch (max 100)")
	cmd.Flags().Int("skip", 0, "number of plans to skip")
	return cmd
}

func newPlansEnsureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure",
		Short: "Create the configured plan unless a matching one exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRazorpayConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Logging, cmd.ErrOrStderr())

			// Plan provisioning does not touch subscription records.
			svc := subscription.New(server.NewRazorpayClient(cfg.Razorpay), nil, cfg.Plan, logger)
			plan, created, err := svc.EnsurePlan(cmd.Context())
			if err != nil {
				return fmt.Errorf("ensure plan: %w", err)
			}

			state := "exists"
			if created {
				state = "created"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "plan %s %s (%s, %d %s per %d %s)\n",
				plan.ID, state, plan.Item.Name, plan.Item.Amount, plan.Item.Currency, plan.Interval, plan.Period)
			return nil
		},
	}
}
