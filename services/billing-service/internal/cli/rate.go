package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"LegalPracticePlatform/services/billing-service/internal/cli/client"
)

func (a *app) rateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rate",
		Short: "Расчет ставок",
	}
	cmd.AddCommand(a.ratePreviewCmd())
	return cmd
}

func (a *app) ratePreviewCmd() *cobra.Command {
	var (
		caseID        string
		userID        string
		at            string
		rate          string
		emergency     bool
		noMultipliers bool
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Рассчитать ставку без запуска таймера",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := client.PreviewOptions{
				CaseID:           caseID,
				UserID:           userID,
				IsEmergency:      emergency,
				ApplyMultipliers: !noMultipliers,
			}
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at %q: expected RFC3339", at)
				}
				opts.At = parsed
			}
			explicit, err := parseRate(rate)
			if err != nil {
				return err
			}
			opts.Rate = explicit

			result, err := a.client().PreviewRate(cmd.Context(), opts)
			if err != nil {
				return err
			}

			tbl := newTable("BASE", "SOURCE", "EFFECTIVE", "MULTIPLIERS")
			tbl.add(result.BaseRate.StringFixed(2), string(result.BaseSource),
				result.EffectiveRate.StringFixed(2), joinMultipliers(result.Multipliers))
			return a.render(cmd.OutOrStdout(), result, tbl)
		},
	}

	cmd.Flags().StringVar(&caseID, "case", "", "ID дела")
	cmd.Flags().StringVar(&userID, "for-user", "", "рассчитать для другого пользователя")
	cmd.Flags().StringVar(&at, "at", "", "момент времени в RFC3339 (по умолчанию сейчас)")
	cmd.Flags().StringVar(&rate, "rate", "", "явная почасовая ставка")
	cmd.Flags().BoolVar(&emergency, "emergency", false, "срочная работа")
	cmd.Flags().BoolVar(&noMultipliers, "no-multipliers", false, "не применять множители")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}
