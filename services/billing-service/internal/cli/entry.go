package cli

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func (a *app) entryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Записи времени",
	}

	var (
		caseID      string
		date        string
		hours       string
		description string
	)
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Проверить запись времени без сохранения",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now()
			if date != "" {
				parsed, err := time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", date)
				}
				day = parsed
			}
			h, err := decimal.NewFromString(hours)
			if err != nil {
				return fmt.Errorf("invalid --hours %q: %w", hours, err)
			}

			result, err := a.client().ValidateEntry(cmd.Context(), caseID, day, h, description)
			if err != nil {
				return err
			}

			tbl := newTable("KIND", "MESSAGE")
			for _, e := range result.Errors {
				tbl.add("error", e)
			}
			for _, w := range result.Warnings {
				tbl.add("warning", w)
			}
			if result.Valid && len(result.Warnings) == 0 {
				tbl.add("ok", "entry is valid")
			}
			return a.render(cmd.OutOrStdout(), result, tbl)
		},
	}
	validate.Flags().StringVar(&caseID, "case", "", "ID дела")
	validate.Flags().StringVar(&date, "date", "", "дата записи YYYY-MM-DD (по умолчанию сегодня)")
	validate.Flags().StringVar(&hours, "hours", "", "часы, кратные 0.1")
	validate.Flags().StringVarP(&description, "description", "d", "", "описание работы")
	_ = validate.MarkFlagRequired("case")
	_ = validate.MarkFlagRequired("hours")

	cmd.AddCommand(validate)
	return cmd
}
