package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"LegalPracticePlatform/services/billing-service/internal/cli/client"
	"LegalPracticePlatform/services/billing-service/internal/service"
)

func (a *app) timerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Управление таймерами",
		Long: `Команды для работы с таймерами:
запуск, пауза, возобновление, остановка, конвертация и список.`,
	}

	cmd.AddCommand(a.timerStartCmd())
	cmd.AddCommand(a.timerActionCmd("pause", "Поставить таймер на паузу"))
	cmd.AddCommand(a.timerActionCmd("resume", "Возобновить таймер"))
	cmd.AddCommand(a.timerStopCmd())
	cmd.AddCommand(a.timerConvertCmd())
	cmd.AddCommand(a.timerListCmd())
	return cmd
}

func timerTable(timers ...*service.TimerStatus) *table {
	tbl := newTable("ID", "CASE", "STATE", "HOURS", "RATE", "DESCRIPTION")
	for _, t := range timers {
		if t == nil || t.ActiveTimer == nil {
			continue
		}
		tbl.add(t.ID, t.CaseID, string(t.State), t.CurrentHours.StringFixed(1), t.HourlyRate.StringFixed(2), t.Description)
	}
	return tbl
}

func parseRate(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", raw, err)
	}
	return &rate, nil
}

func (a *app) timerStartCmd() *cobra.Command {
	var (
		caseID        string
		rate          string
		noMultipliers bool
		emergency     bool
		workType      string
		description   string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Запустить таймер по делу",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			explicit, err := parseRate(rate)
			if err != nil {
				return err
			}
			apply := !noMultipliers

			timer, err := a.client().StartTimer(cmd.Context(), client.StartTimerOptions{
				CaseID:           caseID,
				Rate:             explicit,
				ApplyMultipliers: &apply,
				IsEmergency:      emergency,
				WorkType:         workType,
				Description:      description,
			})
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), timer, timerTable(timer))
		},
	}

	cmd.Flags().StringVar(&caseID, "case", "", "ID дела")
	cmd.Flags().StringVar(&rate, "rate", "", "явная почасовая ставка")
	cmd.Flags().BoolVar(&noMultipliers, "no-multipliers", false, "не применять множители")
	cmd.Flags().BoolVar(&emergency, "emergency", false, "срочная работа")
	cmd.Flags().StringVar(&workType, "work-type", "", "вид работы")
	cmd.Flags().StringVarP(&description, "description", "d", "", "описание работы")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}

// timerActionCmd pause/resume: одинаковая форма запроса и ответа
func (a *app) timerActionCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <timer-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.client()
			var (
				timer *service.TimerStatus
				err   error
			)
			if action == "pause" {
				timer, err = c.PauseTimer(cmd.Context(), args[0])
			} else {
				timer, err = c.ResumeTimer(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), timer, timerTable(timer))
		},
	}
}

func sessionTable(result *service.StopResult) *table {
	tbl := newTable("SESSION", "TIMER", "CASE", "SECONDS", "STATUS")
	if result.AlreadyStopped {
		tbl.add("-", "-", "-", "-", "already stopped")
		return tbl
	}
	if s := result.Session; s != nil {
		tbl.add(s.ID, s.TimerID, s.CaseID, strconv.FormatInt(s.TotalDurationSeconds, 10), "stopped")
	}
	return tbl
}

func (a *app) timerStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <timer-id>",
		Short: "Остановить таймер",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.client().StopTimer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), result, sessionTable(result))
		},
	}
}

func conversionTable(result *service.ConversionResult) *table {
	tbl := newTable("SESSION", "DATE", "HOURS", "RATE", "AMOUNT", "VALID")
	if result == nil || result.Session == nil {
		return tbl
	}
	row := []string{result.Session.ID, "-", "-", "-", "-", "-"}
	if d := result.Draft; d != nil {
		row[1] = d.Date.Format("2006-01-02")
		row[2] = d.Hours.StringFixed(1)
		if d.Rate != nil {
			row[3] = d.Rate.StringFixed(2)
		}
		row[4] = d.Amount().StringFixed(2)
	}
	if v := result.Validation; v != nil {
		row[5] = strconv.FormatBool(v.Valid)
	}
	tbl.add(row...)
	return tbl
}

func (a *app) timerConvertCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "convert <timer-id>",
		Short: "Остановить таймер и создать запись времени",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var desc *string
			if cmd.Flags().Changed("description") {
				desc = &description
			}

			result, err := a.client().ConvertTimer(cmd.Context(), args[0], desc)
			if result != nil {
				// сессия сохранена даже при отклоненной записи
				if renderErr := a.render(cmd.OutOrStdout(), result, conversionTable(result)); renderErr != nil {
					return renderErr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "описание записи (по умолчанию из таймера)")
	return cmd
}

func (a *app) timerListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Показать активные таймеры",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.client().ListTimers(cmd.Context(), all)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), list, timerTable(list.Timers...))
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "все таймеры арендатора")
	return cmd
}

// joinMultipliers печатает примененные множители
func joinMultipliers(m []string) string {
	if len(m) == 0 {
		return "-"
	}
	return strings.Join(m, "+")
}
