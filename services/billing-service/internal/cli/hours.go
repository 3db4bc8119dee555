package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"LegalPracticePlatform/services/billing-service/internal/domain"
)

// hoursResult результат округления
type hoursResult struct {
	Seconds int64  `json:"seconds"`
	Hours   string `json:"hours"`
}

// parseSeconds принимает число секунд либо длительность Go (1h30m)
func parseSeconds(raw string) (int64, error) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("duration must not be negative: %s", raw)
		}
		return n, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: expected seconds or a duration like 1h30m", raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative: %s", raw)
	}
	return int64(d / time.Second), nil
}

func (a *app) hoursCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hours",
		Short: "Операции с оплачиваемым временем",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "round <seconds|duration>...",
		Short: "Округлить время вверх до 0.1 часа",
		Long: `Переводит длительность в оплачиваемые часы с округлением вверх
до шага 0.1 часа (6 минут). Работает локально, без обращения к серверу.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([]hoursResult, 0, len(args))
			tbl := newTable("INPUT", "SECONDS", "HOURS")
			for _, arg := range args {
				seconds, err := parseSeconds(arg)
				if err != nil {
					return err
				}
				hours := domain.RoundUpToTenthHour(seconds).StringFixed(1)
				results = append(results, hoursResult{Seconds: seconds, Hours: hours})
				tbl.add(arg, strconv.FormatInt(seconds, 10), hours)
			}
			return a.render(cmd.OutOrStdout(), results, tbl)
		},
	})
	return cmd
}
