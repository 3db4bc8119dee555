package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	pkgErrors "LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/services/billing-service/internal/cli/client"
)

// Version версия CLI
const Version = "1.0.0"

// app общее состояние команд одного запуска
type app struct {
	v *viper.Viper
}

// NewRootCommand создает корневую команду billing-cli.
// Каждый вызов получает собственный экземпляр viper.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "billing-cli",
		Short: "billing-cli - таймеры и ставки юридической практики",
		Long: `billing-cli - инструмент командной строки для billing-service.

Запуск, пауза и остановка таймеров, конвертация в записи времени,
предварительный расчет ставок и округление времени.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
	}

	// Global flags
	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.billing-cli.yaml)")
	flags.StringP("server", "s", "http://localhost:8080", "billing-service base URL")
	flags.StringP("tenant", "t", "", "tenant ID (X-Tenant-ID)")
	flags.StringP("user", "u", "", "user ID (X-User-ID)")
	flags.StringP("output", "o", "table", "output format (table, json, yaml)")
	flags.Duration("timeout", 30*time.Second, "request timeout")

	for _, name := range []string{"config", "server", "tenant", "user", "output", "timeout"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(a.timerCmd())
	root.AddCommand(a.rateCmd())
	root.AddCommand(a.hoursCmd())
	root.AddCommand(a.entryCmd())

	return root
}

// initConfig читает файл конфигурации и переменные окружения BILLING_CLI_*
func (a *app) initConfig() error {
	a.v.SetEnvPrefix("billing_cli")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if cfgFile := a.v.GetString("config"); cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(home)
		}
		a.v.AddConfigPath(".")
		a.v.SetConfigType("yaml")
		a.v.SetConfigName(".billing-cli")
	}

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// явно указанный файл обязан читаться
		if !errors.As(err, &notFound) && a.v.GetString("config") != "" {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	switch a.format() {
	case formatTable, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", a.v.GetString("output"))
	}
}

func (a *app) client() *client.Client {
	return client.New(client.Config{
		BaseURL:  a.v.GetString("server"),
		TenantID: a.v.GetString("tenant"),
		UserID:   a.v.GetString("user"),
		Timeout:  a.v.GetDuration("timeout"),
	})
}

// FormatError переводит ошибку API в сообщение для терминала
func FormatError(err error) string {
	e, ok := pkgErrors.As(err)
	if !ok {
		return err.Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Details != "" {
		fmt.Fprintf(&b, " (%s)", e.Details)
	}
	for _, v := range e.Violations {
		fmt.Fprintf(&b, "\n  - %s", v)
	}
	return b.String()
}
