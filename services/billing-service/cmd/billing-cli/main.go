package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"LegalPracticePlatform/services/billing-service/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %s\n", cli.FormatError(err))
		stop()
		os.Exit(1)
	}
}
