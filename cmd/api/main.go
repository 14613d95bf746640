package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/nivobank/nivo/internal/app"
	"github.com/nivobank/nivo/internal/seeder"
	"github.com/nivobank/nivo/internal/version"
	"github.com/nivobank/nivo/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	err := run(logger)
	if err != nil {
		trace := string(debug.Stack())
		logger.Error(err.Error(), "trace", trace)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	showVersion := flag.Bool("version", false, "display version and exit")
	seed := flag.Bool("seed", false, "seed identity records and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("version: %s\n", version.Get())
		return nil
	}

	application, err := app.NewApplication(logger)
	if err != nil {
		return err
	}
	defer application.DB.Close()
	defer application.Redis.Close()

	if *seed {
		seeders.New(application.DB).Run()
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wk := worker.New(&worker.Worker{
		KafkaStream: application.Kafka,
		DB:          application.DB,
		Sessions:    application.Sessions,
		Mailer:      application.Mailer,
		Helper:      application.Helper,
		Ctx:         ctx,
	})

	go wk.VerificationAuditWorker()
	go wk.AccountOpenedWorker()
	go wk.SessionSweeperWorker()

	return application.ServeHTTP()
}
