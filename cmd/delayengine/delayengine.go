package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/travigo/delayengine/pkg/api"
	"github.com/travigo/delayengine/pkg/dataimporter"
	"github.com/travigo/delayengine/pkg/dbwatch"
	"github.com/travigo/delayengine/pkg/notify"
	"github.com/travigo/delayengine/pkg/realtime"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func main() {
	_ = godotenv.Load()

	if os.Getenv("TRAVIGO_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("TRAVIGO_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "delayengine",
		Description: "Estimates live train delays from passenger GPS and community reports",

		Commands: []*cli.Command{
			realtime.RegisterCLI(),
			notify.RegisterCLI(),
			api.RegisterCLI(),
			dataimporter.RegisterCLI(),
			dbwatch.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
