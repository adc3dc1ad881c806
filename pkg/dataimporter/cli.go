package dataimporter

import (
	"os"

	"github.com/travigo/delayengine/pkg/ctdf"
	"github.com/travigo/delayengine/pkg/database"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

var fileFlag = &cli.StringFlag{
	Name:     "file",
	Usage:    "Path of the CSV file to import",
	Required: true,
}

var datasetFlag = &cli.StringFlag{
	Name:  "dataset",
	Usage: "Name of the dataset recorded on every imported record",
}

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "data-importer",
		Usage: "Import stations & journey schedules from CSV files",
		Subcommands: []*cli.Command{
			{
				Name:  "stations",
				Usage: "Import a stations CSV file",
				Flags: []cli.Flag{fileFlag, datasetFlag},
				Action: func(c *cli.Context) error {
					file, err := os.Open(c.String("file"))
					if err != nil {
						return err
					}
					defer file.Close()

					stations, err := ParseStations(file, newDataSource(c))
					if err != nil {
						return err
					}

					if err := database.Connect(); err != nil {
						return err
					}

					_, err = NewImporter().ImportStations(c.Context, stations)
					return err
				},
			},
			{
				Name:  "journeys",
				Usage: "Import a journey stops CSV file",
				Flags: []cli.Flag{fileFlag, datasetFlag},
				Action: func(c *cli.Context) error {
					file, err := os.Open(c.String("file"))
					if err != nil {
						return err
					}
					defer file.Close()

					journeys, err := ParseJourneys(file, newDataSource(c))
					if err != nil {
						return err
					}

					if err := database.Connect(); err != nil {
						return err
					}

					_, err = NewImporter().ImportJourneys(c.Context, journeys)
					return err
				},
			},
		},
	}
}

func newDataSource(c *cli.Context) *ctdf.DataSource {
	return &ctdf.DataSource{
		OriginalFormat: "CSV",
		Provider:       "delayengine",
		Dataset:        c.String("dataset"),
		Identifier:     c.String("file"),
	}
}
