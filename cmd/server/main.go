package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "control-center",
		Usage:   "CCTV control center event backend",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config/default.yaml",
				EnvVars: []string{"CONFIG_PATH"},
				Usage:   "path to the YAML config file",
			},
		},
		Commands: []*cli.Command{
			serverCommand(),
			migrateCommand(),
			tokenCommand(),
		},
		DefaultCommand: "server",
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
