package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "gamesearch: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "gamesearch",
		Usage:   "Hybrid semantic and fuzzy search over game data",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML or TOML config file",
				EnvVars: []string{"GAMESEARCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file loaded before the config",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override the logging level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "mcp",
				Usage:  "Serve the search tools over MCP on stdio",
				Action: mcpCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "warm",
						Usage: "Load the embedding model and every collection at startup",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the search API over HTTP",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides http.addr)",
					},
					&cli.BoolFlag{
						Name:  "warm",
						Usage: "Load the embedding model and every collection at startup",
					},
				},
			},
			{
				Name:   "cache",
				Usage:  "Build the embedding cache from downloaded source files",
				Action: cacheCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Rebuild collections even when the source is unchanged",
					},
					&cli.StringSliceFlag{
						Name:  "collections",
						Usage: "Collections to build (default: all)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Collections built concurrently (default: indexer.workers or CPU count)",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search one collection from the command line",
				ArgsUsage: "<collection> <query...>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   5,
					},
					&cli.StringSliceFlag{
						Name:  "fields",
						Usage: "Project results onto these field paths",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show the cache manifest and the last build",
				Action: statusCommand,
			},
			{
				Name:   "version",
				Usage:  "Print version and build information",
				Action: versionCommand,
			},
		},
	}
}
