// Command tooldex runs the tool-discovery search engine.
//
// Usage:
//
//	tooldex serve
//	tooldex seed --limit 500 --clear --vector-types semantic,entities.aliases
//	tooldex version
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"

	"github.com/tooldex/tooldex/pkg/config"
	"github.com/tooldex/tooldex/pkg/logger"
)

// Exit codes: 0 success, 1 fatal error, 2 argument or config error.
const (
	exitOK     = 0
	exitFatal  = 1
	exitConfig = 2
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the search API server."`
	Seed    SeedCmd    `cmd:"" help:"Seed the vector store from the catalog."`

	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(*config.Config) error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("tooldex version %s\n", version)
	return nil
}

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = config.LoadDotEnv()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("tooldex"),
		kong.Description("Multi-source tool-discovery search engine"),
		kong.UsageOnError(),
	)

	logger.Init(logger.ParseLevel(cli.LogLevel), os.Stderr, cli.LogFormat)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(exitConfig)
	}

	if err := kctx.Run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitFatal)
	}
	os.Exit(exitOK)
}
