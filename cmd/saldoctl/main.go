// Command saldoctl reads and changes the ledger from the terminal, using the
// same configuration as the server.
package main

import (
	"context"
	"flag"
	"os"
	"path"
	_ "time/tzdata"

	"github.com/google/subcommands"

	"saldo/internal/cli"
	"saldo/internal/log"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(log.New(log.Config{Output: os.Stderr}), "Configuration validation failed", err)
	}
	// Logs go to stderr so stdout stays clean for the report.
	logger := cli.SetupLogger(cfg, log.ComponentCLI, os.Stderr)

	env := &cli.Env{
		Open: func(ctx context.Context) (cli.Ledger, error) {
			return cli.OpenLedgerService(ctx, cfg, logger, nil)
		},
		Out:         os.Stdout,
		Err:         os.Stderr,
		Location:    cfg.Location(),
		RecentLimit: cfg.RecentLimit,
	}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range cli.Commands(env) {
		commander.Register(c, "ledger")
	}
	flag.BoolVar(&env.Plain, "plain", false, "Print raw markdown instead of styled output.")

	flag.Parse()
	ctx := log.WithLogger(context.Background(), logger)
	os.Exit(int(commander.Execute(ctx)))
}
