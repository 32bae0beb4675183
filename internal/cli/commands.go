package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/google/subcommands"

	"saldo/internal/core"
	"saldo/internal/ledger"
)

// Ledger is the service surface saldoctl drives.
type Ledger interface {
	Load(ctx context.Context) core.LedgerState
	Apply(ctx context.Context, amount core.Money, kind core.Kind, description string) (core.LedgerState, error)
	ResetAll(ctx context.Context) (core.LedgerState, error)
	EraseHistory(ctx context.Context) (core.LedgerState, error)
	Recent(ctx context.Context, n int) []core.TransactionRecord
	Calendar(ctx context.Context, loc *time.Location) []ledger.DayGroup
	Close() error
}

// Env is what every subcommand shares.
type Env struct {
	Open        func(ctx context.Context) (Ledger, error)
	Out         io.Writer
	Err         io.Writer
	Location    *time.Location
	RecentLimit int
	// Plain prints raw markdown instead of terminal styling.
	Plain bool
}

// Commands returns the saldoctl subcommands bound to env.
func Commands(env *Env) []subcommands.Command {
	return []subcommands.Command{
		&showCmd{env: env},
		&addCmd{env: env},
		&recentCmd{env: env},
		&calendarCmd{env: env},
		&resetCmd{env: env},
		&eraseCmd{env: env},
	}
}

// withLedger opens the ledger, runs fn and closes it.
func (e *Env) withLedger(ctx context.Context, fn func(Ledger) subcommands.ExitStatus) subcommands.ExitStatus {
	l, err := e.Open(ctx)
	if err != nil {
		fmt.Fprintln(e.Err, err)
		return subcommands.ExitFailure
	}
	status := fn(l)
	if err := l.Close(); err != nil {
		fmt.Fprintln(e.Err, err)
	}
	return status
}

func (e *Env) print(md string) subcommands.ExitStatus {
	if err := printMarkdown(e.Out, md, e.Plain); err != nil {
		fmt.Fprintln(e.Err, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// finish prints the new state. A persistence error is reported but the
// state is still shown; the exit status tells scripts it was not saved.
func (e *Env) finish(state core.LedgerState, err error) subcommands.ExitStatus {
	status := e.print(balanceMarkdown(state))
	if err != nil {
		fmt.Fprintf(e.Err, "warning: change applied but not saved: %v\n", err)
		return subcommands.ExitFailure
	}
	return status
}

type showCmd struct{ env *Env }

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "print the balance and the most recent transactions" }
func (*showCmd) Usage() string {
	return `saldoctl show

  Prints the current balance followed by the most recent transactions.
`
}
func (*showCmd) SetFlags(*flag.FlagSet) {}

func (c *showCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	return c.env.withLedger(ctx, func(l Ledger) subcommands.ExitStatus {
		state := l.Load(ctx)
		recent := ledger.Recent(state.History, c.env.RecentLimit)
		return c.env.print(balanceMarkdown(state) + "\n" + recordsMarkdown("Recent", recent, c.env.Location))
	})
}

type addCmd struct {
	env    *Env
	kind   string
	amount string
	desc   string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record a credit or a debit" }
func (*addCmd) Usage() string {
	return `saldoctl add -kind credit|debit -amount <amount> [-desc <description>]

  Applies one transaction and prints the new balance. Amounts use a dot or
  a comma as decimal separator and are rounded to cents.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "kind", "", "Transaction kind: credit or debit.")
	f.StringVar(&c.amount, "amount", "", "Positive amount, e.g. 12.50.")
	f.StringVar(&c.desc, "desc", "", "Optional description.")
}

func (c *addCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	amount, err := core.ParseAmount(c.amount)
	if err != nil {
		fmt.Fprintln(c.env.Err, err)
		return subcommands.ExitUsageError
	}
	kind, err := core.ParseKind(c.kind)
	if err != nil {
		fmt.Fprintln(c.env.Err, err)
		return subcommands.ExitUsageError
	}
	return c.env.withLedger(ctx, func(l Ledger) subcommands.ExitStatus {
		state, err := l.Apply(ctx, amount, kind, c.desc)
		if err != nil && !errors.Is(err, core.ErrPersistence) {
			fmt.Fprintln(c.env.Err, err)
			return subcommands.ExitFailure
		}
		return c.env.finish(state, err)
	})
}

type recentCmd struct {
	env *Env
	n   int
}

func (*recentCmd) Name() string     { return "recent" }
func (*recentCmd) Synopsis() string { return "list the last N transactions, newest first" }
func (*recentCmd) Usage() string {
	return `saldoctl recent [-n <count>]
`
}

func (c *recentCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.n, "n", 0, "Number of transactions (defaults to RECENT_LIMIT).")
}

func (c *recentCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	n := c.n
	if n == 0 {
		n = c.env.RecentLimit
	}
	if n < 0 {
		fmt.Fprintln(c.env.Err, "-n must be positive")
		return subcommands.ExitUsageError
	}
	return c.env.withLedger(ctx, func(l Ledger) subcommands.ExitStatus {
		return c.env.print(recordsMarkdown("Recent", l.Recent(ctx, n), c.env.Location))
	})
}

type calendarCmd struct {
	env *Env
	tz  string
}

func (*calendarCmd) Name() string     { return "calendar" }
func (*calendarCmd) Synopsis() string { return "show the history grouped by day, newest day first" }
func (*calendarCmd) Usage() string {
	return `saldoctl calendar [-tz <zone>]
`
}

func (c *calendarCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.tz, "tz", "", "IANA time zone for day boundaries (defaults to DISPLAY_TIMEZONE).")
}

func (c *calendarCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	loc := c.env.Location
	if c.tz != "" {
		var err error
		if loc, err = time.LoadLocation(c.tz); err != nil {
			fmt.Fprintf(c.env.Err, "unknown time zone %q\n", c.tz)
			return subcommands.ExitUsageError
		}
	}
	return c.env.withLedger(ctx, func(l Ledger) subcommands.ExitStatus {
		return c.env.print(calendarMarkdown(l.Calendar(ctx, loc), loc))
	})
}

type resetCmd struct{ env *Env }

func (*resetCmd) Name() string     { return "reset" }
func (*resetCmd) Synopsis() string { return "restore the default balance and clear the history" }
func (*resetCmd) Usage() string {
	return `saldoctl reset
`
}
func (*resetCmd) SetFlags(*flag.FlagSet) {}

func (c *resetCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	return c.env.withLedger(ctx, func(l Ledger) subcommands.ExitStatus {
		return c.env.finish(l.ResetAll(ctx))
	})
}

type eraseCmd struct{ env *Env }

func (*eraseCmd) Name() string     { return "erase" }
func (*eraseCmd) Synopsis() string { return "clear the history, keeping the balance" }
func (*eraseCmd) Usage() string {
	return `saldoctl erase
`
}
func (*eraseCmd) SetFlags(*flag.FlagSet) {}

func (c *eraseCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	return c.env.withLedger(ctx, func(l Ledger) subcommands.ExitStatus {
		return c.env.finish(l.EraseHistory(ctx))
	})
}
