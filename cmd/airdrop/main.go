package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/bitfsorg/libairdrop-go/metrics"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = `airdrop distributes ERC20 tokens to presale contributors.

Usage:
  airdrop <command> [flags]

Commands:
  wallet init    generate a mnemonic and store the encrypted seed
  wallet show    print the signing address
  load           read contributions from the presale
  plan           load, allocate and print the batch plan
  run            load, plan, approve and distribute
  send           transfer tokens to a single address
  history        list recorded runs

Run 'airdrop <command> --help' for command flags.
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "wallet":
		if len(rest) == 0 {
			return fmt.Errorf("%w: wallet needs a subcommand", errUsage)
		}
		switch rest[0] {
		case "init":
			return walletInit(ctx, rest[1:], out)
		case "show":
			return walletShow(ctx, rest[1:], out)
		}
		return fmt.Errorf("%w: unknown wallet subcommand %q", errUsage, rest[0])
	case "load":
		return loadCmd(ctx, rest, out)
	case "plan":
		return planCmd(ctx, rest, out)
	case "run":
		return runCmd(ctx, cancel, rest, out)
	case "send":
		return sendCmd(ctx, rest, out)
	case "history":
		return historyCmd(ctx, rest, out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	case "version":
		fmt.Fprintf(out, "airdrop %s (%s, %s)\n", version, commit, date)
		return nil
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

// serveMetrics exposes /metrics on addr until the process exits.
func (a *app) serveMetrics() {
	if a.cfg.MetricsAddr == "" {
		return
	}
	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
	listener, err := net.Listen("tcp", a.cfg.MetricsAddr)
	if err != nil {
		a.log.Error("failed to start prometheus metrics server listener", "error", err)
		return
	}
	a.log.Info("prometheus metrics server listening", "address", listener.Addr().String())
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.Serve(listener, mux); err != nil {
			a.log.Error("prometheus metrics server stopped", "error", err)
		}
	}()
}

// handleSignals calls abort on the first interrupt and cancel on the
// second, so a run can stop between batches before it is torn down.
func (a *app) handleSignals(abort func(), cancel context.CancelFunc) (stop func()) {
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		count := 0
		for {
			select {
			case <-done:
				return
			case s := <-sig:
				count++
				if count == 1 {
					a.log.Warn("received signal, aborting after the current batch (repeat to force)", "signal", s.String())
					abort()
					continue
				}
				a.log.Warn("received second signal, cancelling", "signal", s.String())
				cancel()
				return
			}
		}
	}()
	return func() {
		signal.Stop(sig)
		close(done)
	}
}
