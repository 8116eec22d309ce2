package main

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	flag "github.com/spf13/pflag"

	"github.com/bitfsorg/libairdrop-go/chain"
	"github.com/bitfsorg/libairdrop-go/config"
	"github.com/bitfsorg/libairdrop-go/distribute"
	"github.com/bitfsorg/libairdrop-go/journal"
	"github.com/bitfsorg/libairdrop-go/plan"
	"github.com/bitfsorg/libairdrop-go/token"
	"github.com/bitfsorg/libairdrop-go/wallet"
)

func walletInit(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("wallet init", flag.ContinueOnError)
	words := fs.Int("words", wallet.DefaultWords, "mnemonic length: 12 or 24")
	mnemonicFlag := fs.String("mnemonic", "", "import an existing mnemonic instead of generating one")
	force := fs.Bool("force", false, "overwrite an existing encrypted seed")
	a, err := newApp(fs, args, os.Stderr)
	if err != nil {
		return err
	}

	password := a.environ["AIRDROP_PASSWORD"]
	if password == "" {
		return fmt.Errorf("%w: set AIRDROP_PASSWORD to encrypt the seed", config.ErrMissingValue)
	}
	if _, err := os.Stat(a.seedPath()); err == nil && !*force {
		return fmt.Errorf("wallet already exists at %s (use --force to overwrite)", a.seedPath())
	}

	mnemonic := *mnemonicFlag
	if mnemonic == "" {
		if mnemonic, err = wallet.GenerateMnemonic(*words); err != nil {
			return err
		}
		fmt.Fprintf(out, "Mnemonic (write it down, it is not shown again):\n\n  %s\n\n", mnemonic)
	}
	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		return err
	}
	if err := wallet.SaveSeed(a.seedPath(), seed, password); err != nil {
		return err
	}

	w, err := wallet.NewWallet(seed)
	if err != nil {
		return err
	}
	acct, err := w.DeriveAccount(*a.flags.account)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Encrypted seed written to %s\nAddress %s (%s)\n", a.seedPath(), acct.Address.Hex(), acct.Path)
	return nil
}

func walletShow(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("wallet show", flag.ContinueOnError)
	balance := fs.Bool("balance", false, "also read the token balance")
	a, err := newApp(fs, args, os.Stderr)
	if err != nil {
		return err
	}
	acct, err := a.account()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\t%s\n", acct.Address.Hex(), acct.Path)

	if *balance {
		if err := config.Require(a.cfg, "token"); err != nil {
			return err
		}
		bal, err := token.BalanceOf(ctx, a.reader(), common.HexToAddress(a.cfg.Token), acct.Address)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "balance\t%s\n", plan.FormatUnits(bal, int32(a.cfg.Decimals)))
	}
	return nil
}

func loadCmd(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	a, err := newApp(fs, args, os.Stderr)
	if err != nil {
		return err
	}
	l, err := a.loader(a.reader())
	if err != nil {
		return err
	}
	res, err := l.Load(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCONTRIBUTOR\tAMOUNT\tLAST BLOCK")
	for i, c := range res.Contributions {
		last := "-"
		if c.LastBlock > 0 {
			last = strconv.FormatUint(c.LastBlock, 10)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, c.Address.Hex(), plan.FormatUnits(c.Amount, plan.ContributionDecimals), last)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\ncontributors=%d sum=%s", len(res.Contributions), plan.FormatUnits(res.Sum(), plan.ContributionDecimals))
	if res.TotalRaised != nil {
		fmt.Fprintf(out, " total_raised=%s", plan.FormatUnits(res.TotalRaised, plan.ContributionDecimals))
	}
	fmt.Fprintln(out)
	for _, r := range res.SkippedRanges {
		fmt.Fprintf(out, "skipped blocks %s\n", r)
	}
	return nil
}

func planCmd(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	a, err := newApp(fs, args, os.Stderr)
	if err != nil {
		return err
	}
	p, _, err := a.buildPlan(ctx, a.reader())
	if err != nil {
		return err
	}
	return printPlan(out, p, int32(a.cfg.Decimals))
}

func printPlan(out io.Writer, p *plan.Plan, decimals int32) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BATCH\tRECIPIENTS\tAMOUNT")
	for _, b := range p.Batches {
		fmt.Fprintf(tw, "%d\t%d\t%s\n", b.Index+1, b.Len(), plan.FormatUnits(b.Total(), decimals))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nbatches=%d recipients=%d approval=%s\n", len(p.Batches), p.Recipients(), plan.FormatUnits(p.Total, decimals))
	return nil
}

func runCmd(ctx context.Context, cancel context.CancelFunc, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "build and print the plan without sending transactions")
	noJournal := fs.Bool("no-journal", false, "do not record the run in the data directory journal")
	a, err := newApp(fs, args, os.Stderr)
	if err != nil {
		return err
	}
	if err := config.Require(a.cfg, "token", "distributor", "rate"); err != nil {
		return err
	}
	p, _, err := a.buildPlan(ctx, a.reader())
	if err != nil {
		return err
	}
	decimals := int32(a.cfg.Decimals)
	if err := printPlan(out, p, decimals); err != nil {
		return err
	}
	if *dryRun {
		return nil
	}

	a.serveMetrics()
	client, closeClient, err := a.signer(ctx)
	if err != nil {
		return err
	}
	defer closeClient()

	tokenAddr := common.HexToAddress(a.cfg.Token)
	distributor := common.HexToAddress(a.cfg.Distributor)
	a.preflight(ctx, client, tokenAddr, distributor, p.Total)

	var recorder distribute.Recorder
	if !*noJournal {
		j, err := journal.Open(a.journalPath())
		if err != nil {
			return err
		}
		defer j.Close()
		recorder = j
	}

	engine, err := distribute.New(client, distribute.Config{
		Logger:          a.log,
		Token:           tokenAddr,
		Distributor:     distributor,
		TokenDecimals:   decimals,
		InterBatchDelay: a.cfg.BatchDelay,
		Recorder:        recorder,
		Observer: distribute.ObserverFunc(func(pr distribute.Progress) {
			a.log.Info("airdrop: "+pr.Message, "state", pr.State.String(), "summary", pr.Summary.String())
		}),
	})
	if err != nil {
		return err
	}

	stop := a.handleSignals(engine.Abort, cancel)
	defer stop()

	result, runErr := engine.DistributeAll(ctx, p)
	if result != nil {
		printRun(out, result, decimals)
	}
	return runErr
}

// preflight logs conditions that will likely make the run fail. None of
// them stop the run; the chain is the final authority.
func (a *app) preflight(ctx context.Context, client chain.Client, tokenAddr, distributor common.Address, total *big.Int) {
	sender := client.Sender()
	if bal, err := token.BalanceOf(ctx, client, tokenAddr, sender); err != nil {
		a.log.Warn("airdrop: could not read sender balance", "error", err)
	} else if bal.Cmp(total) < 0 {
		a.log.Warn("airdrop: sender balance is below the plan total",
			"balance", plan.FormatUnits(bal, int32(a.cfg.Decimals)),
			"total", plan.FormatUnits(total, int32(a.cfg.Decimals)))
	}
	if owner, err := token.DistributorOwner(ctx, client, distributor); err != nil {
		a.log.Debug("airdrop: could not read distributor owner", "error", err)
	} else if owner != sender {
		a.log.Warn("airdrop: sender is not the distributor owner", "owner", owner.Hex(), "sender", sender.Hex())
	}
}

func printRun(out io.Writer, run *distribute.Run, decimals int32) {
	fmt.Fprintf(out, "\nrun %s %s in %s\n", run.ID, run.State, run.Duration().Round(time.Millisecond))
	switch run.Approval.Status {
	case distribute.ApprovalSkipped:
		fmt.Fprintln(out, "approval: existing allowance covers the total")
	case distribute.ApprovalConfirmed:
		fmt.Fprintf(out, "approval: %s tx %s\n", plan.FormatUnits(run.Approval.Amount, decimals), run.Approval.TxHash.Hex())
	case distribute.ApprovalFailed:
		fmt.Fprintf(out, "approval: failed: %v\n", run.Approval.Err)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BATCH\tSTATUS\tAMOUNT\tTX")
	for _, o := range run.Outcomes {
		tx := "-"
		if o.TxHash != nil {
			tx = o.TxHash.Hex()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", o.BatchIndex+1, o.Status, plan.FormatUnits(o.Amount, decimals), tx)
	}
	_ = tw.Flush()
	fmt.Fprintln(out, run.Summary())
}

func sendCmd(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	to := fs.String("to", "", "recipient address")
	amount := fs.String("amount", "", "amount in whole tokens, e.g. 12.5")
	a, err := newApp(fs, args, os.Stderr)
	if err != nil {
		return err
	}
	if err := config.Require(a.cfg, "token"); err != nil {
		return err
	}
	if !common.IsHexAddress(*to) {
		return fmt.Errorf("%w: --to %q", config.ErrInvalidAddress, *to)
	}
	value, err := decimal.NewFromString(*amount)
	if err != nil || !value.IsPositive() {
		return fmt.Errorf("%w: --amount must be a positive number, got %q", errUsage, *amount)
	}
	raw, err := plan.TokenAmount(value, decimal.NewFromInt(1), int32(a.cfg.Decimals))
	if err != nil {
		return err
	}

	client, closeClient, err := a.signer(ctx)
	if err != nil {
		return err
	}
	defer closeClient()

	receipt, err := distribute.Transfer(ctx, client, common.HexToAddress(a.cfg.Token), common.HexToAddress(*to), raw)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "sent %s to %s in block %d tx %s\n",
		plan.FormatUnits(raw, int32(a.cfg.Decimals)), common.HexToAddress(*to).Hex(), receipt.BlockNumber, receipt.TxHash.Hex())
	return nil
}

func historyCmd(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "maximum number of runs to list, 0 for all")
	runID := fs.String("id", "", "show the batches of one run")
	a, err := newApp(fs, args, os.Stderr)
	if err != nil {
		return err
	}

	j, err := journal.Open(a.journalPath())
	if err != nil {
		return err
	}
	defer j.Close()

	if *runID != "" {
		return showReport(out, j, *runID)
	}

	reports, err := j.List(*limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATE\tRECIPIENTS\tSUMMARY")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.State, r.Recipients, r.Summary)
	}
	return tw.Flush()
}

func showReport(out io.Writer, j *journal.Journal, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: run id %q: %w", errUsage, id, err)
	}
	r, err := j.Get(uid)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "run %s %s token %s distributor %s sender %s\n", r.ID, r.State, r.Token.Hex(), r.Distributor.Hex(), r.Sender.Hex())
	if r.Err != "" {
		fmt.Fprintf(out, "error: %s\n", r.Err)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BATCH\tSTATUS\tRECIPIENTS\tTX\tERROR")
	for _, b := range r.Batches {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", b.Index+1, b.Status, b.Recipients, b.TxHash, b.Err)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(out, r.Summary)
	return nil
}

func (a *app) journalPath() string {
	return config.JournalPath(a.cfg.DataDir)
}
