package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/bitfsorg/libairdrop-go/chain"
	"github.com/bitfsorg/libairdrop-go/config"
	"github.com/bitfsorg/libairdrop-go/loader"
	"github.com/bitfsorg/libairdrop-go/logger"
	"github.com/bitfsorg/libairdrop-go/plan"
	"github.com/bitfsorg/libairdrop-go/token"
	"github.com/bitfsorg/libairdrop-go/wallet"
)

// app carries the resolved settings shared by every command.
type app struct {
	log     *slog.Logger
	cfg     config.Config
	rpc     *chain.RPCConfig
	flags   *commonFlags
	environ map[string]string
}

type commonFlags struct {
	envFile     *string
	dataDir     *string
	network     *string
	rpcURL      *string
	chainID     *uint64
	token       *string
	distributor *string
	presale     *string
	batchSize   *int
	batchDelay  *time.Duration
	decimals    *int
	rate        *string
	fromBlock   *uint64
	logRange    *uint64
	logLevel    *string
	metricsAddr *string
	from        *string
	account     *uint32
	source      *string
	noColor     *bool
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	def := config.DefaultConfig()
	return &commonFlags{
		envFile:     fs.String("env-file", ".env", "dotenv file to load before reading AIRDROP_* variables"),
		dataDir:     fs.String("datadir", def.DataDir, "data directory for config, wallet and journal (or set AIRDROP_DATADIR)"),
		network:     fs.String("network", def.Network, "network preset: hyperevm, hyperevm-testnet, local (or set AIRDROP_NETWORK)"),
		rpcURL:      fs.String("rpc-url", "", "JSON-RPC endpoint, overrides the network preset (or set AIRDROP_RPC_URL)"),
		chainID:     fs.Uint64("chain-id", 0, "chain ID, overrides the network preset (or set AIRDROP_CHAIN_ID)"),
		token:       fs.String("token", "", "ERC20 token address (or set AIRDROP_TOKEN)"),
		distributor: fs.String("distributor", "", "distributor contract address (or set AIRDROP_DISTRIBUTOR)"),
		presale:     fs.String("presale", "", "presale contract address (or set AIRDROP_PRESALE)"),
		batchSize:   fs.Int("batch-size", def.BatchSize, "recipients per distribute() call (or set AIRDROP_BATCH_SIZE)"),
		batchDelay:  fs.Duration("batch-delay", def.BatchDelay, "pause between batches (or set AIRDROP_BATCH_DELAY)"),
		decimals:    fs.Int("decimals", def.Decimals, "token decimals (or set AIRDROP_DECIMALS)"),
		rate:        fs.String("rate", "", "tokens per whole contributed coin (or set AIRDROP_RATE)"),
		fromBlock:   fs.Uint64("from-block", 0, "first block to scan for contribution logs (or set AIRDROP_FROM_BLOCK)"),
		logRange:    fs.Uint64("log-range", def.LogRange, "blocks per eth_getLogs request (or set AIRDROP_LOG_RANGE)"),
		logLevel:    fs.String("loglevel", def.LogLevel, "debug, info, warn or error (or set AIRDROP_LOG_LEVEL)"),
		metricsAddr: fs.String("metrics-addr", "", "address to serve prometheus metrics on, empty to disable (or set AIRDROP_METRICS_ADDR)"),
		from:        fs.String("from", "", "node-managed account to send from via eth_sendTransaction instead of a local key"),
		account:     fs.Uint32("account", 0, "wallet account index, m/44'/60'/0'/0/<index>"),
		source:      fs.String("source", "view", "contribution source: view (getContributors) or logs (ContributionReceived events)"),
		noColor:     fs.Bool("no-color", false, "disable colored log output"),
	}
}

// newApp parses args and resolves settings with decreasing priority:
// flags, environment (including the dotenv file), config file, defaults.
func newApp(fs *flag.FlagSet, args []string, logOut io.Writer) (*app, error) {
	cf := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := godotenv.Load(*cf.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", *cf.envFile, err)
	}
	environ := environMap()

	dataDir := *cf.dataDir
	if v := environ["AIRDROP_DATADIR"]; v != "" && !fs.Changed("datadir") {
		dataDir = v
	}
	cfg, err := config.LoadConfig(config.ConfigPath(dataDir))
	if err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return nil, err
	}
	cfg.DataDir = dataDir
	if err := config.ApplyEnv(&cfg, environ); err != nil {
		return nil, err
	}
	applyFlags(fs, cf, &cfg)
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log := logger.New(logOut, level, *cf.noColor)

	rpc, err := chain.ResolveConfig(&chain.RPCConfig{URL: cfg.RPCURL, ChainID: cfg.ChainID}, environ, cfg.Network)
	if err != nil {
		return nil, err
	}

	return &app{log: log, cfg: cfg, rpc: rpc, flags: cf, environ: environ}, nil
}

func applyFlags(fs *flag.FlagSet, cf *commonFlags, cfg *config.Config) {
	if fs.Changed("datadir") {
		cfg.DataDir = *cf.dataDir
	}
	if fs.Changed("network") {
		cfg.Network = *cf.network
	}
	if fs.Changed("rpc-url") {
		cfg.RPCURL = *cf.rpcURL
	}
	if fs.Changed("chain-id") {
		cfg.ChainID = *cf.chainID
	}
	if fs.Changed("token") {
		cfg.Token = *cf.token
	}
	if fs.Changed("distributor") {
		cfg.Distributor = *cf.distributor
	}
	if fs.Changed("presale") {
		cfg.Presale = *cf.presale
	}
	if fs.Changed("batch-size") {
		cfg.BatchSize = *cf.batchSize
	}
	if fs.Changed("batch-delay") {
		cfg.BatchDelay = *cf.batchDelay
	}
	if fs.Changed("decimals") {
		cfg.Decimals = *cf.decimals
	}
	if fs.Changed("rate") {
		cfg.Rate = *cf.rate
	}
	if fs.Changed("from-block") {
		cfg.FromBlock = *cf.fromBlock
	}
	if fs.Changed("log-range") {
		cfg.LogRange = *cf.logRange
	}
	if fs.Changed("loglevel") {
		cfg.LogLevel = *cf.logLevel
	}
	if fs.Changed("metrics-addr") {
		cfg.MetricsAddr = *cf.metricsAddr
	}
}

func environMap() map[string]string {
	m := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}

func (a *app) rpcOptions() chain.RPCOptions {
	return chain.RPCOptions{Logger: a.log}
}

// reader returns a read-only client; no account is needed for eth_call.
func (a *app) reader() *chain.RPCClient {
	return chain.NewRPCClient(*a.rpc, common.Address{}, a.rpcOptions())
}

// signer returns the client that submits transactions. With --from the
// node or wallet bridge signs; otherwise a local key is loaded from
// AIRDROP_PRIVATE_KEY or the encrypted seed in the data directory.
func (a *app) signer(ctx context.Context) (chain.Client, func(), error) {
	if *a.flags.from != "" {
		if !common.IsHexAddress(*a.flags.from) {
			return nil, nil, fmt.Errorf("%w: --from %q", config.ErrInvalidAddress, *a.flags.from)
		}
		from := common.HexToAddress(*a.flags.from)
		a.log.Info("airdrop: using node-managed account", "from", from.Hex())
		return chain.NewRPCClient(*a.rpc, from, a.rpcOptions()), func() {}, nil
	}

	acct, err := a.account()
	if err != nil {
		return nil, nil, err
	}
	client, eth, err := chain.DialKeyed(ctx, *a.rpc, acct.PrivateKey, a.rpcOptions())
	if err != nil {
		return nil, nil, err
	}
	a.log.Info("airdrop: using local key", "address", acct.Address.Hex(), "path", acct.Path)
	return client, eth.Close, nil
}

func (a *app) account() (*wallet.Account, error) {
	if hexKey := a.environ["AIRDROP_PRIVATE_KEY"]; hexKey != "" {
		return wallet.AccountFromHex(hexKey)
	}
	seed, err := wallet.LoadSeed(a.seedPath(), a.environ["AIRDROP_PASSWORD"])
	if err != nil {
		return nil, err
	}
	w, err := wallet.NewWallet(seed)
	if err != nil {
		return nil, err
	}
	return w.DeriveAccount(*a.flags.account)
}

func (a *app) seedPath() string {
	return filepath.Join(a.cfg.DataDir, wallet.SeedFileName)
}

func (a *app) loader(r chain.Reader) (loader.Loader, error) {
	if err := config.Require(a.cfg, "presale"); err != nil {
		return nil, err
	}
	presale := common.HexToAddress(a.cfg.Presale)

	switch *a.flags.source {
	case "view":
		return &loader.ViewLoader{Logger: a.log, Reader: r, Presale: presale}, nil
	case "logs":
		return loader.NewLogLoader(loader.LogLoaderConfig{
			Logger:    a.log,
			Source:    a.reader(),
			Reader:    r,
			Presale:   presale,
			FromBlock: a.cfg.FromBlock,
			RangeSize: a.cfg.LogRange,
		})
	}
	return nil, fmt.Errorf("%w: unknown source %q", errUsage, *a.flags.source)
}

// buildPlan loads contributions and turns them into a batch plan. It
// refuses to continue when the configured decimals disagree with the
// token's own decimals().
func (a *app) buildPlan(ctx context.Context, r chain.Reader) (*plan.Plan, *loader.Result, error) {
	if err := config.Require(a.cfg, "token", "rate"); err != nil {
		return nil, nil, err
	}
	rate, err := plan.ParseRate(a.cfg.Rate)
	if err != nil {
		return nil, nil, err
	}

	tokenAddr := common.HexToAddress(a.cfg.Token)
	if onChain, err := token.Decimals(ctx, r, tokenAddr); err != nil {
		a.log.Warn("airdrop: could not read token decimals, using configured value", "decimals", a.cfg.Decimals, "error", err)
	} else if int(onChain) != a.cfg.Decimals {
		return nil, nil, fmt.Errorf("%w: configured %d but token reports %d", config.ErrInvalidDecimals, a.cfg.Decimals, onChain)
	}

	l, err := a.loader(r)
	if err != nil {
		return nil, nil, err
	}
	res, err := l.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !res.Complete() {
		a.log.Warn("airdrop: contribution data is incomplete", "skipped_ranges", len(res.SkippedRanges))
	}
	if res.TotalRaised != nil && res.TotalRaised.Cmp(res.Sum()) != 0 {
		a.log.Warn("airdrop: loaded contributions do not match totalRaised",
			"loaded", plan.FormatUnits(res.Sum(), plan.ContributionDecimals),
			"total_raised", plan.FormatUnits(res.TotalRaised, plan.ContributionDecimals))
	}

	entries, err := plan.Allocate(res.Contributions, rate, int32(a.cfg.Decimals))
	if err != nil {
		return nil, nil, err
	}
	p, err := plan.New(entries, a.cfg.BatchSize)
	if err != nil {
		return nil, nil, err
	}
	return p, res, nil
}
