// Command chainsim runs a proof-of-work network simulation from the command
// line. Profiles pick a chain economy and a transaction workload; individual
// flags override any profile field.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cryptoecon/chainsim/api"
	"github.com/cryptoecon/chainsim/config"
	"github.com/cryptoecon/chainsim/simulator"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "chainsim:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	def := config.Default()

	flags := pflag.NewFlagSet("chainsim", pflag.ContinueOnError)
	configFile := flags.String("config", "", "YAML configuration file")
	chain := flags.String("chain", "", "chain profile: "+strings.Join(config.ChainNames(), ", "))
	workload := flags.String("workload", "", "workload profile: "+strings.Join(config.WorkloadNames(), ", "))
	nodes := flags.Int("nodes", def.Nodes, "number of network nodes")
	neighbors := flags.Int("neighbors", def.Neighbors, "neighbor links per node")
	miners := flags.Int("miners", def.Miners, "number of miners")
	hashrate := flags.Float64("hashrate", def.Hashrate, "nominal per-miner hashrate")
	blocktime := flags.Float64("blocktime", def.BlockTime, "target block time in seconds")
	difficulty := flags.Float64("difficulty", 0, "initial difficulty, 0 derives the baseline")
	reward := flags.Float64("reward", def.Reward, "block reward")
	halving := flags.Int("halving", def.Halving, "blocks between reward halvings, 0 disables")
	wallets := flags.Int("wallets", 0, "number of wallets")
	transactions := flags.Int("transactions", 0, "transactions per wallet")
	interval := flags.Float64("interval", def.Interval, "transaction generation interval in seconds")
	blocksize := flags.Int("blocksize", def.BlockSize, "maximum transactions per block")
	blocks := flags.Int("blocks", 0, "stop after this many blocks, 0 for no limit")
	years := flags.Float64("years", def.Years, "simulated years, used when --blocks is unset")
	printInterval := flags.Int("print", def.PrintInterval, "blocks between report lines")
	seed := flags.Int64("seed", 0, "random seed, 0 derives one from the clock")
	traceFile := flags.String("trace", "", "transaction trace file (.json or .csv)")
	output := flags.String("output", "", "write a results JSON file on completion")
	serve := flags.String("serve", "", "serve the HTTP API on this address, e.g. :8080")
	debug := flags.BoolP("debug", "d", false, "enable debug logging")

	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()

	if *chain != "" {
		p, err := config.Chain(strings.ToUpper(*chain))
		if err != nil {
			return err
		}
		cfg.ApplyChain(p)
	}
	if *workload != "" {
		p, err := config.Workload(strings.ToUpper(*workload))
		if err != nil {
			return err
		}
		cfg.ApplyWorkload(p)
	}

	if *configFile != "" {
		v := viper.New()
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", *configFile, err)
		}
		if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) { dc.TagName = "json" }); err != nil {
			return fmt.Errorf("parse config %s: %w", *configFile, err)
		}
	}

	// Explicit flags win over profiles and the config file.
	if flags.Changed("nodes") {
		cfg.Nodes = *nodes
	}
	if flags.Changed("neighbors") {
		cfg.Neighbors = *neighbors
	}
	if flags.Changed("miners") {
		cfg.Miners = *miners
	}
	if flags.Changed("hashrate") {
		cfg.Hashrate = *hashrate
	}
	if flags.Changed("blocktime") {
		cfg.BlockTime = *blocktime
	}
	if flags.Changed("difficulty") {
		cfg.Difficulty = *difficulty
	}
	if flags.Changed("reward") {
		cfg.Reward = *reward
	}
	if flags.Changed("halving") {
		cfg.Halving = *halving
	}
	if flags.Changed("wallets") {
		cfg.Wallets = *wallets
	}
	if flags.Changed("transactions") {
		cfg.Transactions = *transactions
	}
	if flags.Changed("interval") {
		cfg.Interval = *interval
	}
	if flags.Changed("blocksize") {
		cfg.BlockSize = *blocksize
	}
	if flags.Changed("print") {
		cfg.PrintInterval = *printInterval
	}
	if flags.Changed("years") {
		cfg.Years = *years
	}
	if flags.Changed("blocks") {
		cfg.Blocks = *blocks
	} else if flags.Changed("years") {
		cfg.Blocks = cfg.BlocksForYears(*years)
	}
	cfg.Seed = *seed
	cfg.Debug = *debug

	if err := cfg.Finalize(); err != nil {
		return err
	}

	log, err := newLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	sim := simulator.New(cfg, log)
	if *traceFile != "" {
		if err := sim.LoadTrace(*traceFile); err != nil {
			return err
		}
	}

	if *serve != "" {
		srv := api.NewServer(sim, log)
		go func() {
			if err := srv.Run(*serve); err != nil {
				log.Error("api server failed", zap.Error(err))
			}
		}()
	}

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupts
		log.Warn("interrupt received, stopping")
		sim.Stop()
	}()

	if err := sim.Run(); err != nil {
		return err
	}

	if *output != "" {
		return sim.ExportJSON(*output)
	}
	return nil
}

// newLogger keeps the console quiet enough that report lines stay readable;
// debug mode opens the full log stream.
func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}
