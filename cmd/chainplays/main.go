package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/chainplays/chainplays/api"
	"github.com/chainplays/chainplays/console"
	"github.com/chainplays/chainplays/log"
	"github.com/chainplays/chainplays/service"
	"github.com/chainplays/chainplays/storage"
	"github.com/chainplays/chainplays/types"
	"github.com/chainplays/chainplays/vote"
	"github.com/chainplays/chainplays/web3"
	"github.com/chainplays/chainplays/web3/rpc"
)

func main() {
	// Load the .env file if it exists, flags still take precedence over
	// the defaults derived from it.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		panic(err)
	}

	w3rpc := flag.StringSlice("rpc", strings.Split(envOr("CHAINPLAYS_RPC", "http://localhost:8545"), ","),
		"web3 rpc endpoints, the first one must be reachable at startup")
	contract := flag.String("contract", envOr("CHAINPLAYS_CONTRACT", ""), "address of the voting contract")
	mode := flag.String("mode", envOr("CHAINPLAYS_MODE", "democracy"), "aggregation mode: democracy or chaos")
	window := flag.Duration("window", 3*time.Second, "democracy aggregation window")
	poll := flag.Duration("poll", time.Second, "event poll interval")
	backoff := flag.Duration("backoff", web3.DefaultBackoff, "retry delay after a failed poll cycle")
	warmup := flag.Int("warmup", 240, "emulator steps executed before accepting input")
	listen := flag.String("listen", envOr("CHAINPLAYS_LISTEN", "0.0.0.0:8080"), "host:port for the status API, empty disables it")
	dataDir := flag.String("datadir", envOr("CHAINPLAYS_DATADIR", defaultDataDir()), "directory for the journal database, empty for in-memory")
	scale := flag.Int("scale", 3, "display scale hint for the console")
	logLevel := flag.String("loglevel", envOr("CHAINPLAYS_LOGLEVEL", "info"), "log level (debug, info, warn, error)")
	flag.Parse()

	log.Init(*logLevel, "stdout", nil)

	strategy, err := vote.ParseStrategy(*mode)
	if err != nil {
		log.Fatal(err)
	}
	// Chaos reacts faster by default, unless the operator overrode the flags.
	if strategy == vote.StrategyChaos {
		if !flag.CommandLine.Changed("poll") {
			*poll = 500 * time.Millisecond
		}
		if !flag.CommandLine.Changed("backoff") {
			*backoff = time.Second
		}
	}
	if *contract == "" || !common.IsHexAddress(*contract) {
		log.Fatalf("missing or malformed contract address %q", *contract)
	}
	if len(*w3rpc) == 0 {
		log.Fatal("at least one rpc endpoint is required")
	}

	// The first endpoint must work, extra ones are best effort failover.
	pool := rpc.NewWeb3Pool()
	chainID, err := pool.AddEndpoint((*w3rpc)[0])
	if err != nil {
		log.Fatal(err)
	}
	for _, uri := range (*w3rpc)[1:] {
		if _, err := pool.AddEndpoint(uri); err != nil {
			log.Warnw("failed to add endpoint", "rpc", uri, "err", err)
		}
	}
	client, err := pool.Client(chainID)
	if err != nil {
		log.Fatal(err)
	}
	log.Infow("web3 pool ready", "chainId", chainID, "endpoints", pool.NumberOfEndpoints(chainID, false))

	listener, err := web3.NewMoveListener(client, common.HexToAddress(*contract), *backoff)
	if err != nil {
		log.Fatal(err)
	}

	var stg *storage.Storage
	if *dataDir != "" {
		database, err := metadb.New(db.TypePebble, *dataDir)
		if err != nil {
			log.Fatal(err)
		}
		stg = storage.New(database)
		defer stg.Close()
	}

	votes := make(chan *types.VoteEvent, 1024)
	queue := vote.NewActionQueue()

	agg, err := vote.NewAggregator(strategy, *window, votes, queue)
	if err != nil {
		log.Fatal(err)
	}
	monitor := service.NewVoteMonitor(listener, stg, *poll, votes)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := agg.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer agg.Stop()
	if err := monitor.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer monitor.Stop()

	if *listen != "" {
		host, port, err := splitListen(*listen)
		if err != nil {
			log.Fatal(err)
		}
		if _, err := api.New(&api.APIConfig{
			Host:       host,
			Port:       port,
			Storage:    monitor.Storage(),
			Queue:      queue,
			Aggregator: agg,
			Cursor:     monitor.Cursor,
		}); err != nil {
			log.Fatal(err)
		}
	}

	cfg := console.DefaultConfig(strategy)
	cfg.WarmupSteps = *warmup
	cfg.Scale = *scale
	applicator, err := console.NewApplicator(console.NewPrinter(), queue, cfg, monitor.Storage())
	if err != nil {
		log.Fatal(err)
	}

	// The applicator owns the console and runs on the main goroutine until
	// the console terminates or a signal cancels the context.
	if err := applicator.Run(ctx); err != nil {
		log.Fatal(err)
	}
	log.Infow("shutting down", "applied", applicator.Applied())
}

func splitListen(listen string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return "", 0, fmt.Errorf("malformed listen address %q: %w", listen, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("malformed listen port %q: %w", portStr, err)
	}
	return host, port, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".chainplays")
}
