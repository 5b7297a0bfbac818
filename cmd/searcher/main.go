// searcher is the standalone daemon: it wires every collaborator package
// into a running internal/engine.Engine, exposes Prometheus metrics and a
// health endpoint, and offers an offline subcommand to rebuild the
// sizing table.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/ed25519"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lux-mev/searcher/internal/bundle"
	"github.com/lux-mev/searcher/internal/config"
	"github.com/lux-mev/searcher/internal/engine"
	"github.com/lux-mev/searcher/internal/engine/wsingress"
	"github.com/lux-mev/searcher/internal/pipeline"
	"github.com/lux-mev/searcher/internal/poolcache"
	"github.com/lux-mev/searcher/internal/prefilter"
	"github.com/lux-mev/searcher/internal/relay"
	"github.com/lux-mev/searcher/internal/sizer"
	"github.com/lux-mev/searcher/internal/telemetry"
	"github.com/lux-mev/searcher/internal/wiretx"
)

const clientIdentifier = "searcher"

var app = &cli.App{
	Name:    clientIdentifier,
	Usage:   "MEV searcher: ingest, filter, size and submit bundles within a fixed time budget",
	Version: "1.0.0",
}

func init() {
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "log-file", Usage: "rotate logs to this path instead of stderr"},
		&cli.IntFlag{Name: "log-max-size-mb", Value: 100, Usage: "rotate log-file once it reaches this size"},
		&cli.IntFlag{Name: "log-max-backups", Value: 5, Usage: "number of rotated log-file generations to keep"},
		&cli.IntFlag{Name: "log-max-age-days", Value: 28, Usage: "days to retain rotated log-file generations"},
	}
	app.Before = func(c *cli.Context) error {
		log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(logWriter(c), log.LevelInfo, true)))
		return nil
	}
	app.Commands = []*cli.Command{
		runCommand,
		healthCommand,
		sizingTableCommand,
	}
}

// logWriter returns stderr, or a lumberjack-backed rotating file writer when
// --log-file is set, so a long-running daemon doesn't grow an unbounded log
// file on an operator's disk.
func logWriter(c *cli.Context) io.Writer {
	path := c.String("log-file")
	if path == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    c.Int("log-max-size-mb"),
		MaxBackups: c.Int("log-max-backups"),
		MaxAge:     c.Int("log-max-age-days"),
		Compress:   true,
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "start the searcher engine",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "path to a config file (env SEARCHER_* overrides apply regardless)"},
		&cli.StringFlag{Name: "pools", Usage: "path to a JSON pool-reserves file (poolcache.StaticProvider)", Required: true},
		&cli.StringFlag{Name: "signing-key", Usage: "hex-encoded ed25519 private key seed; a fresh key is generated if omitted"},
		&cli.StringSliceFlag{Name: "watch-program", Usage: "hex-encoded DEX program address to monitor (repeatable)"},
		&cli.Int64SliceFlag{Name: "watch-pool", Usage: "pool id to monitor (repeatable)"},
		&cli.StringFlag{Name: "sizing-table", Usage: "path to a precomputed sizing table; rebuilt in-process if omitted"},
		&cli.StringFlag{Name: "ingress-addr", Value: ":8090", Usage: "address the WebSocket ingress listens on"},
		&cli.StringFlag{Name: "metrics-addr", Value: ":9090", Usage: "address /metrics and /healthz are served on"},
	},
	Action: runEngine,
}

func runEngine(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	provider, err := poolcache.LoadStaticProvider(c.String("pools"))
	if err != nil {
		return err
	}
	pools, err := poolcache.New(cfg.PoolCacheCapacity, provider, cfg.RefreshMaxAge, 50*time.Millisecond)
	if err != nil {
		return err
	}

	filter, err := prefilter.New()
	if err != nil {
		return err
	}
	for _, id := range c.Int64Slice("watch-pool") {
		if err := filter.Add(uint64(id)); err != nil {
			return err
		}
	}
	for _, id := range provider.PoolIDs() {
		if err := filter.Add(id); err != nil {
			return err
		}
	}

	var firstProgram []byte
	registry := wiretx.NewProgramRegistry()
	for _, hexAddr := range c.StringSlice("watch-program") {
		addr, err := hex.DecodeString(hexAddr)
		if err != nil {
			return fmt.Errorf("watch-program %q: %w", hexAddr, err)
		}
		registry.Add(addr)
		if firstProgram == nil {
			firstProgram = addr
		}
	}

	tbl, err := loadOrBuildTable(c.String("sizing-table"))
	if err != nil {
		return err
	}
	sz, err := sizer.New(sizer.TableEstimator{Table: tbl})
	if err != nil {
		return err
	}

	signer, pub, err := loadOrGenerateSigner(c.String("signing-key"))
	if err != nil {
		return err
	}
	log.Info("searcher signing key ready", "pubkey", hex.EncodeToString(pub))

	target := firstProgram
	if target == nil {
		target = pub // no program configured; legs still need a well-formed target field
	}
	rawBuilder := bundle.NewWireRawBuilder(pub, target)
	builder := bundle.New(signer, rawBuilder, cfg.EnableSandwich && cfg.SimulationOnly)

	metrics := telemetry.New()

	var dispatcher *relay.Dispatcher
	if !cfg.SimulationOnly {
		clients := make([]relay.Client, 0, len(cfg.RelayURLs))
		for i, url := range cfg.RelayURLs {
			clients = append(clients, relay.NewHTTPClient(fmt.Sprintf("relay-%d", i), url, nil))
		}
		dispatcher, err = relay.New(clients, relay.DefaultTimeout, metrics)
		if err != nil {
			return err
		}
	}

	orchestrator := pipeline.New(registry, filter, pools, sz, builder, dispatcher, metrics, cfg)

	eng, err := engine.New(cfg, orchestrator, wsingress.NewServer(c.String("ingress-addr")), metrics, nil)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serveMetrics(c.String("metrics-addr"), metrics, eng)

	eng.Start(ctx)
	log.Info("searcher engine started", "workers", cfg.NumWorkers, "ingress", c.String("ingress-addr"))
	<-ctx.Done()
	log.Info("shutting down")
	eng.Stop()
	return nil
}

func serveMetrics(addr string, metrics *telemetry.Core, eng *engine.Engine) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promBridgeGatherer(metrics), promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status, err := eng.HealthCheck(r.Context())
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, "%v\n", status)
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server exited", "err", err)
		}
	}()
}

func promBridgeGatherer(metrics *telemetry.Core) *telemetry.PromBridge {
	return telemetry.NewPromBridge(metrics.Registry)
}

func loadOrBuildTable(path string) (*sizer.Table, error) {
	if path == "" {
		return sizer.Build(sizer.DefaultDims), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return sizer.Build(sizer.DefaultDims), nil
	}
	defer f.Close()
	tbl, err := sizer.ReadTable(f)
	if err != nil {
		log.Warn("sizing table unreadable, rebuilding in-process", "path", path, "err", err)
		return sizer.Build(sizer.DefaultDims), nil
	}
	return tbl, nil
}

func loadOrGenerateSigner(hexSeed string) (*bundle.Ed25519Signer, ed25519.PublicKey, error) {
	if hexSeed == "" {
		return bundle.GenerateEd25519Signer()
	}
	seed, err := hex.DecodeString(hexSeed)
	if err != nil {
		return nil, nil, fmt.Errorf("signing-key: %w", err)
	}
	key := ed25519.NewKeyFromSeed(seed)
	signer, err := bundle.NewEd25519Signer(key)
	if err != nil {
		return nil, nil, err
	}
	return signer, key.Public().(ed25519.PublicKey), nil
}

var healthCommand = &cli.Command{
	Name:      "health",
	Usage:     "query a running searcher's /healthz endpoint",
	ArgsUsage: "<metrics-addr, e.g. http://localhost:9090>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("health requires exactly one argument: the metrics server base URL")
		}
		resp, err := http.Get(c.Args().First() + "/healthz")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("engine reported unhealthy (status %d)", resp.StatusCode)
		}
		fmt.Println("ok")
		return nil
	},
}

var sizingTableCommand = &cli.Command{
	Name:  "sizing-table",
	Usage: "offline sizing-table tools",
	Subcommands: []*cli.Command{
		{
			Name:      "build",
			Usage:     "build a fresh sizing table and write it to disk",
			ArgsUsage: "<output path>",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "fee-tiers", Value: sizer.DefaultDims.FeeTiers},
				&cli.IntFlag{Name: "victim-bins", Value: sizer.DefaultDims.VictimBins},
				&cli.IntFlag{Name: "liquidity-bins", Value: sizer.DefaultDims.LiquidityBins},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return fmt.Errorf("sizing-table build requires exactly one argument: the output path")
				}
				dims := sizer.Dims{
					FeeTiers:      c.Int("fee-tiers"),
					VictimBins:    c.Int("victim-bins"),
					LiquidityBins: c.Int("liquidity-bins"),
				}
				tbl := sizer.Build(dims)

				f, err := os.Create(c.Args().First())
				if err != nil {
					return err
				}
				defer f.Close()
				if err := tbl.WriteTo(f); err != nil {
					return err
				}
				log.Info("sizing table built", "dims", dims, "path", c.Args().First())
				return nil
			},
		},
	},
}
