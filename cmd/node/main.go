// Command node runs the gossip-connected proof-of-work blockchain
// node: it loads genesis, opens its bbolt-backed stores, starts the
// mining coordinator, and serves the WebSocket gossip endpoint,
// mirroring the shape of the teacher's app/services/node/main.go.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/acem702/powchain/internal/blockchain/genesis"
	"github.com/acem702/powchain/internal/blockchain/gossip"
	"github.com/acem702/powchain/internal/blockchain/signature"
	"github.com/acem702/powchain/internal/blockchain/state"
	"github.com/acem702/powchain/internal/blockchain/storage"
	"github.com/acem702/powchain/internal/blockchain/worker"
	"github.com/acem702/powchain/internal/logger"
	"github.com/ardanlabs/conf/v3"
	"go.uber.org/zap"
)

var build = "develop"

func main() {
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			Port            string        `conf:"default:0.0.0.0:9080"`
		}
		Node struct {
			MyAddress          string   `conf:"default:ws://127.0.0.1:9080"`
			Peers              []string `conf:"default:"` // e.g. "ws://0.0.0.0:9081;ws://0.0.0.0:9082"
			PrivateKey         string   `conf:""`
			DBPath             string   `conf:"default:zblock/node.db"`
			GenesisPath        string   `conf:""`
			EnableMining       bool     `conf:"default:false"`
			EnableChainRequest bool     `conf:"default:false"`
			EnableLogging      bool     `conf:"default:false"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "powchain node",
		},
	}

	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Blockchain support

	privateKey, err := loadOrGenerateKey(cfg.Node.PrivateKey, cfg.Node.DBPath)
	if err != nil {
		return fmt.Errorf("private key: %w", err)
	}

	gen, err := genesis.Load(cfg.Node.GenesisPath)
	if err != nil {
		return fmt.Errorf("loading genesis: %w", err)
	}

	kv, err := storage.OpenBolt(cfg.Node.DBPath)
	if err != nil {
		return fmt.Errorf("opening node database: %w", err)
	}
	defer kv.Close()

	ev := func(v string, args ...any) {
		log.Infow(fmt.Sprintf(v, args...))
	}

	st, err := state.New(state.Config{
		Genesis:            gen,
		KV:                 kv,
		MinerKey:           privateKey,
		EnableMining:       cfg.Node.EnableMining,
		EnableLogging:      cfg.Node.EnableLogging,
		EnableChainRequest: cfg.Node.EnableChainRequest,
		EvHandler:          ev,
	})
	if err != nil {
		return fmt.Errorf("starting state: %w", err)
	}

	// =========================================================================
	// Gossip support

	server := gossip.New(cfg.Node.MyAddress, st, ev)

	w := worker.Run(st, server, ev)
	defer w.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server.DialSeeds(cfg.Node.Peers)
	go server.RunSync(ctx)

	httpServer := http.Server{
		Addr:         cfg.Web.Port,
		Handler:      server,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Infow("startup", "status", "gossip listener started", "host", httpServer.Addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("gossip server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		cancel()
		server.Shutdown()

		ctx, cancelShut := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelShut()

		if err := httpServer.Shutdown(ctx); err != nil {
			httpServer.Close()
			return fmt.Errorf("could not stop gossip listener gracefully: %w", err)
		}
	}

	return nil
}

// loadOrGenerateKey returns the configured private key, or generates
// and persists a fresh one alongside dbPath when none was configured,
// per spec.md §6's "generated if absent" PRIVATE_KEY note.
func loadOrGenerateKey(hexKey, dbPath string) (*signature.PrivateKey, error) {
	if hexKey != "" {
		return signature.KeyFromHex(hexKey)
	}

	keyPath := dbPath + ".ecdsa"
	if key, err := signature.LoadKey(keyPath); err == nil {
		return key, nil
	}

	key, err := signature.GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := signature.SaveKey(keyPath, key); err != nil {
		return nil, err
	}
	return key, nil
}
