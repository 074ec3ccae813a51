package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/blocksync/chain/app/services/node/handlers"
	"github.com/blocksync/chain/foundation/blockchain/database"
	"github.com/blocksync/chain/foundation/blockchain/database/storage/bolt"
	"github.com/blocksync/chain/foundation/blockchain/genesis"
	"github.com/blocksync/chain/foundation/blockchain/peer"
	"github.com/blocksync/chain/foundation/blockchain/state"
	"github.com/blocksync/chain/foundation/blockchain/worker"
	"github.com/blocksync/chain/foundation/events"
	"github.com/blocksync/chain/foundation/logger"
	"github.com/blocksync/chain/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
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
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			PrivateHost     string        `conf:"default:0.0.0.0:9080"`
		}
		State struct {
			BeneficiaryName  string        `conf:"default:miner1"`
			AccountsFolder   string        `conf:"default:zblock/accounts/"`
			GenesisPath      string        `conf:"default:zblock/genesis.json"`
			DBPath           string        `conf:"default:zblock/blocks.db"`
			SelectStrategy   string        `conf:"default:tip"`
			Consensus        string        `conf:"default:pow"`
			MaxReorgDepth    uint64        `conf:"default:100"`
			MaxTimestampSkew time.Duration `conf:"default:2m"`
			OrphanBufferSize int           `conf:"default:128"`
			SeedNodes        []string      `conf:"flag:seed-nodes"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
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

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Blockchain Support

	// Load the genesis file to get the starting balances and the chain
	// parameters. A default file is created on first start.
	gen, err := genesis.Load(cfg.State.GenesisPath)
	if err != nil {
		return fmt.Errorf("unable to load genesis file: %w", err)
	}

	// Load the private key file for the configured beneficiary so the
	// account can get credited with mining rewards and tips. The key is
	// generated on first start.
	privateKey, err := loadNodeKey(cfg.State.AccountsFolder, cfg.State.BeneficiaryName)
	if err != nil {
		return fmt.Errorf("unable to load private key for node: %w", err)
	}

	// The name service maps local account ids to the name of their key file
	// so log output stays readable.
	ns, err := nameservice.New(cfg.State.AccountsFolder)
	if err != nil {
		return fmt.Errorf("unable to load account name service: %w", err)
	}
	for accountID, name := range ns.Copy() {
		log.Infow("startup", "status", "known account", "name", name, "account", accountID)
	}

	// A peer set is a collection of known nodes in the network so blocks
	// and transactions can be shared. Starting with no seed nodes is valid,
	// the node runs standalone until peers announce themselves.
	peerSet := peer.NewPeerSet(peer.Config{})
	peerSet.Bootstrap(cfg.State.SeedNodes)

	// The blockchain packages accept a function of this signature to allow
	// the application to log. These raw messages are also sent to any
	// websocket client connected through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// The storage engine owns the durable copy of the chain.
	engine, err := bolt.New(cfg.State.DBPath)
	if err != nil {
		return fmt.Errorf("unable to open block storage: %w", err)
	}

	// The state value represents the blockchain node and manages the
	// blockchain database and provides an API for application support.
	st, err := state.New(state.Config{
		BeneficiaryID:    database.PublicKeyToAccountID(privateKey.PublicKey),
		Host:             cfg.Web.PrivateHost,
		Genesis:          gen,
		Engine:           engine,
		SelectStrategy:   cfg.State.SelectStrategy,
		ConsensusRule:    cfg.State.Consensus,
		MaxReorgDepth:    cfg.State.MaxReorgDepth,
		MaxTimestampSkew: cfg.State.MaxTimestampSkew,
		OrphanBufferSize: cfg.State.OrphanBufferSize,
		KnownPeers:       peerSet,
		EvHandler:        ev,
	})
	if err != nil {
		return err
	}
	defer st.Shutdown()

	// The worker package implements the different workflows such as chain
	// syncing, mining, and the sharing of transactions and blocks. The
	// worker registers itself with the state.
	worker.Run(st, ev)

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the
	// debug related endpoints. This includes the standard library endpoints.
	debugMux := handlers.DebugMux(build, log)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		Evts:     evts,
	})

	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Start Private Service

	log.Infow("startup", "status", "initializing V1 private API support")

	privateMux := handlers.PrivateMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
	})

	private := http.Server{
		Addr:         cfg.Web.PrivateHost,
		Handler:      privateMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "private api router started", "host", private.Addr)
		serverErrors <- private.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancelPri := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPri()

		log.Infow("shutdown", "status", "shutdown private API started")
		if err := private.Shutdown(ctx); err != nil {
			private.Close()
			return fmt.Errorf("could not stop private service gracefully: %w", err)
		}

		ctx, cancelPub := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPub()

		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}

// loadNodeKey loads the beneficiary's private key, generating and saving a
// new one on first start.
func loadNodeKey(folder string, name string) (*ecdsa.PrivateKey, error) {
	path := filepath.Join(folder, fmt.Sprintf("%s.ecdsa", name))

	if _, err := os.Stat(path); err == nil {
		return crypto.LoadECDSA(path)
	}

	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, err
	}
	if err := crypto.SaveECDSA(path, privateKey); err != nil {
		return nil, err
	}

	return privateKey, nil
}
