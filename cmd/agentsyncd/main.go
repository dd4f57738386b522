package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/luxfi/agentsync/agent"
	"github.com/luxfi/agentsync/config"
	"github.com/luxfi/agentsync/coordinator"
	"github.com/luxfi/agentsync/gossip"
	"github.com/luxfi/agentsync/memstore"
	"github.com/luxfi/agentsync/obs"
	"github.com/luxfi/agentsync/ratelimit"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "agentsyncd: %v\n", err)
		os.Exit(2)
	}
}

func rootCmd() *cobra.Command {
	var (
		agentID         string
		agentName       string
		replicaID       string
		listenAddr      string
		sidecarAddr     string
		peers           []string
		backendName     string
		snapshotDir     string
		allowFromScratch bool
	)

	cmd := &cobra.Command{
		Use:   "agentsyncd",
		Short: "Runs the agent-state synchronization core: gossip, anti-entropy, and long-term memory promotion.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := config.LoadFromOSEnv(obs.NewStdoutLogger(zapcore.InfoLevel))
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			rt.Sync.SnapshotDir = firstNonEmpty(snapshotDir, rt.Sync.SnapshotDir)
			rt.Sync.AllowRecoverFromScratch = rt.Sync.AllowRecoverFromScratch || allowFromScratch

			level, err := zapcore.ParseLevel(rt.LogLevel)
			if err != nil {
				return fmt.Errorf("config: invalid LOG_LEVEL %q: %w", rt.LogLevel, err)
			}
			log := obs.NewStdoutLogger(level)
			obs.SetDefault(log)
			metrics := obs.NewMetrics(prometheus.DefaultRegisterer)

			return run(runParams{
				agentID:         agentID,
				agentName:       agentName,
				replicaID:       replicaID,
				listenAddr:      listenAddr,
				sidecarAddr:     sidecarAddr,
				peers:           peers,
				backendName:     backendName,
				runtime:         rt,
				log:             log,
				metrics:         metrics,
			})
		},
	}

	cmd.Flags().StringVar(&agentID, "agent-id", "", "agent identifier this replica serves (required)")
	cmd.Flags().StringVar(&agentName, "agent-name", "agent", "agent display name, used only on first run")
	cmd.Flags().StringVar(&replicaID, "replica-id", "", "this replica's identifier (required, unique per process)")
	cmd.Flags().StringVar(&listenAddr, "listen-addr", ":7946", "address to serve the gossip ingress endpoint on")
	cmd.Flags().StringVar(&sidecarAddr, "sidecar-addr", "", "address to serve the rate-limiter HTTP sidecar on (empty disables it)")
	cmd.Flags().StringArrayVar(&peers, "peer", nil, "peer in id=http://host:port form; may be repeated")
	cmd.Flags().StringVar(&backendName, "backend", "memory", "long-term memory backend name (null, memory)")
	cmd.Flags().StringVar(&snapshotDir, "snapshot-dir", "", "directory for state snapshots (overrides SYNC config default)")
	cmd.Flags().BoolVar(&allowFromScratch, "allow-recover-from-scratch", false, "proceed with fresh state if the snapshot is corrupt")
	_ = cmd.MarkFlagRequired("agent-id")
	_ = cmd.MarkFlagRequired("replica-id")

	return cmd
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

type runParams struct {
	agentID, agentName, replicaID string
	listenAddr, sidecarAddr       string
	peers                         []string
	backendName                   string
	runtime                       config.Runtime
	log                           obs.Logger
	metrics                       *obs.Metrics
}

func run(p runParams) error {
	registry := memstore.NewRegistry()
	backend, err := registry.Select(p.backendName)
	if err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := backend.Initialize(ctx); err != nil {
		p.log.Warn("backend initialization failed; promotions will be retried", obs.Err(err))
	}

	limiter := ratelimit.New(p.runtime.RateLimit, p.metrics, p.log)

	transport := newHTTPTransport(5 * time.Second)
	engine := gossip.New(p.replicaID, p.runtime.Gossip, transport, gossip.Callbacks{}, limiter, p.metrics, p.log)

	initial := agent.Create(p.agentID, p.agentName, p.replicaID, time.Now().UnixMilli())
	coord := coordinator.New(initial, engine, limiter, backend, p.runtime.Sync, p.metrics, p.log)
	engine.SetCallbacks(coord.Callbacks())

	if p.runtime.Sync.SnapshotDir != "" {
		if err := coord.LoadSnapshot(p.runtime.Sync.SnapshotDir, p.runtime.Sync.AllowRecoverFromScratch); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
	}

	for _, spec := range p.peers {
		id, endpoint, ok := strings.Cut(spec, "=")
		if !ok {
			return fmt.Errorf("invalid --peer %q: want id=endpoint", spec)
		}
		coord.RegisterPeer(gossip.Peer{ID: id, Endpoint: endpoint})
	}

	mux := http.NewServeMux()
	mux.Handle("/gossip", gossipIngressHandler(engine))
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: p.listenAddr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			p.log.Error("gossip ingress server stopped", obs.Err(err))
		}
	}()

	var sidecarServer *http.Server
	if p.sidecarAddr != "" {
		sidecar := newRateLimitSidecar(limiter)
		sidecarServer = &http.Server{Addr: p.sidecarAddr, Handler: sidecar.mux()}
		go func() {
			if err := sidecarServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				p.log.Error("rate-limit sidecar stopped", obs.Err(err))
			}
		}()
	}

	coord.Start(ctx, coordinator.Intervals{
		Gossip:      time.Duration(p.runtime.Gossip.IntervalMs) * time.Millisecond,
		AntiEntropy: time.Duration(p.runtime.Gossip.AntiEntropyIntervalMs) * time.Millisecond,
		Promotion:   time.Duration(p.runtime.Sync.SnapshotIntervalMs) * time.Millisecond,
		Snapshot:    time.Duration(p.runtime.Sync.SnapshotIntervalMs) * time.Millisecond,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	p.log.Info("shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	if sidecarServer != nil {
		_ = sidecarServer.Shutdown(shutdownCtx)
	}

	if err := coord.Stop(); err != nil {
		return fmt.Errorf("snapshot on shutdown: %w", err)
	}
	return nil
}
