// Command ctmonitor-demo polls a fleet of CT logs described by a YAML
// config file and prints the leaf certificate's issuer and DNS names for
// every new entry, mirroring original_source/examples/live_stream_domains.rs.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/x509"
	"github.com/prometheus/client_golang/prometheus"

	ctclient "github.com/nirvati/ctclient"
	"github.com/nirvati/ctclient/internal/config"
	"github.com/nirvati/ctclient/internal/statestore"
)

func main() {
	configPath := flag.String("config", "ctmonitor.yaml", "path to the fleet config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	registry := prometheus.NewRegistry()

	var wg sync.WaitGroup
	for _, logCfg := range cfg.Logs {
		logCfg := logCfg
		wg.Add(1)
		go func() {
			defer wg.Done()
			runLog(ctx, logCfg, registry)
		}()
	}
	wg.Wait()
}

func runLog(ctx context.Context, logCfg config.LogConfig, registry *prometheus.Registry) {
	logger := slog.Default().With("log", logCfg.Name)

	pubKeyDER, err := logCfg.PubKeyDER()
	if err != nil {
		logger.Error("bad public key", "error", err)
		return
	}

	metrics := ctclient.NewMetrics(registry, logCfg.Name)
	opts := []ctclient.Option{
		ctclient.WithLogger(logger),
		ctclient.WithMetrics(metrics),
	}

	backend, stateKey := backendFor(logCfg)

	var monitor *ctclient.Monitor
	if backend != nil {
		monitor, err = ctclient.LoadState(ctx, backend, stateKey, opts...)
		if err != nil {
			logger.Info("no saved state, starting from the log's latest tree head", "error", err)
		}
	}
	if monitor == nil {
		monitor, err = ctclient.NewFromLatestTreeHead(ctx, logCfg.BaseURL, pubKeyDER, opts...)
		if err != nil {
			logger.Error("initializing from latest tree head", "error", err)
			return
		}
	}

	handler := func(chain []*x509.Certificate) {
		leaf := chain[0]
		issuer := leaf.Issuer.CommonName
		if len(chain) > 1 {
			issuer = chain[1].Subject.CommonName
		}
		logger.Info("new leaf", "issuer", issuer, "dns_names", leaf.DNSNames)
	}

	ticker := time.NewTicker(logCfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := update(ctx, monitor, handler); err != nil {
			logger.Error("update failed", "error", err)
		} else if backend != nil {
			if err := monitor.SaveState(ctx, backend, stateKey); err != nil {
				logger.Error("saving state", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func update(ctx context.Context, m *ctclient.Monitor, handler ctclient.Handler) (*ct.SignedTreeHead, error) {
	return m.Update(ctx, handler)
}

func backendFor(logCfg config.LogConfig) (statestore.Backend, string) {
	if logCfg.StateBackend == nil {
		return nil, ""
	}
	const stateKey = "trust-state"
	switch {
	case logCfg.StateBackend.File != nil:
		b, err := statestore.NewFileBackend(logCfg.StateBackend.File.Dir)
		if err != nil {
			slog.Error("initializing file state backend", "log", logCfg.Name, "error", err)
			return nil, ""
		}
		return b, stateKey
	case logCfg.StateBackend.SQLite != nil:
		b, err := statestore.NewSQLiteBackend(logCfg.StateBackend.SQLite.Path)
		if err != nil {
			slog.Error("initializing sqlite state backend", "log", logCfg.Name, "error", err)
			return nil, ""
		}
		return b, stateKey
	case logCfg.StateBackend.S3 != nil, logCfg.StateBackend.DynamoDB != nil:
		// Constructing the AWS clients these backends wrap requires an
		// ambient AWS config (region, credentials); left to a fuller
		// deployment harness than this demo binary.
		slog.Warn("S3/DynamoDB state backends require an AWS-aware launcher; skipping persistence", "log", logCfg.Name)
		return nil, ""
	default:
		return nil, ""
	}
}
