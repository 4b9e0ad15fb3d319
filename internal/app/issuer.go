package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atlas-sanctum/vrc-issuer/internal/config"
	"github.com/atlas-sanctum/vrc-issuer/internal/issuer"
	"github.com/atlas-sanctum/vrc-issuer/internal/logger"
	"github.com/atlas-sanctum/vrc-issuer/internal/metrics"
	"github.com/atlas-sanctum/vrc-issuer/internal/requests"
	"github.com/atlas-sanctum/vrc-issuer/internal/storage"
	"github.com/atlas-sanctum/vrc-issuer/pkg/atlas"
	"github.com/atlas-sanctum/vrc-issuer/pkg/publishers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Version is stamped into the client User-Agent. Overridden at build time.
var Version = "dev"

const shutdownTimeout = 5 * time.Second

// Issuer represents the batch issuance runtime. It owns the Atlas client, the
// dedupe store, the publisher fanout and the metrics endpoint, and runs the
// issue loop over the requests file.
type Issuer struct {
	cfg        *config.Config
	client     *atlas.Client
	fanout     *publishers.Fanout
	service    *issuer.Service
	store      storage.Store
	metrics    *metrics.IssuerMetrics
	registry   *prometheus.Registry
	metricsSrv *metrics.Server
	interval   time.Duration
	log        logger.Logger
}

// NewIssuer builds an issuer runtime from config.
func NewIssuer(ctx context.Context, cfg *config.Config, log logger.Logger) (*Issuer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := NewClient(cfg, log)
	if err != nil {
		return nil, err
	}

	// Fail fast on a broken requests file; it is re-read on every pass.
	reqReg, err := requests.LoadRegistry(cfg.RequestsFile)
	if err != nil {
		return nil, fmt.Errorf("load requests registry: %w", err)
	}
	log.InfoObj("requests registry loaded", "requests_meta", map[string]any{
		"path":    reqReg.Path(),
		"count":   len(reqReg.All()),
		"enabled": len(reqReg.Enabled()),
	})

	fanout, err := buildFanout(ctx, cfg.PublishersFile, log)
	if err != nil {
		return nil, err
	}

	storeOpts := storage.Options{
		RequestTTL:      cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	}
	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storeOpts)
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"request_ttl_seconds":      int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.NewIssuerMetrics(reg)
	if err != nil {
		_ = store.Close()
		_ = fanout.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	var pub issuer.EventPublisher
	if fanout.Size() > 0 {
		pub = fanout
	}
	service := issuer.NewService(client, pub, store, log, issuer.Options{
		Concurrency: cfg.IssueConcurrency,
		Metrics:     m,
	})

	is := &Issuer{
		cfg:      cfg,
		client:   client,
		fanout:   fanout,
		service:  service,
		store:    store,
		metrics:  m,
		registry: reg,
		interval: cfg.IssueInterval,
		log:      log,
	}

	if cfg.MetricsAddr != "" {
		srv, err := metrics.Listen(cfg.MetricsAddr, reg, log)
		if err != nil {
			_ = is.Close()
			return nil, err
		}
		is.metricsSrv = srv
		go srv.Serve()
	}

	return is, nil
}

// NewClient builds the Atlas client described by cfg.
func NewClient(cfg *config.Config, log logger.Logger) (*atlas.Client, error) {
	client, err := atlas.New(cfg.AtlasBaseURL, cfg.AtlasAPIKey,
		atlas.WithTimeout(cfg.AtlasTimeout),
		atlas.WithUserAgent(fmt.Sprintf("%s/%s", cfg.AppName, Version)),
		atlas.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("init atlas client: %w", err)
	}
	log.InfoObj("atlas client ready", "atlas_client", map[string]any{
		"issue_url":   client.IssueURL(),
		"has_api_key": client.HasAPIKey(),
		"timeout":     cfg.AtlasTimeout.String(),
	})
	return client, nil
}

// buildFanout loads the optional publishers registry. An empty path yields an
// empty fanout.
func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	if path == "" {
		log.InfoObj("no publishers file configured; events disabled", "publishers_file", path)
		return publishers.NewFanout(nil), nil
	}
	publisherReg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := publisherReg.Enabled()
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubClients), nil
}

// Gatherer exposes the runtime's metrics registry.
func (i *Issuer) Gatherer() prometheus.Gatherer { return i.registry }

// Client returns the Atlas client the runtime issues through.
func (i *Issuer) Client() *atlas.Client { return i.client }

// MetricsAddr returns the bound metrics address, or "" when disabled.
func (i *Issuer) MetricsAddr() string {
	if i == nil || i.metricsSrv == nil {
		return ""
	}
	return i.metricsSrv.Addr()
}

// Run performs a pass immediately and then every issue interval until the
// context is cancelled. Failed passes are logged and the loop keeps going.
func (i *Issuer) Run(ctx context.Context) error {
	if i == nil || i.service == nil {
		return fmt.Errorf("issuer is not initialized")
	}

	i.log.InfoObj("issuer loop starting", "issuer_state", map[string]any{
		"requests_file":    i.cfg.RequestsFile,
		"publishers_count": i.fanout.Size(),
		"issue_interval":   i.interval.String(),
		"concurrency":      i.cfg.IssueConcurrency,
	})

	if _, err := i.RunOnce(ctx); err != nil {
		i.log.ErrorObj("initial issue pass failed", "error", err)
	}

	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			i.log.InfoObj("issuer loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if _, err := i.RunOnce(ctx); err != nil {
				i.log.ErrorObj("scheduled issue pass failed", "error", err)
			}
		}
	}
}

// RunOnce re-reads the requests file and issues every enabled request not yet
// recorded in the store.
func (i *Issuer) RunOnce(ctx context.Context) (issuer.Summary, error) {
	if i == nil || i.service == nil {
		return issuer.Summary{}, fmt.Errorf("issuer is not initialized")
	}

	reqReg, err := requests.LoadRegistry(i.cfg.RequestsFile)
	if err != nil {
		return issuer.Summary{}, fmt.Errorf("reload requests registry: %w", err)
	}
	reqs := reqReg.Enabled()
	if len(reqs) == 0 {
		i.log.WarnObj("no enabled requests; nothing to issue", "requests_file", i.cfg.RequestsFile)
		return issuer.Summary{}, nil
	}

	start := time.Now()
	i.log.InfoObj("issue pass started", "issue_pass", map[string]any{
		"requests_count": len(reqs),
		"started_at":     start.UTC(),
	})
	summary, err := i.service.Run(ctx, reqs)
	i.updateTracked()
	i.log.InfoObj("issue pass completed", "issue_pass", map[string]any{
		"requests_count": len(reqs),
		"issued":         summary.Issued,
		"rejected":       summary.Rejected,
		"failed":         summary.Failed,
		"skipped":        summary.Skipped,
		"elapsed_ms":     time.Since(start).Milliseconds(),
	})
	return summary, err
}

func (i *Issuer) updateTracked() {
	counter, ok := i.store.(storage.Counter)
	if !ok {
		return
	}
	n, err := counter.Len()
	if err != nil {
		i.log.WarnObj("tracked request count failed", "error", err)
		return
	}
	i.metrics.SetTrackedRequests(n)
}

// Close stops the metrics server and releases the store and publishers.
func (i *Issuer) Close() error {
	if i == nil {
		return nil
	}
	var errs []error
	if i.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := i.metricsSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
		}
		cancel()
	}
	if i.fanout != nil {
		if err := i.fanout.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publishers close: %w", err))
		}
	}
	if i.store != nil {
		if err := i.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		i.log.ErrorObj("issuer close failed", "error", err)
	}
	return err
}
