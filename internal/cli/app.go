// Package cli wires the client together and exposes it as cobra commands.
package cli

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/maintsync/maintsync/internal/blob"
	"github.com/maintsync/maintsync/internal/config"
	"github.com/maintsync/maintsync/internal/metrics"
	"github.com/maintsync/maintsync/internal/netwatch"
	"github.com/maintsync/maintsync/internal/remote/httpapi"
	"github.com/maintsync/maintsync/internal/storage"
	"github.com/maintsync/maintsync/internal/storage/file"
	"github.com/maintsync/maintsync/internal/storage/sqlite"
	"github.com/maintsync/maintsync/internal/store"
	"github.com/maintsync/maintsync/internal/syncer"
	"github.com/maintsync/maintsync/internal/syncq"
)

const remoteTimeout = 10 * time.Second

// app is everything a command touches, built once per invocation.
type app struct {
	cfg     config.Config
	log     *zap.Logger
	store   *store.Store
	queue   *syncq.Queue
	remote  *httpapi.Client
	watcher *netwatch.Watcher
	prober  netwatch.Prober
	met     *metrics.Metrics
	syncer  *syncer.Synchronizer
	blobs   blob.Store

	closers []func() error
}

// openApp loads config, opens the storage backend and restores all durable
// state. The watcher and syncer are constructed but not started; commands
// decide whether they need background work.
func openApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &app{cfg: cfg, log: log}
	a.closers = append(a.closers, log.Sync)

	var adapter storage.Adapter
	switch cfg.Backend {
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.SQLitePath())
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		adapter = db
	default:
		fa, err := file.New(cfg.StateDir)
		if err != nil {
			a.Close()
			return nil, err
		}
		adapter = fa
	}

	a.queue = syncq.New(adapter, log)
	if err := a.queue.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.store = store.New(adapter, a.queue, log)
	if err := a.store.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if a.blobs, err = openBlobStore(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	a.remote = httpapi.New(cfg.AuthorityURL, cfg.TokenPath(), remoteTimeout, log)
	a.met = metrics.New()
	a.prober = netwatch.DialProber(cfg.ProbeAddr, remoteTimeout)
	a.watcher = netwatch.New(a.prober, cfg.ProbeEvery, log)
	a.syncer = syncer.New(a.queue, a.remote, a.watcher, a.met, log, cfg.SyncRetry)
	return a, nil
}

func openBlobStore(ctx context.Context, cfg config.Config) (blob.Store, error) {
	if cfg.S3.Bucket != "" {
		return blob.NewS3(ctx, blob.S3Options{
			Bucket:   cfg.S3.Bucket,
			Region:   cfg.S3.Region,
			Endpoint: cfg.S3.Endpoint,
			Prefix:   cfg.S3.Prefix,
		})
	}
	return blob.NewDir(filepath.Join(cfg.StateDir, "attachments"))
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// serveMetrics exposes the prometheus registry; used by the daemon command.
func (a *app) serveMetrics(ctx context.Context) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.met.Handler())
	srv := &http.Server{Addr: a.cfg.MetricsBind, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	return srv
}
