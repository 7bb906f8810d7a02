package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/analytics-workspace/internal/application"
	"github.com/bryanwahyu/analytics-workspace/internal/application/oauth"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/auth"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/dashboards"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/oplog"
	mysqlp "github.com/bryanwahyu/analytics-workspace/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/analytics-workspace/internal/infra/db/postgres"
	"github.com/bryanwahyu/analytics-workspace/internal/infra/httpserver"
	"github.com/bryanwahyu/analytics-workspace/internal/infra/oauthstate"
	minioStore "github.com/bryanwahyu/analytics-workspace/internal/infra/storage"
	"github.com/bryanwahyu/analytics-workspace/internal/middleware"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the workspace HTTP backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	var health []middleware.Dependency

	// journal
	var journal oplog.Repository
	switch cfg.Journal.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return err
		}
		defer db.Close()
		if err := mysqlp.EnsureSchema(ctx, db); err != nil {
			return err
		}
		journal = mysqlp.NewJournalRepository(db)
		health = append(health, middleware.Dependency{Name: "journal", Checker: &middleware.DatabaseHealthChecker{DB: db}})
	case "postgres":
		db, err := pgp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return err
		}
		defer db.Close()
		if err := pgp.EnsureSchema(ctx, db); err != nil {
			return err
		}
		journal = pgp.NewJournalRepository(db)
		health = append(health, middleware.Dependency{Name: "journal", Checker: &middleware.DatabaseHealthChecker{DB: db}})
	}

	// oauth state
	var states auth.StateStore = oauthstate.NewMemoryStore()
	if cfg.Redis.Addr != "" {
		rdb, err := oauthstate.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		states = oauthstate.NewRedisStore(rdb)
		health = append(health, middleware.Dependency{
			Name:    "redis",
			Checker: middleware.CheckFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		})
	}

	// snapshot dashboard ke minio kalau dikonfigurasi
	var snapshots dashboards.SnapshotStore
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return err
		}
		snapshots = store
		// dashboards still save without snapshots
		health = append(health, middleware.Dependency{Name: "minio", Checker: middleware.CheckFunc(store.Check), Optional: true})
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillRate)
	defer limiter.Stop()

	srv := httpserver.New(httpserver.Deps{
		Backend:   a.client,
		Snapshots: snapshots,
		Journal:   journal,
		OAuth: &oauth.Service{
			States:      states,
			Provider:    a.client,
			Credentials: a.creds,
			RedirectURI: cfg.OAuth.RedirectURI,
			StateTTL:    cfg.OAuth.StateTTL,
		},
		RateLimiter:    limiter,
		Health:         health,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		SessionTTL:     cfg.Server.SessionTTL,
		Clock:          application.SystemClock{},
		Log:            a.log,
	})
	go srv.Sessions().Run(ctx, time.Minute)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:        addr,
		Handler:     srv.Handler(),
		ReadTimeout: 15 * time.Second,
		// analysis calls can take as long as the remote timeout
		WriteTimeout: cfg.Remote.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", addr).Str("remote", a.client.BaseURL()).Str("journal", cfg.Journal.Driver).Msg("server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.Wrap(err, "server error")
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
