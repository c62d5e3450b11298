package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jmoiron/sqlx"

	"github.com/nanocl-io/nanocld/infrastructure/logging"
	"github.com/nanocl-io/nanocld/infrastructure/metrics"
	"github.com/nanocl-io/nanocld/internal/config"
	"github.com/nanocl-io/nanocld/internal/eventbus"
	"github.com/nanocl-io/nanocld/internal/httpapi"
	"github.com/nanocl-io/nanocld/internal/lifecycle"
	"github.com/nanocl-io/nanocld/internal/model"
	"github.com/nanocl-io/nanocld/internal/nodestore"
	"github.com/nanocl-io/nanocld/internal/objects/cargo"
	"github.com/nanocl-io/nanocld/internal/objects/job"
	"github.com/nanocl-io/nanocld/internal/objects/namespace"
	"github.com/nanocl-io/nanocld/internal/objects/resource"
	"github.com/nanocl-io/nanocld/internal/objects/resourcekind"
	"github.com/nanocl-io/nanocld/internal/objects/secret"
	"github.com/nanocl-io/nanocld/internal/objects/vm"
	"github.com/nanocl-io/nanocld/internal/objstatus"
	"github.com/nanocl-io/nanocld/internal/platform/database"
	"github.com/nanocl-io/nanocld/internal/platform/migrations"
	"github.com/nanocl-io/nanocld/internal/registry"
	"github.com/nanocl-io/nanocld/internal/runtime"
	"github.com/nanocl-io/nanocld/internal/secretcrypto"
	"github.com/nanocl-io/nanocld/internal/spechistory"
	"github.com/nanocl-io/nanocld/internal/store"
	"github.com/nanocl-io/nanocld/internal/taskmanager"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides NANOCL_HTTP_ADDR)")
	runMigrations := flag.Bool("migrate", true, "run embedded database migrations on startup")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if trimmed := strings.TrimSpace(*addr); trimmed != "" {
		cfg.Server.HTTPAddr = trimmed
	}

	logr := logging.New("nanocld", cfg.Log.Level, cfg.Log.Format)

	rootCtx := context.Background()

	sqlDB, err := database.Open(rootCtx, cfg.DB.DSN)
	if err != nil {
		logr.WithError(err).Fatal("connect to postgres")
	}
	defer sqlDB.Close()
	configurePool(sqlDB, cfg)

	if *runMigrations && cfg.DB.MigrateOnBoot {
		if err := migrations.Apply(rootCtx, sqlDB); err != nil {
			logr.WithError(err).Fatal("apply migrations")
		}
	}

	gw := store.NewGateway(sqlx.NewDb(sqlDB, "postgres"), cfg.DB.MaxOpenConns)

	specs := spechistory.New(gw)
	statuses := objstatus.New(gw)
	namespaces := namespace.New(gw)
	nodes := nodestore.New(gw)

	bus := eventbus.New(gw, eventbus.Config{
		ChannelCapacity: cfg.Events.ChannelCapacity,
		Retention:       cfg.Events.Retention,
		SweepInterval:   cfg.Events.SweepInterval,
	})
	if err := bus.Start(rootCtx); err != nil {
		logr.WithError(err).Fatal("start event bus")
	}

	adapter := runtime.NewDev()
	box := loadSecretBox(cfg)

	reg := registry.New()
	reg.Register(cargo.New(adapter))
	reg.Register(vm.New(adapter))
	reg.Register(job.New(adapter))
	reg.Register(secret.New(box))
	reg.Register(resourcekind.New())
	reg.Register(resource.New(resourceKindLookup(specs)))

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New("nanocld")
	}

	tasks := taskmanager.New()
	engine := lifecycle.New(reg, gw, specs, statuses, bus, tasks, lifecycle.ReconcileConfig{
		BackoffBase: cfg.Reconcile.BackoffBase,
		BackoffMax:  cfg.Reconcile.BackoffMax,
		MaxAttempts: cfg.Reconcile.MaxAttempts,
	}, cfg.Server.NodeName, lifecycle.WithMetrics(m))

	if err := nodes.Register(rootCtx, model.Node{
		Name:        cfg.Server.NodeName,
		HostGateway: cfg.Server.HostGateway,
	}); err != nil {
		logr.WithError(err).Warn("register node")
	}

	router := httpapi.NewRouter(&httpapi.Server{
		Engine:     engine,
		Bus:        bus,
		Specs:      specs,
		Namespaces: namespaces,
		Nodes:      nodes,
		Runtime:    adapter,
		Log:        logr,
		Metrics:    m,
		NodeName:   cfg.Server.NodeName,
		StateDir:   cfg.Server.StateDir,
	})

	srv := &http.Server{
		Addr:    httpAddrOf(cfg),
		Handler: router,
	}

	go func() {
		logr.WithField("addr", srv.Addr).Info("nanocld listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.WithError(err).Fatal("serve http")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.WithError(err).Error("http shutdown")
	}
	bus.Stop()
}

// httpAddrOf strips the daemon's primary NANOCL_LISTEN unix-socket address
// since http.Server needs a TCP address; NANOCL_HTTP_ADDR is the one this
// binary actually binds.
func httpAddrOf(cfg *config.Config) string {
	addr := strings.TrimSpace(cfg.Server.HTTPAddr)
	if addr == "" {
		return "127.0.0.1:8585"
	}
	return addr
}

func configurePool(db *sql.DB, cfg *config.Config) {
	if cfg.DB.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	}
	if cfg.DB.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	}
	if cfg.DB.ConnMaxIdle > 0 {
		db.SetConnMaxIdleTime(cfg.DB.ConnMaxIdle)
	}
}

// loadSecretBox builds the Secret object kind's encryption box from
// NANOCL_SECRET_MASTER_KEY. In development, an absent key is tolerated by
// minting an ephemeral one for the life of the process; cfg.Validate
// already rejects an absent key in production.
func loadSecretBox(cfg *config.Config) *secretcrypto.Box {
	key := strings.TrimSpace(cfg.Secrets.MasterKeyHex)
	if key == "" {
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			log.Fatalf("generate ephemeral secret key: %v", err)
		}
		key = hex.EncodeToString(raw)
		log.Println("WARNING: NANOCL_SECRET_MASTER_KEY not set; using an ephemeral key for this process only")
	}
	box, err := secretcrypto.NewBox([]byte(key))
	if err != nil {
		log.Fatalf("initialise secret box: %v", err)
	}
	return box
}

// resourceKindLookup adapts spechistory's latest-spec lookup into the
// resource.KindLookup a Resource capability validates against, keeping
// internal/objects/resource ignorant of internal/spechistory's storage
// shape.
func resourceKindLookup(specs *spechistory.Store) resource.KindLookup {
	return func(ctx context.Context, kindKey string) (*model.ResourceKindSpecPartial, error) {
		spec, err := specs.Latest(ctx, kindKey)
		if err != nil {
			return nil, err
		}
		var partial model.ResourceKindSpecPartial
		if err := json.Unmarshal(spec.Data, &partial); err != nil {
			return nil, err
		}
		return &partial, nil
	}
}
