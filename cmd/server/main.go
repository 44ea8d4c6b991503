package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/secutel/netmanager/internal/api"
	"github.com/secutel/netmanager/internal/config"
	"github.com/secutel/netmanager/internal/crypto"
	"github.com/secutel/netmanager/internal/data"
	"github.com/secutel/netmanager/internal/sync"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Database
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancel()
		log.Fatalf("ping database: %v", err)
	}
	cancel()

	// 2. Credential vault
	vault, err := crypto.NewVault(cfg.SecretKey)
	if err != nil {
		log.Fatalf("vault: %v", err)
	}

	// 3. Site locking: Redis when configured, in-process otherwise
	var locker sync.SiteLocker = sync.NewLocalSiteLock()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis %s: %v", cfg.RedisAddr, err)
		}
		defer rdb.Close()
		locker = sync.NewRedisSiteLock(rdb)
		log.Printf("site locking via redis at %s", cfg.RedisAddr)
	}

	// 4. Event publishing, optional
	var publisher sync.EventPublisher
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL,
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second))
		if err != nil {
			log.Fatalf("nats %s: %v", cfg.NATSURL, err)
		}
		defer nc.Drain()
		publisher = sync.NewNATSPublisher(nc, sync.DefaultEventSubject)
		log.Printf("publishing events to %s", sync.DefaultEventSubject)
	}

	// 5. Probe tuning with live reload
	probeStore := config.NewProbeConfigStore(cfg.ProbeConfigPath)
	probeStore.Watch(ctx)

	// 6. Sync engine
	service := sync.NewService(data.NewGateway(db), vault, locker, sync.Options{
		Publisher:   publisher,
		ProbeConfig: probeStore.Get,
	})

	// 7. HTTP surface
	router := api.NewRouter(api.Deps{
		DB:          db,
		JobSecret:   cfg.JobSecret,
		Jobs:        api.NewJobHandler(service),
		Credentials: api.NewCredentialHandler(data.CredentialModel{DB: db}, vault),
		NVR: api.NewNVRHandler(
			data.CameraModel{DB: db},
			data.SyncLogModel{DB: db},
			data.EventModel{DB: db},
		),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("netmanager listening on %s", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server: %v", err)
	}
}
