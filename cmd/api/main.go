package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"alemkitap.org/internal/catalog"
	"alemkitap.org/internal/content"
	"alemkitap.org/internal/files"
	"alemkitap.org/internal/httpapi"
	"alemkitap.org/internal/obs"
	"alemkitap.org/internal/orders"
	pgstore "alemkitap.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	_ = godotenv.Load()

	// Инициализация observability (регистрация метрик, JSON-логгер и т.п.)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	dataDir := os.Getenv("ALEMKITAP_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}
	blobs, err := files.NewDir(dataDir)
	if err != nil {
		log.Fatalf("open data dir: %v", err)
	}

	deps := httpapi.Deps{Blobs: blobs}
	probe := httpapi.ReadyProbe{}

	var pg *pgstore.Store
	if dsn := os.Getenv("ALEMKITAP_PG_DSN"); dsn != "" {
		pg, err = pgstore.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		deps.Books = pg.Books()
		deps.Physical = pg.PhysicalBooks()
		deps.Purchases = pg.Purchases()
		probe.DB = pg.DB()
	} else {
		// Dev-режим без БД: всё в памяти.
		mem := catalog.NewInMemory()
		deps.Books = mem
		deps.Physical = mem.PhysicalBooks()
		deps.Purchases = mem.Purchases()
	}

	var tokens content.TokenStore
	if pg != nil {
		tokens = pg.Tokens()
	} else {
		memTokens := content.NewMemoryTokenStore()
		defer memTokens.Close()
		tokens = memTokens
	}

	deps.Content = content.NewService(
		deps.Purchases,
		catalog.FileLocators{Books: deps.Books},
		tokens,
		blobs,
	)

	var orderStore orders.Store
	if pg != nil {
		orderStore = pg.Orders()
	} else {
		orderStore = orders.NewInMemory()
	}
	deps.Orders = orders.NewService(orderStore, deps.Physical)

	// Фоновая чистка истёкших токенов в Postgres.
	reapDone := make(chan struct{})
	if pg != nil {
		go func() {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
					if n, err := pg.ReapExpiredTokens(ctx); err != nil {
						log.Printf("reap expired tokens: %v", err)
					} else if n > 0 {
						log.Printf("reaped %d expired access tokens", n)
					}
					cancel()
				case <-reapDone:
					return
				}
			}
		}()
	}

	api := httpapi.New(deps, probe, version)

	addr := os.Getenv("ALEMKITAP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second, // потоковая отдача PDF
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting alemkitap-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	close(reapDone)
	if pg != nil {
		_ = pg.Close()
	}
	log.Println("Stopped")
}
