package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meridian.org/internal/authz"
	"meridian.org/internal/httpapi"
	"meridian.org/internal/obs"
	"meridian.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Without a DSN the service runs on the in-memory store. Useful for
	// demos and tests; production deployments set MERIDIAN_PG_DSN.
	var (
		store      authz.Store = authz.NewInMemory()
		readyProbe httpapi.ReadyProbe
		pgStore    *pg.Store
	)
	if dsn := os.Getenv("MERIDIAN_PG_DSN"); dsn != "" {
		var err error
		pgStore, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store = pgStore
		readyProbe = httpapi.ReadyProbe{DB: pgStore.DB()}
	}

	engine, err := authz.NewEngine(store)
	if err != nil {
		log.Fatalf("init engine: %v", err)
	}

	api := httpapi.New(readyProbe, version, engine)

	addr := os.Getenv("MERIDIAN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting meridian-api %s on %s", version, srv.Addr)

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
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}
