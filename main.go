package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EmpoweredVote/friches-map/internal/config"
	"github.com/EmpoweredVote/friches-map/internal/db"
	"github.com/EmpoweredVote/friches-map/internal/friches"
	"github.com/EmpoweredVote/friches-map/internal/server"
	"github.com/joho/godotenv"
)

func main() {
	cfgPath := flag.String("config", "friches.yml", "config file path")
	flag.Parse()

	_ = godotenv.Load(".env.local")

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	if cfg.Source == config.SourcePostgres {
		db.Connect(cfg.DatabaseURL, cfg.LogSQL)
		friches.Init()
	}

	opener := friches.NewOpener(cfg.FetchTimeout)
	src, err := server.NewSource(cfg, opener)
	if err != nil {
		log.Fatal(err)
	}

	svc := friches.NewService(src, server.Overlays(cfg), opener)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if _, err := svc.Reload(ctx); err != nil {
		log.Fatal("Failed to load dataset: ", err)
	}
	cancel()

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           server.NewRouter(cfg, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server listening on port :%s...", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
