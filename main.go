package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides ADDR)")
	flag.Parse()

	cfg := LoadConfig()
	if *addr != "" {
		cfg.Addr = *addr
	}

	InitLogger(cfg.LogPath)
	defer SyncLogger()

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		Log.Fatalw("open database", "path", cfg.DBPath, "error", err)
	}
	defer db.Close()

	hub := NewHub(db, cfg)
	go hub.Run()
	go hub.Matchmaker().Run()

	mux := SetupRoutes(hub)
	server := &http.Server{Addr: cfg.Addr, Handler: mux}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		Log.Infow("server starting", "addr", cfg.Addr,
			"simulation_tps", cfg.SimulationTPS, "snapshot_tps", cfg.SnapshotTPS)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			Log.Fatalw("listen", "error", err)
		}
	}()

	<-stop
	Log.Info("shutting down")
	hub.Matchmaker().Stop()
	server.Close()
}
