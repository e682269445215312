// cmd/monitor/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gavinw575/plant-moisture-monitor/internal/api"
	"github.com/Gavinw575/plant-moisture-monitor/internal/auth"
	"github.com/Gavinw575/plant-moisture-monitor/internal/config"
	"github.com/Gavinw575/plant-moisture-monitor/internal/engine"
	"github.com/Gavinw575/plant-moisture-monitor/internal/source"
	"github.com/Gavinw575/plant-moisture-monitor/internal/storage"
	"github.com/Gavinw575/plant-moisture-monitor/internal/websocket"
)

// openADC is the hardware hook. The default build carries no converter
// driver, so the local variant degrades to a hardware-error state; a
// Pi-specific build replaces this with the real MCP3008 opener.
var openADC source.ADCOpener = func() (source.ADC, error) {
	return nil, errors.New("no ADC driver in this build")
}

func main() {
	configPath := flag.String("config", ".", "Path to the configuration file directory")
	flag.Parse()

	if err := config.LoadConfig(*configPath); err != nil {
		log.Printf("Error loading config, continuing with defaults: %v", err)
	}
	cfg := &config.AppConfig

	// --- Initialize Components ---
	store := config.NewStore(cfg.Monitor.ConfigFile, cfg.Monitor.SensorCount)
	memory := storage.NewMemoryStore()
	hub := websocket.NewHub()
	authMgr := auth.NewManager(cfg.Auth)

	sim := source.NewSimulated(time.Now().UnixNano())
	var src source.ReadingSource
	var ingest *source.NetworkIngest
	switch cfg.Monitor.Source {
	case "network":
		ingest = source.NewNetworkIngest(cfg.Monitor.ListenPort, cfg.Monitor.SensorCount, source.FillerPolicy(cfg.Monitor.Filler), sim)
		src = ingest
	case "simulated":
		src = sim
	default:
		src = source.NewLocalADC(openADC, cfg.Monitor.SensorCount)
	}

	tracker := engine.NewAlertTracker()
	dispatcher := engine.NewDispatcher(hub)
	monitor := engine.NewMonitor(store, src, dispatcher, tracker, memory)

	// --- Start Background Activities ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run()
	go dispatcher.Run(ctx)
	if ingest != nil {
		go ingest.Run(ctx)
	}

	monitorDone := make(chan struct{})
	go func() {
		monitor.Run(ctx)
		close(monitorDone)
	}()

	// --- HTTP Surface ---
	handler := api.NewHandler(store, memory, src, tracker, hub, authMgr)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: api.SetupRouter(handler, authMgr),
	}
	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.Server.HTTPPort)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// The monitor loop writes a final config save on its way out.
	select {
	case <-monitorDone:
	case <-time.After(10 * time.Second):
		log.Println("Timed out waiting for monitor loop to stop")
	}

	log.Println("Stopped.")
}
