package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linkflow-ai/taskengine/internal/engine"
	"github.com/linkflow-ai/taskengine/internal/executor"
	"github.com/linkflow-ai/taskengine/internal/platform/config"
	"github.com/linkflow-ai/taskengine/internal/platform/logger"
	"github.com/linkflow-ai/taskengine/internal/platform/metrics"
)

const serviceName = "taskengine"

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("taskengine: config load failed: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("starting "+serviceName,
		"cpu_bound_count", cfg.CPUBoundCount, "io_bound_count", cfg.IOBoundCount)

	reg := prometheus.NewRegistry()
	met := metrics.New(reg)

	exec := executor.NewFileExecutor()
	eng := engine.New(cfg, exec, log, met)

	if err := eng.Start(); err != nil {
		log.Error("engine failed to start", "error", err.Error())
		os.Exit(1)
	}

	router := mux.NewRouter()
	router.HandleFunc("/status", statusHandler(eng)).Methods(http.MethodGet)
	router.Handle("/metrics", met.Handler()).Methods(http.MethodGet)

	httpServer := &http.Server{
		Addr:         cfg.MetricsAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("status server error", "error", err.Error())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutdown signal received")

	if err := eng.Shutdown(); err != nil {
		log.Error("engine shutdown error", "error", err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("status server shutdown error", "error", err.Error())
	}
}

func statusHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(eng.GetStatus())
	}
}
