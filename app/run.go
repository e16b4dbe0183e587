package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grounded/handlers"
	"grounded/utils"
)

// Run starts the HTTP server and the scheduler, then blocks until the
// process receives an interrupt.
func (a *App) Run() {
	mux := http.NewServeMux()
	handlers.Register(mux, a)

	server := &http.Server{
		Addr:    a.cfg.ListenAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("%s is listening on %s", a.cfg.BrandTitle, a.cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error starting server: %v", err)
		}
	}()

	a.scheduler.Start()

	if err := utils.LogInfo(a.cfg.WebhookURL, "system", "startup", "Server has started successfully."); err != nil {
		log.Printf("Failed to send startup notification: %v", err)
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	log.Println("Shutting down...")
	a.scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}
}
