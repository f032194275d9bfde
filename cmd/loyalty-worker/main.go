package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"bitbucket.org/taralabs/invoicing_backend/billing"
	"bitbucket.org/taralabs/invoicing_backend/config"
	"bitbucket.org/taralabs/invoicing_backend/workflow"
	"github.com/joho/godotenv"
)

// loyalty-worker drains the loyalty-event outbox. Invoice-serving processes
// only append events; this worker is the single place loyalty accrual
// actually runs.
func main() {
	godotenv.Load()

	config.ConnectDatabaseWithRetry()
	if os.Getenv("REDIS_ADDRESS") != "" {
		config.ConnectRedisWithRetry()
	}

	db := config.GetDB()
	logger := config.GetLogger()

	dispatcher := workflow.NewLoyaltyDispatcher(db, logger, billing.NoopLoyaltyService{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Println("shutting down loyalty worker")
		cancel()
	}()

	log.Printf("loyalty worker started (dispatcher=%s)", dispatcher.DispatcherID)
	dispatcher.Run(ctx)
	log.Println("loyalty worker stopped")
}
