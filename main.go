package main

import (
	"log"
	"os"

	"grounded/app"
	"grounded/config"
	"grounded/utils/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, os.ModePerm); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	db, err := database.Init(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Error initializing database: %v", err)
	}

	a, err := app.New(cfg, db)
	if err != nil {
		log.Fatalf("Error creating app: %v", err)
	}

	a.Run()

	defer a.Close()
}
