package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fitpledge/auth"
	"fitpledge/cmd"
	"fitpledge/config"
	"fitpledge/database"

	log "github.com/sirupsen/logrus"
)

func main() {
	// Check for migration subcommands
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := handleMigrationCommand(); err != nil {
			log.Fatal("Migration error: ", err)
		}
		return
	}

	// Issue a bearer token for local testing and operator scripts
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := handleTokenCommand(); err != nil {
			log.Fatal("Token error: ", err)
		}
		return
	}

	// Normal server operation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	// Run the application
	if err := cmd.Run(ctx); err != nil {
		log.Fatal("Application error: ", err)
	}
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: fitpledge migrate [up|down|status] [args...]")
	}

	command := os.Args[2]
	switch command {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(os.Args) > 3 {
			steps = os.Args[3]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}

func handleTokenCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: fitpledge token user-id")
	}

	cfg := config.Get()
	token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTokenTTL).Generate(os.Args[2])
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
