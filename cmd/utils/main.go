package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/ordering/cmd/utils/internal/commands"
)

const (
	appName    = "ordering-utils"
	appVersion = "0.1.0"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	config, err := apt.LoadConfig("UTILS", os.Args[2:])
	if err != nil {
		log.Fatalf("Cannot load config: %v", err)
	}

	logLevel, _ := config.GetString("log.level")
	if logLevel == "" {
		logLevel = "info"
	}
	logger := apt.NewLogger(logLevel)

	ctx := context.Background()
	command := os.Args[1]

	switch command {
	case "seed-demo":
		if err := commands.SeedDemo(ctx, config, logger); err != nil {
			log.Fatalf("❌ Demo seeding failed: %v", err)
		}
		logger.Info("✅ Demo seeding completed successfully")

	case "clear-demo":
		if err := commands.ClearDemo(ctx, config, logger); err != nil {
			log.Fatalf("❌ Clear demo data failed: %v", err)
		}
		logger.Info("✅ Demo data cleared successfully")

	case "reset-db":
		if err := commands.ResetDB(ctx, config, logger); err != nil {
			log.Fatalf("❌ Database reset failed: %v", err)
		}
		logger.Info("✅ Database reset completed successfully")

	case "reconcile-tickets":
		if err := commands.ReconcileTickets(ctx, config, logger); err != nil {
			log.Fatalf("❌ Ticket reconciliation failed: %v", err)
		}
		logger.Info("✅ Ticket reconciliation completed successfully")

	case "version":
		fmt.Printf("%s version %s\n", appName, appVersion)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - Ordering utility commands

Usage:
  %s <command> [options]

Commands:
  seed-demo          Apply demo seeding (menu items, a display and a printer)
  clear-demo         Clear demo tenant data and its seed records
  reset-db           Drop the ordering database (USE WITH CAUTION)
  reconcile-tickets  Enqueue kitchen tickets for orders that have none
  version            Print version information
  help               Show this help message

Environment Variables:
  UTILS_DB_MONGO_URL          MongoDB connection URL (default: mongodb://localhost:27017)
  UTILS_DB_MONGO_NAME         Database name (default: ordering)
  UTILS_SEEDING_TENANT        Tenant used by seed-demo and clear-demo (default: demo)
  UTILS_RECONCILE_TENANTS     Comma separated tenants for reconcile-tickets (default: all)
  UTILS_LOG_LEVEL             Log level: debug, info, warn, error (default: info)

Examples:
  %s seed-demo
  UTILS_RECONCILE_TENANTS=t-1,t-2 %s reconcile-tickets
  UTILS_DB_MONGO_URL=mongodb://localhost:27017 %s reset-db

`, appName, appName, appName, appName, appName)
}
