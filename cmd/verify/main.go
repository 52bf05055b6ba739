// Command verify runs one integrity verification against the configured
// stores and prints the report as JSON.
//
// Usage:
//
//	verify -folder <id> -owner <id> [-deep] [-repair] [-no-storage]
//
// The exit status is 0 for a clean report, 1 when errors were found and 2
// when the run itself failed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"stowage/internal/app"
	"stowage/internal/config"
	models "stowage/internal/domain/models/storage"
	storageSvc "stowage/internal/domain/services/storage"

	"github.com/joho/godotenv"
)

func main() {
	folderID := flag.String("folder", "", "root folder of the subtree to verify")
	ownerID := flag.String("owner", "", "owner the verification runs as")
	configPath := flag.String("config", os.Getenv("STOWAGE_CONFIG"), "optional YAML config file")
	deep := flag.Bool("deep", false, "download and re-hash every object")
	repair := flag.Bool("repair", false, "apply automatic repairs")
	noStorage := flag.Bool("no-storage", false, "skip object store checks")
	flag.Parse()

	if *folderID == "" || *ownerID == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	// Reports go to stdout; keep logs off it.
	logger, closeLog, err := config.NewLoggerTo(cfg, os.Stderr)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		_ = application.Close()
		log.Fatalf("Failed to initialize services: %v", err)
	}

	opts := models.DefaultVerificationOptions()
	opts.DeepScan = *deep
	opts.AutoRepair = *repair
	opts.CheckStorage = !*noStorage

	report, err := application.Verification.Verify(ctx, &storageSvc.VerifyRequest{
		FolderID: *folderID,
		OwnerID:  *ownerID,
		Options:  opts,
	})
	_ = application.Close()
	_ = closeLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		os.Exit(2)
	}

	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")
	if err := out.Encode(report); err != nil {
		fmt.Fprintf(os.Stderr, "verify: encode report: %v\n", err)
		os.Exit(2)
	}

	os.Exit(exitCode(report))
}

func exitCode(report *models.VerificationReport) int {
	switch {
	case report.Status != models.VerificationCompleted:
		return 2
	case len(report.Results.Errors) > 0:
		return 1
	default:
		return 0
	}
}
