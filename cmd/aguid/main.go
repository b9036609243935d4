package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/crypto/bcrypt"

	"github.com/coagents/aguid/internal/logging"
	"github.com/coagents/aguid/internal/retention"
	"github.com/coagents/aguid/internal/runtime"
	"github.com/coagents/aguid/internal/web"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		printUsage()
		return 1
	}

	switch os.Args[1] {
	case "start":
		return runStart()
	case "doctor":
		return runDoctor()
	case "hash-token":
		return runHashToken()
	case "version":
		fmt.Printf("aguid %s\n", version)
		return 0
	case "help", "-h", "--help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Println(`aguid - AG-UI mock agent gateway

Usage:
  aguid <command>

Commands:
  start       Start the server
  doctor      Run preflight diagnostics
  hash-token  Print the bcrypt hash of a token for auth_token_hash
  version     Print version
  help        Show this help`)
}

func runStart() int {
	cfg, db, err := bootstrap()
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup error: %v\n", err)
		return 1
	}
	defer db.Close()

	logWriter, err := logging.Setup(cfg.LogsDir(), cfg.LogMaxAgeDays)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging init error: %v\n", err)
		return 1
	}
	defer logWriter.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.RetentionEnabled {
		stop, err := retention.Start(ctx, cfg, db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "retention init error: %v\n", err)
			return 1
		}
		defer stop()
	}

	if err := web.Start(ctx, cfg, db, runtime.NewMock()); err != nil {
		fmt.Fprintf(os.Stderr, "runtime error: %v\n", err)
		return 1
	}
	return 0
}

func runDoctor() int {
	logging.SetupConsole()
	checks := doctorChecks()
	fmt.Print(formatChecks(checks))

	for _, c := range checks {
		if c.Status == "fail" {
			return 1
		}
	}
	return 0
}

func runHashToken() int {
	if len(os.Args) < 3 || os.Args[2] == "" {
		fmt.Fprintln(os.Stderr, "usage: aguid hash-token <token>")
		return 1
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(os.Args[2]), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hashing error: %v\n", err)
		return 1
	}
	fmt.Println(string(hash))
	return 0
}
