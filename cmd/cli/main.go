package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yourorg/stockcast/internal/bootstrap"
	"github.com/yourorg/stockcast/internal/infrastructure/logger"
	"github.com/yourorg/stockcast/pkg/config"
)

var errUsage = errors.New("invalid usage")

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]
	if command == "help" || command == "-h" || command == "--help" {
		printUsage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.New(ctx, cfg, log, "stockcast-cli")
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}

	err = run(ctx, &cli{rt: rt, out: os.Stdout}, command, args)
	_ = rt.Close(context.Background())
	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, c *cli, command string, args []string) error {
	if _, err := c.rt.Session.Start(ctx); err != nil {
		return err
	}

	switch command {
	case "auth":
		return c.handleAuth(ctx, args)
	case "upload":
		return c.handleUpload(ctx, args)
	case "predict":
		return c.handlePredict(ctx, args)
	case "transfers":
		return c.transfers(ctx)
	case "item":
		return c.handleItem(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		return errUsage
	}
}

func printUsage() {
	fmt.Print(`Stockcast CLI

Usage:
  stockcast <command> [options]

Commands:
  auth       Session (register, login, logout, status)
  upload     Dataset upload (inventory, sales)
  predict    Forecasts (generate, show)
  transfers  Inter-store transfer suggestions
  item       Inventory items (add, update, delete)
  help       Show this help message

Environment Variables:
  STOCKCAST_API_URL     Backend origin (default: http://localhost:5000)
  STOCKCAST_PASSWORD    Password for auth login/register when -password is omitted
  SESSION_STORE         file, redis or memory (default: file)

Examples:
  stockcast auth register -store S1 -password secret
  stockcast auth login -store S1 -password secret
  stockcast upload inventory -file inventory.csv
  stockcast predict generate
  stockcast predict show -json
  stockcast item update -id A123 -stock 42
`)
}
