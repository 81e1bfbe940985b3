package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/matchpulse/internal/simulator"
	"github.com/okian/matchpulse/pkg/logger"
)

// Default configuration constants.
const (
	defaultSeed        = 42
	defaultHalfMinutes = 5
	defaultEventProb   = 0.4
	defaultTimeout     = 30 * time.Second
	defaultRunTimeout  = 2 * time.Hour
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		baseURL     = flag.String("url", "http://localhost:8080", "Base URL of the service")
		matchID     = flag.String("match", "sim-match-1", "Match ID")
		home        = flag.String("home", "Home FC", "Home team name")
		away        = flag.String("away", "Away FC", "Away team name")
		seed        = flag.Int64("seed", defaultSeed, "RNG seed for deterministic replay")
		halfMinutes = flag.Int("half-minutes", defaultHalfMinutes, "Minutes per half")
		eventProb   = flag.Float64("event-prob", defaultEventProb, "Probability of an event per minute (0-1)")
		delay       = flag.Duration("delay", 0, "Pause between posted events")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		noCreate    = flag.Bool("no-create", false, "Assume the match already exists")
		verbose     = flag.Bool("verbose", false, "Log every posted event")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulator.ShowHelp()
		return 0
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	config := &simulator.Config{
		BaseURL:          *baseURL,
		MatchID:          *matchID,
		HomeTeam:         *home,
		AwayTeam:         *away,
		Seed:             *seed,
		HalfMinutes:      *halfMinutes,
		EventProbability: *eventProb,
		Delay:            *delay,
		Timeout:          *timeout,
		Create:           !*noCreate,
		Verbose:          *verbose,
	}

	stats, err := simulator.Run(ctx, config)
	if err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return 1
	}
	if stats.EventsFailed > 0 {
		return 1
	}
	return 0
}
