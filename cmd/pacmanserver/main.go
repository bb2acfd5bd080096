// Command pacmanserver is the Pacman session server (spec §6, C8): it
// parses the positional CLI contract, wires up the registry/queue/worker
// pool, creates the registration FIFO, and runs until terminated.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pacmanist/pacmanserver/internal/introspection"
	"github.com/pacmanist/pacmanserver/internal/levelfile"
	"github.com/pacmanist/pacmanserver/internal/queue"
	"github.com/pacmanist/pacmanserver/internal/registrar"
	"github.com/pacmanist/pacmanserver/internal/registry"
	"github.com/pacmanist/pacmanserver/internal/worker"
	"github.com/pacmanist/pacmanserver/pkg/config"
	"github.com/pacmanist/pacmanserver/pkg/logging"
	"github.com/pacmanist/pacmanserver/pkg/metrics"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", "", "optional ambient config file (logging, report path, queue capacity, metrics address)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-config path] <levels_dir> <max_games> <register_pipe>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("pacmanserver %s (%s, %s)\n", version, commit, date)
		return
	}

	args := flag.Args()
	if len(args) != 3 {
		flag.Usage()
		os.Exit(1)
	}
	levelsDir := args[0]
	maxGames, err := strconv.Atoi(args[1])
	if err != nil || maxGames < 1 {
		fmt.Fprintln(os.Stderr, "max_games must be an integer >= 1")
		os.Exit(1)
	}
	registerPipe := args[2]

	cfg := config.Defaults()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load -config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger := logging.NewServiceLogger("pacmanserver", "lifecycle", cfg.Logging).
		With("pid", os.Getpid())

	reg := registry.New(maxGames)
	admissionQueue := queue.New(cfg.QueueCapacity)
	loader := levelfile.Loader{}
	mover := levelfile.Rules{}

	registryHandle := metrics.NewRegistry("pacmanserver", version, date, commit, logger)
	sessionMetrics := registryHandle.Session
	if cfg.MetricsAddr != "" {
		go func() {
			if err := registryHandle.StartMetricsServer(cfg.MetricsAddr); err != nil {
				logger.Warn("metrics server stopped", "err", err)
			}
		}()
	}

	signal.Ignore(syscall.SIGPIPE)

	if err := os.Remove(registerPipe); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to unlink stale register pipe: %v\n", err)
		os.Exit(1)
	}
	if err := syscall.Mkfifo(registerPipe, 0666); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create register pipe: %v\n", err)
		os.Exit(1)
	}

	regFD, err := os.OpenFile(registerPipe, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open register pipe: %v\n", err)
		os.Exit(1)
	}
	defer regFD.Close()

	for slot := 0; slot < maxGames; slot++ {
		w := &worker.Worker{
			Slot:     slot,
			Queue:    admissionQueue,
			Registry: reg,
			Loader:   loader,
			Mover:    mover,
			Logger:   logger,
			Metrics:  sessionMetrics,
		}
		go w.Run(context.Background())
	}

	reporter := introspection.New(reg, cfg.ReportPath, logger)
	reporter.OnReport(sessionMetrics.IncReportCycles)

	sigUSR1 := make(chan os.Signal, 1)
	signal.Notify(sigUSR1, syscall.SIGUSR1)
	go func() {
		for range sigUSR1 {
			if err := reporter.Report(); err != nil {
				logger.Warn("introspection report failed", "err", err)
			}
		}
	}()

	logger.Info("pacman session server started",
		"levels_dir", levelsDir, "max_games", maxGames, "register_pipe", registerPipe)

	loop := &registrar.Loop{
		Queue:    admissionQueue,
		LevelDir: levelsDir,
		Logger:   logger,
		Metrics:  sessionMetrics,
	}
	if err := loop.Run(context.Background(), regFD); err != nil {
		logger.Error("registrar loop exited", "err", err)
		os.Exit(1)
	}
}
