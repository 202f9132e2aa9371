// Command tally extracts and reconciles a batch of invoice transcripts
// and writes the results as JSON.
//
// Each input is a JSON transcript ({"text": ..., "fragments": [...]}) or a
// JSON string of raw text. A sibling file named with the guesses suffix
// supplies upstream field guesses for its transcript.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/JaimeStill/tally/internal/config"
)

type options struct {
	in            string
	out           string
	rates         string
	workers       int
	guessesSuffix string
	configDir     string
}

func main() {
	var opts options
	flag.StringVar(&opts.in, "in", "", "Transcript file or directory of *.json transcripts")
	flag.StringVar(&opts.out, "out", "-", "Results file (- for stdout)")
	flag.StringVar(&opts.rates, "rates", "", "HSN rate CSV (overrides rates.csv_path)")
	flag.IntVar(&opts.workers, "workers", 0, "Concurrent documents (defaults to pipeline.workers)")
	flag.StringVar(&opts.guessesSuffix, "guesses-suffix", ".guesses.json", "Suffix of per-transcript guesses files")
	flag.StringVar(&opts.configDir, "config", ".", "Directory holding config.toml")
	flag.Parse()

	if opts.in == "" {
		fmt.Fprintln(os.Stderr, "usage: tally -in <dir|file> [-out results.json] [-rates hsn.csv] [-workers N]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatal("env file load failed: ", err)
	}

	cfg, err := config.LoadFrom(opts.configDir)
	if err != nil {
		log.Fatal("config load failed: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var w io.Writer = os.Stdout
	if opts.out != "-" {
		f, err := os.Create(opts.out)
		if err != nil {
			log.Fatal("create output failed: ", err)
		}
		defer f.Close()
		w = f
	}

	start := time.Now()
	summary, err := run(ctx, cfg, opts, w, logger)
	if err != nil {
		logger.Error("batch failed", "error", err)
		os.Exit(1)
	}

	logger.Info(
		"batch complete",
		"documents", summary.Documents,
		"flagged", summary.Flagged,
		"failed", summary.Failed,
		"duration", time.Since(start),
	)
}
