package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"retailetl/internal/config"
	"retailetl/internal/ingest"
	"retailetl/internal/metrics"
	"retailetl/internal/metrics/datadog"
	"retailetl/internal/metrics/prompush"
	"retailetl/internal/pipeline"
	"retailetl/internal/scripts"
	"retailetl/internal/stage"
	"retailetl/internal/storage"

	// register all backends with the storage factory.
	_ "retailetl/internal/storage/all"
)

// main loads configuration from flags and environment, optionally sets up a
// metrics backend, and runs one full load.
func main() {
	validate := flag.Bool("validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	cfg, err := config.Load()
	if err != nil {
		fatalf("config: %v", err)
	}
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid")
		os.Exit(1)
	}
	if *validate {
		log.Printf("Configuration is valid")
		os.Exit(0)
	}

	rec, flush := newRecorder(cfg, *verbose)
	defer flush()

	dsn, err := cfg.ConnString()
	if err != nil {
		fatalf("%v", err)
	}

	ctx := context.Background()
	start := time.Now()

	if *verbose {
		log.Printf("pipeline: driver=%s staging=%s fact=%s csv=%s sql=%s backends=%s",
			cfg.StorageKind(), cfg.StagingTable, cfg.FactTable, cfg.CSVFolder, cfg.SQLFolder,
			strings.Join(storage.Kinds(), ","))
	}

	db, err := storage.Open(ctx, cfg.StorageKind(), dsn)
	if err != nil {
		fatalf("open %s: %v", cfg.StorageKind(), err)
	}

	res, err := pipeline.Run(ctx, cfg, db, rec)
	if cerr := db.Close(ctx); cerr != nil {
		log.Printf("storage: close error: %v", cerr)
	}
	if err != nil {
		flush()
		fatalf("%s", describe(err, res))
	}

	if *verbose {
		for _, f := range res.Files {
			log.Printf("input: %s", f)
		}
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// newRecorder builds the configured metrics recorder and a flush func that
// is safe to call more than once.
func newRecorder(cfg *config.Config, verbose bool) (*metrics.Recorder, func()) {
	var b metrics.Backend
	switch cfg.MetricsBackend {
	case "pushgateway":
		pb, err := prompush.NewBackend(cfg.Job, cfg.PushgatewayURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			break
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", cfg.PushgatewayURL, cfg.MetricsBackend, cfg.Job)
		b = pb
	case "datadog":
		dd, err := datadog.NewBackend(datadog.Config{
			Addr:      cfg.DogStatsDAddr,
			Namespace: "retail.",
		})
		if err != nil {
			log.Printf("metrics: failed to init dogstatsd backend: %v; using nop", err)
			break
		}
		log.Printf("metrics: addr=%v, backend=%v, job_name=%v", cfg.DogStatsDAddr, cfg.MetricsBackend, cfg.Job)
		b = dd
	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", cfg.MetricsBackend)
		}
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", cfg.MetricsBackend)
	}

	rec := metrics.New(b, cfg.Job)
	flushed := false
	return rec, func() {
		if flushed {
			return
		}
		flushed = true
		if err := rec.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

// describe renders a run failure with the detail an operator needs first.
func describe(err error, res *pipeline.Result) string {
	var (
		rie *stage.RowIsolationError
		be  *stage.BatchError
		se  *scripts.Error
		sm  *ingest.SchemaMismatchError
		ni  *ingest.NoInputError
	)
	switch {
	case errors.As(err, &rie):
		msg := fmt.Sprintf("load failed: %v (bad_rows=%d attempted=%d)", rie, len(rie.Report.Rows), rie.Report.Attempted)
		if res != nil && res.SkipLog != "" {
			msg += "; see " + res.SkipLog
		}
		return msg
	case errors.As(err, &be):
		return fmt.Sprintf("load failed without an isolated bad row: %v", be)
	case errors.As(err, &se):
		return fmt.Sprintf("script failed: %v", se)
	case errors.As(err, &sm), errors.As(err, &ni):
		return fmt.Sprintf("input error: %v", err)
	default:
		return err.Error()
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
