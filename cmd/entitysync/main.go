// Command entitysync loads entity CSV drops into a relational store,
// inserting new records and updating stale ones without ever overwriting a
// fresher row.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Ananya0222/entity-data-processor/internal/config"
	"github.com/Ananya0222/entity-data-processor/internal/metrics"
	"github.com/Ananya0222/entity-data-processor/internal/metrics/datadog"
	"github.com/Ananya0222/entity-data-processor/internal/metrics/prompush"

	// register all storage backends with the factory; the spec picks one at
	// runtime but the binary supports them all.
	_ "github.com/Ananya0222/entity-data-processor/internal/storage/all"
)

func main() {
	var (
		cfgPath        string
		inputDir       string
		pattern        string
		singleFile     string
		table          string
		encoding       string
		forceUpdate    bool
		validate       bool
		metricsBackend string
		pushGatewayURL string
		dogstatsdAddr  string
	)

	flag.StringVar(&cfgPath, "config", "", "run spec JSON path (built-in entity spec when empty)")
	flag.StringVar(&inputDir, "input-dir", "", "directory scanned for input files (overrides spec)")
	flag.StringVar(&pattern, "pattern", "", "filename glob, matched case-insensitively (overrides spec)")
	flag.StringVar(&singleFile, "file", "", "process exactly this file instead of scanning")
	flag.StringVar(&table, "table", "", "destination table (overrides spec)")
	flag.StringVar(&encoding, "encoding", "", "input character encoding (overrides spec)")
	flag.BoolVar(&forceUpdate, "force-update", false, "update existing records regardless of freshness")
	flag.BoolVar(&validate, "validate", false, "validate the run spec and exit")
	flag.StringVar(&metricsBackend, "metrics-backend", "", "metrics backend (pushgateway, datadog, none)")
	flag.StringVar(&pushGatewayURL, "pushgateway-url", "", "Pushgateway base URL (or env PUSHGATEWAY_URL)")
	flag.StringVar(&dogstatsdAddr, "dogstatsd-addr", "", "DogStatsD address (or env DOGSTATSD_ADDR)")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	spec := config.Default()
	if cfgPath != "" {
		var err error
		spec, err = config.Load(cfgPath)
		if err != nil {
			fatalf("load spec: %v", err)
		}
	}

	// Flags override the spec, env fills remaining gaps.
	if inputDir != "" {
		spec.Source.Dir = inputDir
	}
	if pattern != "" {
		spec.Source.Pattern = pattern
	}
	if singleFile != "" {
		spec.Source.File = singleFile
	}
	if table != "" {
		spec.Storage.DB.Table = table
	}
	if encoding != "" {
		spec.Source.Encoding = encoding
	}
	if forceUpdate {
		spec.ForceUpdate = true
	}
	if spec.Storage.DB.DSN == "" {
		spec.Storage.DB.DSN = os.Getenv("DATABASE_URL")
	}

	issues := config.ValidateSpec(spec)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		fatalf("run spec is invalid")
	}
	if validate {
		log.Printf("run spec is valid")
		return
	}

	setupMetrics(spec.Job, metricsBackend, pushGatewayURL, dogstatsdAddr, *verbose)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	start := time.Now()
	if err := run(context.Background(), spec, *verbose); err != nil {
		failRun(err)
		os.Exit(1)
	}
	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// setupMetrics resolves the metrics backend: flag, then env, then none.
func setupMetrics(job, name, gwURL, ddAddr string, verbose bool) {
	if name == "" {
		name = os.Getenv("METRICS_BACKEND")
	}

	switch name {
	case "pushgateway":
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(job, gwURL)
		if err != nil {
			log.Printf("metrics: pushgateway init failed: %v; metrics disabled", err)
			return
		}
		log.Printf("metrics: backend=pushgateway url=%s job=%s", gwURL, job)
		metrics.SetBackend(b)

	case "datadog":
		if ddAddr == "" {
			ddAddr = os.Getenv("DOGSTATSD_ADDR")
		}
		if ddAddr == "" {
			ddAddr = "127.0.0.1:8125"
		}
		b, err := datadog.NewBackend(datadog.Config{Addr: ddAddr, Namespace: "entitysync."})
		if err != nil {
			log.Printf("metrics: datadog init failed: %v; metrics disabled", err)
			return
		}
		log.Printf("metrics: backend=datadog addr=%s", ddAddr)
		metrics.SetBackend(b)

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled")
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", name)
	}
}

// failRun logs a run failure and flushes metrics before the caller exits.
// log.Fatalf would skip the flush, losing the failure-status stage metrics.
func failRun(err error) {
	log.Printf("%v", err)
	if ferr := metrics.Flush(); ferr != nil {
		log.Printf("metrics: flush error: %v", ferr)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
