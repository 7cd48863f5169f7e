package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/davidahmann/txnscore/internal/ingest"
	"github.com/davidahmann/txnscore/internal/pipeline"
	"github.com/davidahmann/txnscore/internal/policy"
	"github.com/davidahmann/txnscore/internal/schema"
)

func main() {
	exitFn(run(os.Args, os.Stdout, os.Stderr))
}

var exitFn = os.Exit

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	switch args[1] {
	case "run":
		return handleRun(args[2:], stdout, stderr)
	case "generate":
		return handleGenerate(args[2:], stdout, stderr)
	case "policy":
		return handlePolicy(args[2:], stdout, stderr)
	default:
		usage(stderr)
		return 2
	}
}

// handleRun scores a local file of records and prints the reports.
func handleRun(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	policyPath := fs.String("policy", envOrDefault("TXNSCORE_POLICY_PATH", ""), "policy file (defaults built in)")
	batchID := fs.String("batch-id", "", "batch id (generated when empty)")
	seed := fs.Int64("seed", 0, "anomaly model seed (0 = time-based)")
	jsonOut := fs.Bool("json", false, "print the full result as JSON")
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "run requires <records-file> (.json or .csv)")
		fs.Usage()
		return 2
	}

	records, meta, err := loadRecords(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	if meta != nil {
		for _, w := range meta.Warnings {
			fmt.Fprintln(stderr, "warning:", w)
		}
	}

	pol := policy.Default()
	if *policyPath != "" {
		loaded, err := policy.Load(*policyPath)
		if err != nil {
			fmt.Fprintln(stderr, "policy:", err)
			return 1
		}
		pol = loaded.Policy
	}

	runner := pipeline.New(pipeline.Options{Policy: pol, Seed: *seed, Logger: zerolog.Nop()})
	result := runner.Run(records, *batchID)

	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintln(stderr, "encode result:", err)
			return 1
		}
	} else {
		fmt.Fprintln(stdout, result.ExecutionReport)
		fmt.Fprintln(stdout, result.DecisionReport)
	}

	if !result.Success {
		for _, e := range result.Errors {
			fmt.Fprintln(stderr, "error:", e)
		}
		return 1
	}
	return 0
}

// handleGenerate emits synthetic records as a JSON array.
func handleGenerate(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	count := fs.Int("count", 10, "number of records")
	anomalyRate := fs.Float64("anomaly-rate", 0.15, "rate of anomalous records (0.0 - 1.0)")
	seed := fs.Int64("seed", 0, "generator seed (0 = time-based)")
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}

	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	gen := ingest.NewGenerator(s, *anomalyRate, nil)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(gen.Batch(*count)); err != nil {
		fmt.Fprintln(stderr, "encode records:", err)
		return 1
	}
	return 0
}

// handlePolicy validates a policy file and prints its id and hash.
func handlePolicy(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("policy", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}

	if fs.NArg() != 2 || fs.Arg(0) != "validate" {
		fmt.Fprintln(stderr, "policy requires: validate <policy.yaml>")
		return 2
	}

	loaded, err := policy.Load(fs.Arg(1))
	if err != nil {
		fmt.Fprintln(stderr, "invalid policy:", err)
		return 1
	}
	fmt.Fprintf(stdout, "policy_id=%s version=%s hash=%s\n", loaded.Policy.PolicyID, loaded.Policy.PolicyVersion, loaded.Hash)
	return 0
}

// loadRecords reads nested-JSON, flat-JSON or CSV records from path.
func loadRecords(path string) ([]schema.TransactionRecord, *ingest.Metadata, error) {
	// #nosec G304 -- path is operator-provided input file.
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		records, meta, err := ingest.AdaptCSV(string(raw), time.Now())
		if err != nil {
			return nil, nil, err
		}
		return records, &meta, nil
	}

	records, meta, err := ingest.AdaptJSON(raw, time.Now())
	if err != nil {
		return nil, nil, err
	}
	return records, &meta, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: txnscore <command> [flags]")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  run       score a file of transaction records")
	fmt.Fprintln(w, "  generate  emit synthetic transaction records")
	fmt.Fprintln(w, "  policy    validate <policy.yaml>")
}
