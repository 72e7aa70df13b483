package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"lesionfilter/internal/logger"
	"lesionfilter/pkg/batch"
	"lesionfilter/pkg/config"
	"lesionfilter/pkg/ledger"
	"lesionfilter/pkg/policy"
	"lesionfilter/pkg/report"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "lesionfilter.yaml", "YAML configuration file")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file and exit")
	inputDir := flag.String("input", "", "Root directory of the case tree")
	policyName := flag.String("policy", "", "Decision policy: pregate (p1) or dilated (p2)")
	minRadius := flag.Float64("min-radius", 0, "Radius in mm of the smallest lesion kept")
	dryRun := flag.Bool("dry-run", false, "Evaluate cases without writing masks")
	previewDir := flag.String("preview-dir", "", "Directory for overlay previews of accepted cases")
	ledgerPath := flag.String("ledger", "", "SQLite file to record the run in")
	plotPath := flag.String("plot", "", "Histogram of retained component volumes (png, svg, pdf)")
	compare := flag.Bool("compare", false, "Evaluate every policy without writing and print the counts")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := config.ApplyEnv(cfg); err != nil {
		log.Fatalf("Failed to apply environment: %v", err)
	}

	// Flags override file and environment values
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.Processing.BaseDir = *inputDir
		case "policy":
			cfg.Processing.Policy = *policyName
		case "min-radius":
			cfg.Processing.MinRadius = *minRadius
		case "dry-run":
			cfg.Output.DryRun = *dryRun
		case "preview-dir":
			cfg.Output.PreviewDir = *previewDir
		case "ledger":
			cfg.Output.LedgerPath = *ledgerPath
		case "plot":
			cfg.Output.PlotPath = *plotPath
		}
	})

	// Validate inputs
	if cfg.Processing.BaseDir == "" {
		flag.Usage()
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLogger := logger.NewConsoleLogger(logger.ParseLevel(cfg.Output.LogLevel))

	fmt.Println("================================")
	fmt.Println("LESION MASK POST-PROCESSING")
	fmt.Println("Connected-component size filtering with organ gating")
	fmt.Println("================================")

	if *compare {
		runComparison(cfg, appLogger)
		return
	}

	p, err := policy.New(cfg.Processing.Policy, cfg.Processing.MinRadius)
	if err != nil {
		log.Fatalf("Failed to select policy: %v", err)
	}

	var opts []batch.Option
	if cfg.Output.LedgerPath != "" {
		l, err := ledger.Open(cfg.Output.LedgerPath)
		if err != nil {
			log.Fatalf("Failed to open ledger: %v", err)
		}
		defer l.Close()
		opts = append(opts, batch.WithRecorder(l))
	}

	processor := batch.NewProcessor(paramsFromConfig(cfg), p, appLogger, opts...)

	fmt.Printf("Processing %s with policy %s (min radius %.2f mm)...\n",
		cfg.Processing.BaseDir, p.Name(), cfg.Processing.MinRadius)
	startTime := time.Now()
	rep, err := processor.Process()
	if err != nil {
		log.Fatalf("Batch failed: %v", err)
	}
	processingTime := time.Since(startTime)

	if cfg.Output.Verbose {
		for _, res := range rep.Results {
			printResult(res)
		}
	}

	fmt.Printf("\nRun %s completed in %.2f seconds\n", rep.RunID, processingTime.Seconds())
	fmt.Printf("Stale files removed: %d\n", len(rep.Removed))
	fmt.Printf("Accepted: %d  Rejected: %d  Failed: %d\n", rep.Accepted, rep.Rejected, rep.Failed)
	if cfg.Output.DryRun {
		fmt.Println("Dry run: no masks were written")
	}

	volumes := rep.RetainedVolumes()
	fmt.Println()
	if err := report.Summarize(volumes).Write(os.Stdout); err != nil {
		log.Printf("Warning: Failed to print summary: %v", err)
	}

	if cfg.Output.PlotPath != "" {
		title := fmt.Sprintf("Retained lesion components (%s)", p.Name())
		if err := report.PlotVolumes(cfg.Output.PlotPath, volumes, title); err != nil {
			log.Printf("Warning: Failed to save volume histogram: %v", err)
		} else {
			fmt.Printf("Volume histogram saved to: %s\n", cfg.Output.PlotPath)
		}
	}
	if cfg.Output.LedgerPath != "" {
		fmt.Printf("Run recorded in: %s\n", cfg.Output.LedgerPath)
	}
}

func paramsFromConfig(cfg *config.Config) batch.Params {
	return batch.Params{
		BaseDir:       cfg.Processing.BaseDir,
		MinRadius:     cfg.Processing.MinRadius,
		Policy:        cfg.Processing.Policy,
		OutputSuffix:  cfg.Processing.OutputSuffix,
		StaleSuffixes: cfg.Processing.StaleSuffixes,
		DryRun:        cfg.Output.DryRun,
		PreviewDir:    cfg.Output.PreviewDir,
	}
}

// printResult mirrors the per-case console messages of earlier releases
func printResult(res batch.Result) {
	switch res.Status {
	case batch.StatusAccepted:
		if res.OutputPath != "" {
			fmt.Printf("Processed and saved: %s\n", res.OutputPath)
		} else {
			fmt.Printf("Accepted (not written): %s\n", res.TumorPath)
		}
	case batch.StatusRejected:
		if res.Reason == policy.ReasonNoSurvivors {
			fmt.Printf("No mask found in: %s\n", res.TumorPath)
		} else {
			fmt.Printf("No intersection found for: %s\n", res.TumorPath)
		}
	default:
		fmt.Printf("Failed: %s: %v\n", res.TumorPath, res.Err)
	}
}

// runComparison evaluates every policy over the tree in dry-run mode without
// touching existing outputs.
func runComparison(cfg *config.Config, appLogger logger.Logger) {
	params := paramsFromConfig(cfg)
	params.DryRun = true
	params.StaleSuffixes = nil
	params.PreviewDir = ""

	fmt.Printf("\n%-10s %9s %9s %9s %12s\n", "policy", "accepted", "rejected", "failed", "volume mm³")
	for _, name := range policy.Names() {
		p, err := policy.New(name, cfg.Processing.MinRadius)
		if err != nil {
			log.Fatalf("Failed to select policy: %v", err)
		}
		params.Policy = name
		rep, err := batch.NewProcessor(params, p, appLogger).Process()
		if err != nil {
			log.Fatalf("Batch failed: %v", err)
		}
		s := report.Summarize(rep.RetainedVolumes())
		fmt.Printf("%-10s %9d %9d %9d %12.2f\n", name, rep.Accepted, rep.Rejected, rep.Failed, s.Total)
	}
}
