package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/OfirItzhaky/thelook-agent/pkg/bq"
	"github.com/OfirItzhaky/thelook-agent/pkg/llm"
	"github.com/OfirItzhaky/thelook-agent/pkg/logger"
	"github.com/OfirItzhaky/thelook-agent/pkg/pipeline"
	"github.com/OfirItzhaky/thelook-agent/pkg/plan"
)

const (
	defaultModel     = string(anthropic.ModelClaudeSonnet4_20250514)
	defaultMaxTokens = int64(4096)
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	modeFlag := flag.String("mode", "deterministic", "planner mode: deterministic or dynamic")
	modelFlag := flag.String("model", defaultModel, "Anthropic model (or set ANTHROPIC_MODEL env var)")
	projectFlag := flag.String("project", "", "GCP project id for BigQuery billing (or set GOOGLE_CLOUD_PROJECT env var)")
	maxBytesFlag := flag.Int64("max-bytes", bq.DefaultMaxBytesScanned, "dry-run bytes-scanned cap")
	previewLimitFlag := flag.Int("preview-limit", bq.DefaultPreviewLimit, "outer row cap on executed queries")
	planOnlyFlag := flag.Bool("plan-only", false, "print the plan and SQL without executing")
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	flag.Parse()

	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	if envModel := os.Getenv("ANTHROPIC_MODEL"); envModel != "" {
		*modelFlag = envModel
	}
	if envProject := os.Getenv("GOOGLE_CLOUD_PROJECT"); envProject != "" && *projectFlag == "" {
		*projectFlag = envProject
	}

	log := logger.New(*verboseFlag)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("agent: received signal", "signal", sig.String())
		cancel()
	}()

	cfg := pipeline.Config{
		Logger: log,
		Mode:   plan.Mode(*modeFlag),
	}

	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		cfg.LLM = llm.NewAnthropicClient(anthropic.Model(*modelFlag), defaultMaxTokens, log)
	} else {
		log.Warn("agent: ANTHROPIC_API_KEY not set, running without LLM features")
	}

	if !*planOnlyFlag {
		if *projectFlag == "" {
			return fmt.Errorf("a GCP project is required to execute queries (use --project, GOOGLE_CLOUD_PROJECT, or --plan-only)")
		}
		client, err := bq.New(ctx, bq.Config{
			ProjectID:       *projectFlag,
			MaxBytesScanned: *maxBytesFlag,
			PreviewLimit:    *previewLimitFlag,
			Logger:          log,
		})
		if err != nil {
			return err
		}
		defer client.Close()
		cfg.Executor = client
	}

	pipe, err := pipeline.New(cfg)
	if err != nil {
		return err
	}

	fmt.Println("thelook-agent: ask questions about the thelook_ecommerce dataset (ctrl-d to exit)")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("ask> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			break
		}

		if *planOnlyFlag {
			res, err := pipe.BuildPlan(ctx, question)
			if err != nil {
				log.Error("agent: planning failed", "error", err)
				continue
			}
			fmt.Printf("\nintent: %s (rule %s)\ntemplate: %s\nparams: %v\n\n%s\n\n",
				res.Intent.Intent, res.Intent.Rule, res.Plan.TemplateID, res.Plan.Params, res.SQL)
			continue
		}

		res, err := pipe.Run(ctx, question)
		if err != nil {
			log.Error("agent: run failed", "error", err)
			continue
		}
		fmt.Printf("\n%s\n\n", res.Response)
	}
	return scanner.Err()
}
