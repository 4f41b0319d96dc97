package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/evalops/agentbatch/config"
	"github.com/evalops/agentbatch/internal/batch"
	"github.com/evalops/agentbatch/internal/converter"
	"github.com/evalops/agentbatch/internal/orchestrator"
	"github.com/evalops/agentbatch/internal/runsvc"
	"github.com/evalops/agentbatch/internal/store"
	"github.com/evalops/agentbatch/internal/tools"
	"github.com/evalops/agentbatch/policy"
)

var defaultQuestions = []string{
	"What's my company's remote work policy?",
	"Check if it will rain tomorrow?",
	"How is Microsoft's stock doing today?",
	"Send my direct report a summary of the HR policy.",
}

func main() {
	promptsPath := flag.String("prompts", "", "path to a JSON array of user prompts")
	flag.Parse()

	cfg := config.Load()
	if cfg.AgentID == "" {
		log.Fatalf("AGENT_ID is required")
	}

	prompts := defaultQuestions
	if *promptsPath != "" {
		data, err := os.ReadFile(*promptsPath)
		if err != nil {
			log.Fatalf("Failed to read prompts file: %v", err)
		}
		if err := json.Unmarshal(data, &prompts); err != nil {
			log.Fatalf("Failed to parse prompts file: %v", err)
		}
	}

	log.Printf("Starting batch processing of %d prompts", len(prompts))
	log.Printf("Run service: %s", cfg.ServiceURL)
	log.Printf("Agent: %s", cfg.AgentID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	client := runsvc.NewClient(cfg.ServiceURL, cfg.ServiceAPIKey)
	registry := tools.NewEnterpriseRegistry()
	turnPolicy := orchestrator.TurnPolicy{
		MaxWallClock: cfg.MaxWallClock,
		MaxRetries:   cfg.MaxRetries,
		BaseBackoff:  cfg.BaseBackoff,
		MaxBackoff:   cfg.MaxBackoff,
		PollInterval: cfg.PollInterval,
		SettleDelay:  cfg.SettleDelay,
	}
	orch := orchestrator.New(client, registry, policyEngine, cfg.AgentID, turnPolicy)
	conv := converter.New(client)
	driver := batch.New(client, orch, conv, db, cfg.OutputDir)

	report, err := driver.Run(ctx, prompts)
	if err != nil {
		log.Fatalf("Batch processing aborted: %v", err)
	}

	printReport(report)
	if report.ResultsPath != "" {
		log.Printf("Results saved to: %s", report.ResultsPath)
		log.Printf("Evaluation data saved to: %s", report.EvalPath)
	}
}

func printReport(report *batch.Report) {
	fmt.Println("\n=== Results ===")
	for i, conversation := range report.Conversations {
		fmt.Printf("\nConversation %d:\n", i+1)
		for _, entry := range conversation {
			switch {
			case entry.Metadata != nil:
				fmt.Printf("Tool (%s): %s\n", entry.Metadata.Title, entry.Content)
			default:
				fmt.Printf("%s: %s\n", entry.Role, entry.Content)
			}
		}
	}
}
