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

	"github.com/casewise/precedent-retrieval/internal/bootstrap"
	"github.com/casewise/precedent-retrieval/internal/config"
	"github.com/casewise/precedent-retrieval/internal/core/domain"
	"github.com/casewise/precedent-retrieval/internal/observability/logging"
)

func main() {
	query := flag.String("query", "", "natural language description of the dispute")
	topK := flag.Int("top-k", 0, "number of results (defaults to FINAL_TOP_K)")
	region := flag.String("region", "", "tribunal region for reranking and filtering")
	year := flag.Int("year", 0, "restrict results to a decision year")
	caseType := flag.String("case-type", "", "restrict results to a case type")
	showStats := flag.Bool("stats", false, "print index statistics instead of searching")
	flag.Parse()

	cfg := config.Load()
	logger := logging.NewTextLogger("search", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}

	if *showStats {
		stats, err := app.Pipeline.Stats(ctx)
		if err != nil {
			log.Fatalf("stats error: %v", err)
		}
		printJSON(stats)
		return
	}

	if *query == "" {
		log.Fatal("usage: search -query \"landlord kept deposit for cleaning\"")
	}

	k := *topK
	if k <= 0 {
		k = cfg.TopK
	}

	filter := domain.SearchFilter{
		Year:     *year,
		Region:   *region,
		CaseType: *caseType,
	}

	outcome, err := app.Pipeline.Query(ctx, *query, k, filter, *region)
	if err != nil {
		log.Fatalf("query error: %v", err)
	}

	printJSON(outcome)

	if outcome.IsUncertain {
		fmt.Fprintf(os.Stderr, "uncertain: %s\n", outcome.UncertaintyReason)
	}
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("encode output: %v", err)
	}
	fmt.Println(string(out))
}
