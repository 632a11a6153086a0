package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/casewise/precedent-retrieval/internal/bootstrap"
	"github.com/casewise/precedent-retrieval/internal/config"
	"github.com/casewise/precedent-retrieval/internal/core/domain"
	"github.com/casewise/precedent-retrieval/internal/observability/logging"
)

func main() {
	input := flag.String("input", "", "path to a JSON file containing an array of case documents")
	flag.Parse()

	if *input == "" {
		log.Fatal("usage: ingester -input cases.json")
	}

	cfg := config.Load()
	logger := logging.NewTextLogger("ingester", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs, err := readDocuments(*input)
	if err != nil {
		log.Fatalf("read documents: %v", err)
	}

	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}

	if cfg.MetricsPort != "" {
		go func() {
			addr := ":" + cfg.MetricsPort
			if err := http.ListenAndServe(addr, app.Metrics.Handler()); err != nil {
				logger.Warn("metrics_server_stopped", "addr", addr, "error", err)
			}
		}()
	}

	stats, err := app.Pipeline.Ingest(ctx, docs)
	if err != nil {
		log.Fatalf("ingest error: %v", err)
	}

	out, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(out))

	if stats.Failed > 0 {
		os.Exit(1)
	}
}

// readDocuments parses and validates the input file. Invalid entries
// fail the run up front so partial ingests are never started from a
// malformed file.
func readDocuments(path string) ([]domain.CaseDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw []domain.CaseDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	docs := make([]domain.CaseDocument, 0, len(raw))
	for i, r := range raw {
		doc, err := domain.NewCaseDocument(r.CaseReference, r.Year, r.Region, r.CaseType, r.Title, r.FullText)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
