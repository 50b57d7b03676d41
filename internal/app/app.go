// Package app wires the store, catalog, classifier and IPMT service from
// configuration for the binaries.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"example.com/ipmt/internal/aggregate"
	"example.com/ipmt/internal/catalog"
	"example.com/ipmt/internal/config"
	"example.com/ipmt/internal/domain"
	"example.com/ipmt/internal/ipmt"
	"example.com/ipmt/internal/report"
	"example.com/ipmt/internal/sheet"
	"example.com/ipmt/internal/summary"
)

// Components are the long-lived services built from one store.
type Components struct {
	Store      domain.Store
	Aggregator *aggregate.Aggregator
	Service    *ipmt.Service
	Feed       *report.Feed
}

// Build seeds the catalog file when configured, makes sure the fallback
// activity exists, and assembles the pipeline over store.
func Build(ctx context.Context, cfg config.Config, store domain.Store, logger *zap.Logger) (*Components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CatalogFile != "" {
		doc, err := catalog.LoadFile(cfg.CatalogFile)
		if err != nil {
			return nil, err
		}
		sum, err := catalog.Apply(ctx, store, doc, logger)
		if err != nil {
			return nil, fmt.Errorf("apply catalog: %w", err)
		}
		logger.Info("catalog applied", zap.String("file", cfg.CatalogFile), zap.Any("summary", sum))
	}
	if created, err := catalog.EnsureFallback(ctx, store); err != nil {
		return nil, fmt.Errorf("ensure fallback activity: %w", err)
	} else if created {
		logger.Info("created fallback activity", zap.String("name", domain.FallbackActivity))
	}

	delegate, err := Delegate(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	policy, err := aggregate.ParseFailurePolicy(cfg.SummaryFailurePolicy)
	if err != nil {
		return nil, err
	}
	loc := cfg.Location()
	agg := aggregate.New(store, delegate,
		aggregate.WithLogger(logger),
		aggregate.WithLocation(loc),
		aggregate.WithFailurePolicy(policy))
	if _, err := agg.Classifier(ctx); err != nil {
		return nil, err
	}

	service := ipmt.NewService(store, agg, sheet.NewTemplateCompiler(cfg.TemplatePath),
		ipmt.WithLogger(logger),
		ipmt.WithCreateMissingIndicators(cfg.CreateMissingIndicators))

	return &Components{
		Store:      store,
		Aggregator: agg,
		Service:    service,
		Feed:       report.NewFeed(store, report.NewNormalizer(loc)),
	}, nil
}

// Delegate picks the summary delegate: Gemini when an API key is configured,
// plain joining otherwise.
func Delegate(ctx context.Context, cfg config.Config, logger *zap.Logger) (summary.Delegate, error) {
	if cfg.GenAIAPIKey == "" {
		logger.Info("summary delegate disabled, joining descriptions")
		return summary.JoinDelegate{}, nil
	}
	delegate, err := summary.NewGenAIDelegate(ctx, cfg.GenAIAPIKey,
		summary.WithModel(cfg.GenAIModel),
		summary.WithTimeout(cfg.SummaryTimeout),
		summary.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return delegate, nil
}

// EnsureTemplate writes a blank starter template at path when nothing is
// there yet. It reports whether a file was written.
func EnsureTemplate(path string) (bool, error) {
	return ensureTemplate(path, sheet.NewTemplate)
}

func ensureTemplate(path string, write func(io.Writer) error) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	f, err := os.Create(path)
	if err != nil {
		return false, fmt.Errorf("create template: %w", err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return false, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return false, err
	}
	return true, nil
}
