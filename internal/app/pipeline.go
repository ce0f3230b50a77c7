package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/quotedoc/internal/docgen"
	"github.com/odyssey-erp/quotedoc/internal/docgen/assets"
	"github.com/odyssey-erp/quotedoc/internal/docgen/docx"
	"github.com/odyssey-erp/quotedoc/internal/platform/db"
	"github.com/odyssey-erp/quotedoc/internal/quotation"
	"github.com/odyssey-erp/quotedoc/report"
)

// Pipeline bundles the collaborators every binary needs to render documents.
type Pipeline struct {
	Source    quotation.Source
	Generator *docgen.Generator
	Converter *report.Client
	pool      *pgxpool.Pool
}

// TokenMode selects the credentials the pipeline presents upstream.
type TokenMode int

const (
	// ServiceTokens forwards a caller token when one is in the context and
	// otherwise signs a service token. Used by the worker and the CLI.
	ServiceTokens TokenMode = iota
	// CallerTokensOnly forwards the caller's token and never signs one. Used
	// by the HTTP server.
	CallerTokensOnly
)

// NewPipeline wires the quotation source, asset fetcher, template source and
// PDF converter from cfg.
func NewPipeline(ctx context.Context, cfg *Config, logger *slog.Logger, recorder docgen.Recorder, mode TokenMode) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pipeline: config required")
	}
	tokens, err := upstreamTokens(cfg, mode)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{}
	if cfg.UsesPostgres() {
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		p.pool = pool
		p.Source = quotation.NewPGRepository(pool)
	} else {
		p.Source = quotation.NewAPIClient(cfg.BackendAPIURL, tokens)
	}

	fetcher := assets.NewFetcher(cfg.AssetBaseURL, tokens, assets.JPEGRotator{Quality: assets.DefaultJPEGQuality})
	p.Converter = report.NewClient(cfg.GotenbergURL)
	p.Generator = docgen.NewGenerator(docgen.Config{
		Template:  docx.NewSource(cfg.TemplateURL),
		Renderer:  docx.NewRenderer(),
		Collector: assets.NewCollector(fetcher, cfg.ImageFetchConcurrency, logger),
		Converter: p.Converter,
		Recorder:  recorder,
		Logger:    logger,
	})
	return p, nil
}

func upstreamTokens(cfg *Config, mode TokenMode) (assets.AuthTokenProvider, error) {
	if mode == CallerTokensOnly {
		return assets.ContextToken{}, nil
	}
	serviceTokens, err := assets.NewServiceTokenProvider(cfg.ServiceTokenSecret, "quotedoc", cfg.ServiceTokenTTL)
	if err != nil {
		return nil, err
	}
	return assets.Chain(assets.ContextToken{}, serviceTokens), nil
}

// Close releases the database pool, if any.
func (p *Pipeline) Close() {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
}
