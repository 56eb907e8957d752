package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/silverline-health/ordersync/internal/fieldextract"
	"github.com/silverline-health/ordersync/internal/model"
	"github.com/silverline-health/ordersync/internal/pipeline"
	"github.com/silverline-health/ordersync/internal/portal"
	"github.com/silverline-health/ordersync/internal/report"
	"github.com/silverline-health/ordersync/internal/store"
	"github.com/silverline-health/ordersync/internal/supreme"
	"github.com/silverline-health/ordersync/internal/textextract"
	"github.com/silverline-health/ordersync/internal/upload"
	anthropicpkg "github.com/silverline-health/ordersync/pkg/anthropic"
	"github.com/silverline-health/ordersync/pkg/drive"
	"github.com/silverline-health/ordersync/pkg/icd"
	"github.com/silverline-health/ordersync/pkg/localllm"
	"github.com/silverline-health/ordersync/pkg/platform"
	"github.com/silverline-health/ordersync/pkg/portalapi"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "ordersync.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func newFieldExtractor() *fieldextract.Extractor {
	var claude anthropicpkg.Client
	if cfg.Anthropic.Key != "" {
		claude = anthropicpkg.NewClient(cfg.Anthropic.Key)
	}
	var local localllm.Client
	if cfg.LocalLLM.BaseURL != "" {
		local = localllm.NewClient(
			localllm.WithBaseURL(cfg.LocalLLM.BaseURL),
			localllm.WithModel(cfg.LocalLLM.Model),
		)
	}
	icdClient := icd.NewClient(cfg.ICD.BaseURL, icd.WithRateLimit(cfg.ICD.RateRPS))
	return fieldextract.New(cfg.Anthropic, claude, local, icdClient)
}

func newPlatform() platform.Client {
	return platform.NewClient(cfg.Platform.BaseURL, cfg.Platform.FunctionKey,
		platform.WithRateLimit(cfg.Platform.RateRPS))
}

func newPortalAPI() portalapi.Client {
	return portalapi.NewClient(cfg.PortalAPI.BaseURL, cfg.PortalAPI.Token)
}

func newReporter(ctx context.Context) *report.Reporter {
	if cfg.Drive.Endpoint == "" {
		return report.New(nil)
	}
	up, err := drive.New(ctx, drive.Config{
		Endpoint:      cfg.Drive.Endpoint,
		AccessKey:     cfg.Drive.AccessKey,
		SecretKey:     cfg.Drive.SecretKey,
		Bucket:        cfg.Drive.Bucket,
		UseSSL:        cfg.Drive.UseSSL,
		PublicBaseURL: cfg.Drive.PublicBaseURL,
	})
	if err != nil {
		zap.L().Warn("drive init failed, reports will carry no pdf links", zap.Error(err))
		return report.New(nil)
	}
	return report.New(up)
}

// newPipeline wires every stage from config. Construction is cheap; no
// browser or network connection is opened until a stage runs.
func newPipeline(ctx context.Context, st store.Store) *pipeline.Pipeline {
	api := newPortalAPI()
	pf := newPlatform()
	fields := newFieldExtractor()
	builder := supreme.New(api, pf, fields, cfg.Download.Concurrency)
	uploader := upload.New(pf, upload.NewCompanyResolver(pf, cfg.Upload.CompanyCSVPath), cfg.Upload)

	return pipeline.New(cfg, st, portal.New(cfg.Portal), api, pf,
		textextract.New(cfg.TextExtract), fields, builder, uploader, newReporter(ctx))
}

// stopOnSignal winds the portal scan down when the command context is
// cancelled, so a partial page harvest still flows through the later stages.
func stopOnSignal(ctx context.Context, p *pipeline.Pipeline) {
	go func() {
		<-ctx.Done()
		p.Stop()
	}()
}

func companyByKey(key string) (model.CompanyConfig, error) {
	company, ok := cfg.Company(key)
	if !ok {
		return model.CompanyConfig{}, eris.Errorf("unknown company key %q", key)
	}
	return company, nil
}
