package main

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"cveroast/internal/config"
	"cveroast/internal/detect"
	"cveroast/internal/logging"
	"cveroast/internal/model"
	"cveroast/internal/narrate"
	"cveroast/internal/notify"
	"cveroast/internal/pipeline"
	"cveroast/internal/scanners/depcheck"
	"cveroast/internal/scanners/trivy"
	"cveroast/internal/server"
	"cveroast/internal/state"
)

func runScan(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	absTarget, err := filepath.Abs(cfg.TargetDir)
	if err != nil {
		return fmt.Errorf("invalid target path: %w", err)
	}

	fmt.Println(info("=== cveroast Plan ==="))
	fmt.Printf("Target:     %s\n", absTarget)
	fmt.Printf("Commit:     %s\n", cfg.CommitID)
	fmt.Printf("Data:       %s\n", cfg.DataDir)
	fmt.Printf("Threshold:  %s\n", cfg.Threshold())
	fmt.Printf("Variant:    %s\n", cfg.NarrativeVariant())
	fmt.Println()

	p := buildPipeline(cfg, absTarget, logger)
	res, err := p.Run(ctx, cfg.CommitID)
	if err != nil {
		return err
	}

	printSummary(res)
	return nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	absTarget, err := filepath.Abs(cfg.TargetDir)
	if err != nil {
		return fmt.Errorf("invalid target path: %w", err)
	}

	p := buildPipeline(cfg, absTarget, logger)
	srv := server.New(state.NewStore(cfg.DataDir), p, logger)

	fmt.Println(info("Serving analyses on %s", cfg.ListenAddr))
	return srv.ListenAndServe(ctx, cfg.ListenAddr)
}

func buildPipeline(cfg *config.Config, target string, logger *zap.Logger) *pipeline.Pipeline {
	skip, err := detect.SkipDirs(target)
	if err != nil {
		logger.Warn("could not detect directories to skip", zap.String("target", target), zap.Error(err))
	}

	sources := []pipeline.Source{
		pipeline.FromScanner(&trivy.Scanner{Threshold: cfg.Threshold(), SkipDirs: skip}, cfg.ScannerTimeout(), logger),
		pipeline.FromScanner(&depcheck.Scanner{SkipDirs: skip, NoUpdate: cfg.OWASPNoUpdate}, cfg.ScannerTimeout(), logger),
	}

	narrator := narrate.New(narrate.Options{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: float32(cfg.Temperature),
		Timeout:     cfg.NarrationTimeout(),
	}, logger)

	return pipeline.New(pipeline.Options{
		Target:            target,
		CurrentID:         cfg.CommitID,
		Template:          cfg.LoadTemplate(logger),
		Signoff:           cfg.EffectiveSignoff(),
		Variant:           cfg.NarrativeVariant(),
		MaxPromptFindings: cfg.MaxPromptFindings,
		MaxMessageLength:  cfg.MaxMessageLength,
	},
		sources,
		narrator,
		notify.NewWebhook(cfg.WebhookURL, cfg.WebhookTimeout()),
		state.NewStore(cfg.DataDir),
		state.NewTracker(cfg.DataDir),
		logger,
	)
}

func printSummary(res pipeline.Result) {
	rec := res.Record
	if res.Skipped {
		fmt.Println(warning("Commit %s already processed, showing stored result", rec.CommitID))
	}

	fmt.Println(info("=== Summary ==="))
	for _, s := range rec.SecurityScans {
		v := s.Vulnerabilities
		fmt.Printf("%-8s %s  critical=%d high=%d medium=%d low=%d  %s\n",
			s.Tool, statusText(s.Status()), v.Critical, v.High, v.Medium, v.Low, s.Details)
	}
	t := rec.Total()
	fmt.Printf("%-8s %s  critical=%d high=%d medium=%d low=%d\n",
		"total", statusText(rec.Status()), t.Critical, t.High, t.Medium, t.Low)
}

func statusText(s model.Status) string {
	switch s {
	case model.StatusError:
		return errorColor("%-7s", s)
	case model.StatusWarning:
		return warning("%-7s", s)
	default:
		return success("%-7s", s)
	}
}
