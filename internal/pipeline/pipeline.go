package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/opencontainers/go-digest"
	"go.uber.org/zap"

	"cveroast/internal/aggregate"
	"cveroast/internal/model"
	"cveroast/internal/report"
	"cveroast/internal/state"
)

// ErrNoResult is returned when no source is configured, so no record can be
// produced.
var ErrNoResult = errors.New("analysis produced no result")

type Options struct {
	// Target is the directory handed to every scanner.
	Target string
	// CurrentID is the configured identifier. Records for it also update
	// the latest alias.
	CurrentID         string
	Template          string
	Signoff           string
	Variant           state.Variant
	MaxPromptFindings int
	MaxMessageLength  int
}

// Pipeline runs scan, parse, aggregate, narrate, persist and notify for one
// identifier at a time. Callers serialize Run and Analyze.
type Pipeline struct {
	opts     Options
	sources  []Source
	narrator Narrator
	notifier Notifier
	store    *state.Store
	tracker  *state.Tracker
	logger   *zap.Logger
}

func New(opts Options, sources []Source, narrator Narrator, notifier Notifier,
	store *state.Store, tracker *state.Tracker, logger *zap.Logger) *Pipeline {
	if opts.Variant == "" {
		opts.Variant = state.VariantMain
	}
	return &Pipeline{
		opts:     opts,
		sources:  sources,
		narrator: narrator,
		notifier: notifier,
		store:    store,
		tracker:  tracker,
		logger:   logger.Named("pipeline"),
	}
}

type Result struct {
	Record model.AnalysisRecord
	// Skipped is set when the identifier was already processed and the
	// persisted record was returned instead.
	Skipped bool
}

// Run analyzes id unless it is the last processed identifier and its record
// is still on disk.
func (p *Pipeline) Run(ctx context.Context, id string) (Result, error) {
	if err := state.ValidIdentifier(id); err != nil {
		return Result{}, err
	}

	if !p.tracker.ShouldRun(id) {
		rec, err := p.store.LoadRecord(id)
		if err == nil {
			p.logger.Info("identifier already processed, skipping", zap.String("commit", id))
			return Result{Record: rec, Skipped: true}, nil
		}
		p.logger.Warn("identifier marked processed but record unavailable, rerunning",
			zap.String("commit", id), zap.Error(err))
	}

	rec, err := p.Analyze(ctx, id)
	if err != nil {
		return Result{}, err
	}
	return Result{Record: rec}, nil
}

// Analyze runs the full pipeline for id regardless of the processed marker.
// Scanner, narration, webhook and filesystem failures are logged and
// degrade the result; only an invalid identifier or a missing source set
// is an error.
func (p *Pipeline) Analyze(ctx context.Context, id string) (model.AnalysisRecord, error) {
	if err := state.ValidIdentifier(id); err != nil {
		return model.AnalysisRecord{}, err
	}
	if len(p.sources) == 0 {
		return model.AnalysisRecord{}, ErrNoResult
	}

	log := p.logger.With(zap.String("commit", id))
	log.Info("starting analysis", zap.String("target", p.opts.Target))

	var (
		all     []model.Finding
		tools   = make([]model.Tool, 0, len(p.sources))
		digests = make(map[model.Tool]string, len(p.sources))
	)

	// Sequential; sources share no state.
	for _, src := range p.sources {
		tool := src.Tool()
		raw := src.Scan(ctx, p.opts.Target, id)

		findings, err := src.Parse(raw)
		if err != nil {
			log.Warn("malformed scanner report, treating as empty",
				zap.String("tool", string(tool)), zap.Error(err))
			raw = src.EmptyReport()
			findings = []model.Finding{}
		}

		if err := p.store.SaveRaw(tool, id, raw); err != nil {
			log.Error("failed to persist raw report", zap.String("tool", string(tool)), zap.Error(err))
		}
		digests[tool] = digest.FromBytes(raw).String()

		tools = append(tools, tool)
		all = append(all, findings...)

		log.Debug("parsed scanner report",
			zap.String("tool", string(tool)),
			zap.Int("findings", len(findings)),
			zap.Int("bytes", len(raw)))
	}

	summaries := aggregate.SummarizeByTool(all, tools)
	scans := make([]model.ScanSummary, 0, len(summaries))
	for _, ts := range summaries {
		scans = append(scans, model.ScanSummary{
			Tool:            ts.Tool,
			Vulnerabilities: ts.Summary,
			Details:         details(ts),
		})
	}

	ranked := aggregate.RankAndTrim(aggregate.Dedupe(all), p.opts.MaxPromptFindings)
	prompt := report.BuildPrompt(p.opts.Template, summaries, ranked)

	narrative := p.narrator.Narrate(ctx, prompt)
	fallback := report.IsFallback(narrative)
	if !fallback {
		narrative = report.AppendSignoff(narrative, p.opts.Signoff)
	}
	narrative = report.Sanitize(narrative, p.opts.MaxMessageLength)

	if err := p.store.SaveMessage(p.opts.Variant, narrative); err != nil {
		log.Error("failed to persist narrative", zap.Error(err))
	}

	rec := model.AnalysisRecord{
		CommitID:      id,
		Narrative:     narrative,
		SecurityScans: scans,
		RawDigests:    digests,
	}

	persisted := true
	alias := id == p.opts.CurrentID
	if err := p.store.SaveRecord(rec, alias); err != nil {
		log.Error("failed to persist analysis record", zap.Error(err))
		persisted = false
	}
	if err := p.store.SaveMarkdown(id, report.Markdown(rec, ranked)); err != nil {
		log.Error("failed to persist markdown report", zap.Error(err))
	}

	p.deliver(ctx, log, narrative, fallback)

	if persisted {
		if err := p.tracker.MarkProcessed(id); err != nil {
			log.Error("failed to update processed marker", zap.Error(err))
		}
	}

	log.Info("analysis finished",
		zap.String("status", string(rec.Status())),
		zap.Int("findings", len(all)),
		zap.Bool("fallback_narrative", fallback))
	return rec, nil
}

// deliver sends the narrative to the chat webhook. The fallback narrative
// is never sent.
func (p *Pipeline) deliver(ctx context.Context, log *zap.Logger, narrative string, fallback bool) {
	if fallback {
		log.Warn("narration failed, not sending fallback narrative to webhook")
		return
	}
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Send(ctx, narrative); err != nil {
		log.Warn("webhook delivery failed", zap.Error(err))
		return
	}
	log.Info("narrative delivered to webhook")
}

func details(ts model.ToolSummary) string {
	d := fmt.Sprintf("%d findings", ts.Findings)
	if unranked := ts.Findings - ts.Summary.Total(); unranked > 0 {
		d += fmt.Sprintf(" (%d with unknown severity)", unranked)
	}
	return d
}
