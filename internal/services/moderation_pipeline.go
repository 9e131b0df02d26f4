package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/imageguard/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/models"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/moderation"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/optimizer"
	"github.com/ahmetcoskunkizilkaya/imageguard/internal/storage"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ErrMissingEntity means a flagged file could not be recorded because the
// upload named no entity.
var ErrMissingEntity = errors.New("upload has no entity reference")

// Optimizer is the compression collaborator used for accepted files.
type Optimizer interface {
	Configured() bool
	Optimize(ctx context.Context, inputPath, outputPath string, opts optimizer.Options) (*optimizer.Result, error)
}

// UploadedFile is a file already written to storage, awaiting moderation.
type UploadedFile struct {
	Path         string
	OriginalName string
	URL          string
}

// UploadContext carries who uploaded the batch and what it belongs to. Sandbox
// runs decision logic without persisting records or deleting files.
type UploadContext struct {
	Entity     models.EntityRef
	UploaderID uuid.UUID
	Sandbox    bool
}

// FileOutcome is the pipeline's verdict for one file.
type FileOutcome struct {
	File           UploadedFile
	Analysis       *moderation.AnalysisResult
	Severity       moderation.Severity
	AutoRejected   bool
	FlaggedImageID *uuid.UUID
	FileDeleted    bool
	Optimization   *optimizer.Result
	Warning        string
}

// BatchResult partitions a batch. Flagged holds every unsafe file in input order;
// AutoRejected is the subset whose files were discarded.
type BatchResult struct {
	Validated    []FileOutcome
	Flagged      []FileOutcome
	AutoRejected []FileOutcome
	Warnings     []string
}

// Rejected reports whether the batch as a whole must be refused.
func (r *BatchResult) Rejected() bool {
	return len(r.AutoRejected) > 0
}

// HeldForReview returns flagged files that were kept pending admin review.
func (r *BatchResult) HeldForReview() []FileOutcome {
	var out []FileOutcome
	for _, f := range r.Flagged {
		if !f.AutoRejected {
			out = append(out, f)
		}
	}
	return out
}

type PipelineConfig struct {
	AnalyzeTimeout  time.Duration
	OptimizeTimeout time.Duration
	Optimize        optimizer.Options
}

// ModerationPipeline moderates upload batches one file at a time, in input order,
// so at most one external call is in flight per batch.
type ModerationPipeline struct {
	analyzer  *moderation.Analyzer
	files     storage.Store
	store     *ReviewStore
	optimizer Optimizer
	metrics   *metrics.ModerationMetrics
	cfg       PipelineConfig
	now       func() time.Time
}

func NewModerationPipeline(analyzer *moderation.Analyzer, files storage.Store, store *ReviewStore, opt Optimizer, m *metrics.ModerationMetrics, cfg PipelineConfig) *ModerationPipeline {
	if cfg.AnalyzeTimeout <= 0 {
		cfg.AnalyzeTimeout = 15 * time.Second
	}
	if cfg.OptimizeTimeout <= 0 {
		cfg.OptimizeTimeout = 30 * time.Second
	}
	if cfg.Optimize.Resize == nil && cfg.Optimize.Convert == "" {
		cfg.Optimize = optimizer.Preset("large")
	}
	return &ModerationPipeline{
		analyzer:  analyzer,
		files:     files,
		store:     store,
		optimizer: opt,
		metrics:   m,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ProcessBatch moderates files and, when nothing was auto-rejected, optimizes the
// accepted ones. The only error returned is cancellation of ctx.
func (p *ModerationPipeline) ProcessBatch(ctx context.Context, uc UploadContext, files []UploadedFile) (*BatchResult, error) {
	result := &BatchResult{}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome := p.moderateFile(ctx, uc, f)
		if outcome.Warning != "" {
			result.Warnings = append(result.Warnings, outcome.Warning)
		}
		if outcome.Analysis == nil || outcome.Analysis.IsSafe {
			result.Validated = append(result.Validated, outcome)
			continue
		}
		result.Flagged = append(result.Flagged, outcome)
		if outcome.AutoRejected {
			result.AutoRejected = append(result.AutoRejected, outcome)
		}
	}

	if result.Rejected() || uc.Sandbox {
		return result, nil
	}
	if err := p.optimizeAccepted(ctx, result); err != nil {
		return result, err
	}
	return result, nil
}

func (p *ModerationPipeline) moderateFile(ctx context.Context, uc UploadContext, f UploadedFile) FileOutcome {
	outcome := FileOutcome{File: f}

	actx, cancel := context.WithTimeout(ctx, p.cfg.AnalyzeTimeout)
	start := time.Now()
	analysis, err := p.analyzer.AnalyzeFile(actx, p.files, f.Path)
	cancel()
	p.metrics.ObserveAnalysisDuration(time.Since(start).Seconds())

	if err != nil {
		p.reportAnalyzerFailure(uc, f, err)
		outcome.Warning = fmt.Sprintf("%s: image could not be analyzed and was accepted without moderation", displayName(f))
		return outcome
	}
	outcome.Analysis = analysis
	if analysis.IsSafe {
		p.metrics.RecordDecision(metrics.DecisionSafe)
		return outcome
	}

	outcome.Severity = moderation.DetermineSeverity(analysis.Violations)
	outcome.AutoRejected = moderation.ShouldAutoReject(analysis.Violations)
	if outcome.AutoRejected {
		p.metrics.RecordDecision(metrics.DecisionAutoRejected)
	} else {
		p.metrics.RecordDecision(metrics.DecisionFlagged)
	}

	slog.Warn("image flagged by moderation",
		"component", "moderation",
		"file", f.Path,
		"uploader_id", uc.UploaderID.String(),
		"severity", string(outcome.Severity),
		"auto_rejected", outcome.AutoRejected,
		"categories", analysis.Categories(),
		"sandbox", uc.Sandbox,
	)

	if uc.Sandbox {
		return outcome
	}

	rec, err := p.record(ctx, uc, f, analysis, outcome)
	if err != nil {
		p.metrics.RecordPersistenceFailure()
		slog.Error("failed to persist flagged image",
			"component", "moderation",
			"file", f.Path,
			"uploader_id", uc.UploaderID.String(),
			"error", err,
		)
		rec = nil
	} else {
		id := rec.ID
		outcome.FlaggedImageID = &id
	}

	if outcome.AutoRejected {
		target := rec
		var marker *ReviewStore
		if target == nil {
			target = &models.FlaggedImage{ImagePath: f.Path}
		} else {
			marker = p.store
		}
		outcome.FileDeleted = removeStoredFile(ctx, p.files, marker, target, p.now())
	}
	return outcome
}

func (p *ModerationPipeline) record(ctx context.Context, uc UploadContext, f UploadedFile, analysis *moderation.AnalysisResult, outcome FileOutcome) (*models.FlaggedImage, error) {
	if p.store == nil {
		return nil, errors.New("review store not configured")
	}
	if uc.Entity == nil {
		return nil, ErrMissingEntity
	}
	rec := &models.FlaggedImage{
		ID:               uuid.New(),
		ImagePath:        f.Path,
		OriginalFilename: f.OriginalName,
		ImageURL:         f.URL,
		EntityType:       uc.Entity.Type(),
		EntityID:         uc.Entity.EntityID(),
		UploaderID:       uc.UploaderID,
		ModerationResult: datatypes.NewJSONType(*analysis),
		ReviewStatus:     models.ReviewPending,
		ActionTaken:      models.ActionNone,
		Severity:         outcome.Severity,
		AutoRejected:     outcome.AutoRejected,
		FlaggedAt:        p.now(),
	}
	if err := p.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (p *ModerationPipeline) reportAnalyzerFailure(uc UploadContext, f UploadedFile, err error) {
	p.metrics.RecordAnalyzerFailure()
	slog.Warn("image analysis failed, allowing upload",
		"component", "moderation",
		"file", f.Path,
		"uploader_id", uc.UploaderID.String(),
		"error", err,
	)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", "moderation")
		scope.SetTag("file", f.Path)
		sentry.CaptureException(err)
	})
}

// optimizeAccepted compresses validated files in place. Per-file failures become
// warnings; an unconfigured optimizer skips the stage silently.
func (p *ModerationPipeline) optimizeAccepted(ctx context.Context, result *BatchResult) error {
	if p.optimizer == nil || !p.optimizer.Configured() {
		for range result.Validated {
			p.metrics.RecordOptimization(metrics.OptimizationSkipped, 0, 0)
		}
		return nil
	}

	for i := range result.Validated {
		if err := ctx.Err(); err != nil {
			return err
		}
		f := &result.Validated[i]

		octx, cancel := context.WithTimeout(ctx, p.cfg.OptimizeTimeout)
		res, err := p.optimizer.Optimize(octx, f.File.Path, "", p.cfg.Optimize)
		cancel()

		if err != nil {
			if errors.Is(err, optimizer.ErrNotConfigured) {
				p.metrics.RecordOptimization(metrics.OptimizationSkipped, 0, 0)
				continue
			}
			p.metrics.RecordOptimization(metrics.OptimizationFailure, 0, 0)
			slog.Warn("image optimization failed, keeping original",
				"component", "optimizer",
				"file", f.File.Path,
				"error", err,
			)
			w := fmt.Sprintf("%s: optimization failed, original kept", displayName(f.File))
			if f.Warning == "" {
				f.Warning = w
			}
			result.Warnings = append(result.Warnings, w)
			continue
		}
		f.Optimization = res
		p.metrics.RecordOptimization(metrics.OptimizationSuccess, res.SavedBytes, res.CompressionCount)
	}
	return nil
}

func displayName(f UploadedFile) string {
	if f.OriginalName != "" {
		return f.OriginalName
	}
	return f.Path
}
