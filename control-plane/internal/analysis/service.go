// Package analysis answers network impact questions.
//
// # Pipeline
//
//  1. Validate the question and resolve per-request filters
//  2. Look up the intelligence report for the question in the cache
//  3. On a miss, ask the intelligence service and cache its report
//  4. Filter areas, build the summary and metadata
//
// The cache holds the unfiltered report, so two requests for the same
// question with different filters share one upstream call.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// ErrInvalidRequest wraps every validation failure.
var ErrInvalidRequest = errors.New("invalid request")

// Investigator produces an intelligence report for a question.
type Investigator interface {
	Investigate(ctx context.Context, question string) (*types.IntelligenceReport, error)
}

// ReportCache stores intelligence reports by question. GetReport returns
// nil, nil on a miss.
type ReportCache interface {
	GetReport(ctx context.Context, question string) (*types.IntelligenceReport, error)
	PutReport(ctx context.Context, question string, report *types.IntelligenceReport) error
}

// Observer is notified of each completed analysis.
type Observer interface {
	ObserveAnalysis(cached bool, events, areas int, d time.Duration)
}

// Config for the service.
type Config struct {
	Intel    Investigator // Required
	Cache    ReportCache  // Optional
	Observer Observer     // Optional
	Now      func() time.Time
	NewID    func() string
	Logger   *slog.Logger
}

// Service runs analyses.
type Service struct {
	intel    Investigator
	cache    ReportCache
	observer Observer
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

// NewService creates an analysis service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Intel == nil {
		return nil, fmt.Errorf("analysis: intelligence client is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.New().String() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		intel:    cfg.Intel,
		cache:    cfg.Cache,
		observer: cfg.Observer,
		now:      cfg.Now,
		newID:    cfg.NewID,
		logger:   cfg.Logger.With("component", "analysis"),
	}, nil
}

// Analyze runs the full pipeline for one request. Validation failures wrap
// ErrInvalidRequest; anything else is an upstream or cache failure.
func (s *Service) Analyze(ctx context.Context, req types.AnalysisRequest) (*types.AnalysisResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	filters, err := ResolveFilters(req.Options)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	start := s.now()
	report, cached := s.cachedReport(ctx, req.Question)
	if report == nil {
		report, err = s.intel.Investigate(ctx, req.Question)
		if err != nil {
			return nil, fmt.Errorf("investigating: %w", err)
		}
		s.storeReport(ctx, req.Question, report)
	}

	events := FilterEvents(report.Events, filters)
	total := types.AreaCount(events)
	elapsed := s.now().Sub(start)

	result := &types.AnalysisResult{
		Query:              req.Question,
		Timestamp:          s.now(),
		Summary:            Summarize(events),
		Events:             events,
		TotalEvents:        len(events),
		TotalAffectedAreas: total,
		AnalysisMetadata: types.AnalysisMetadata{
			AnalysisID:           s.newID(),
			AnalysisDurationMs:   elapsed.Milliseconds(),
			WebSearchesPerformed: len(report.SearchQueriesUsed),
			DataSources:          report.DataSources,
			SearchQueriesUsed:    report.SearchQueriesUsed,
			TotalDataPoints:      totalDataPoints(report),
			FiltersApplied: types.AppliedFilters{
				MaxAreas:      filters.MaxAreas,
				MinConfidence: filters.MinConfidence,
			},
			Cached: cached,
		},
	}

	if s.observer != nil {
		s.observer.ObserveAnalysis(cached, len(events), total, elapsed)
	}
	s.logger.Info("analysis complete",
		"analysis_id", result.AnalysisMetadata.AnalysisID,
		"cached", cached,
		"events", len(events),
		"areas", total,
		"areas_before_filter", types.AreaCount(report.Events),
		"duration", elapsed)
	return result, nil
}

// cachedReport returns the cached report, or nil. Cache errors are logged
// and treated as a miss.
func (s *Service) cachedReport(ctx context.Context, question string) (*types.IntelligenceReport, bool) {
	if s.cache == nil {
		return nil, false
	}
	report, err := s.cache.GetReport(ctx, question)
	if err != nil {
		s.logger.Warn("cache read failed", "error", err)
		return nil, false
	}
	return report, report != nil
}

func (s *Service) storeReport(ctx context.Context, question string, report *types.IntelligenceReport) {
	if s.cache == nil {
		return
	}
	if err := s.cache.PutReport(ctx, question, report); err != nil {
		s.logger.Warn("cache write failed", "error", err)
	}
}
