// Package autofill composes the pipeline: extraction, classification,
// profile parsing, fill-value resolution and injection. Remote failures fall
// back to the local heuristics when the user allows it, and every fallback
// is flagged on the result.
package autofill

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/testforge/smartfill/internal/domain"
	"github.com/testforge/smartfill/internal/inject"
	"github.com/testforge/smartfill/internal/llm"
	"github.com/testforge/smartfill/internal/observability"
	"github.com/testforge/smartfill/internal/services/classify"
	"github.com/testforge/smartfill/internal/services/extraction"
	"github.com/testforge/smartfill/internal/services/profile"
	"github.com/testforge/smartfill/internal/services/sanitize"
)

// Store is the part of the settings and profile store the pipeline reads.
type Store interface {
	Settings(ctx context.Context) (domain.Settings, error)
	GetProfile(ctx context.Context, name string) (domain.Profile, error)
}

// Providers hands out a model client for the current settings.
type Providers interface {
	For(settings domain.Settings) (llm.Provider, error)
}

// Archive keeps a copy of accepted analyses.
type Archive interface {
	ArchiveAnalysis(ctx context.Context, result *domain.AnalysisResult) (string, error)
}

// Config holds the pipeline limits.
type Config struct {
	MaxModelChars  int
	ArchiveTimeout time.Duration
	NamePrecedence profile.NamePrecedence
}

// Deps are the collaborators of a Service. Only Store and Providers are
// required.
type Deps struct {
	Store      Store
	Providers  Providers
	Injector   inject.Injector
	PageSource inject.PageSource
	Archive    Archive
	Metrics    *observability.Metrics
}

// Service runs the autofill operations.
type Service struct {
	config    Config
	deps      Deps
	extractor *extraction.Extractor
	sanitizer *sanitize.Sanitizer
	parser    *profile.Parser
	logger    *zap.Logger
}

// NewService creates a new autofill service
func NewService(config Config, deps Deps, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ArchiveTimeout <= 0 {
		config.ArchiveTimeout = 10 * time.Second
	}
	return &Service{
		config:    config,
		deps:      deps,
		extractor: extraction.NewExtractor(),
		sanitizer: sanitize.New(config.MaxModelChars),
		parser:    profile.NewParser(profile.Options{NamePrecedence: config.NamePrecedence}),
		logger:    logger,
	}
}

// settings loads the settings for one operation.
func (s *Service) settings(ctx context.Context) (domain.Settings, error) {
	settings, err := s.deps.Store.Settings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}

// fallback reports whether a remote failure may be answered locally.
// Cancellation is never retried.
func (s *Service) fallback(ctx context.Context, op domain.Operation, settings domain.Settings, cause error) bool {
	if !settings.FallbackToLocal || ctx.Err() != nil {
		return false
	}
	s.logger.Warn("remote path failed, falling back to local",
		zap.String("operation", string(op)),
		zap.String("provider", string(settings.ModelProvider)),
		zap.String("code", domain.GetErrorCode(cause)),
		zap.Error(cause),
	)
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordFallback(string(op), cause)
	}
	return true
}

// archive stores result in the background when an archive is configured.
func (s *Service) archive(result *domain.AnalysisResult) {
	if s.deps.Archive == nil {
		return
	}
	snapshot := *result
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ArchiveTimeout)
		defer cancel()
		uri, err := s.deps.Archive.ArchiveAnalysis(ctx, &snapshot)
		if err != nil {
			s.logger.Warn("archiving analysis failed", zap.String("analysis_id", result.ID), zap.Error(err))
			return
		}
		s.logger.Debug("analysis archived", zap.String("analysis_id", result.ID), zap.String("uri", uri))
	}()
}

func (s *Service) recordAnalysis(op domain.Operation, result *domain.AnalysisResult, err error) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordAnalysis(string(op), result, err)
	}
}

// debugObserver logs classifier transitions when the user enabled debug mode.
func (s *Service) debugObserver(settings domain.Settings, op domain.Operation) func(from, to classify.State) {
	if !settings.DebugMode {
		return nil
	}
	return func(from, to classify.State) {
		s.logger.Info("remote classifier transition",
			zap.String("operation", string(op)),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
	}
}
