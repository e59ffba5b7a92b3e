package autofill

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/testforge/smartfill/internal/domain"
	"github.com/testforge/smartfill/internal/llm"
	"github.com/testforge/smartfill/internal/services/classify"
	"github.com/testforge/smartfill/internal/services/extraction"
	"github.com/testforge/smartfill/internal/services/sanitize"
)

// AnalyzePage extracts the forms of a page and classifies their fields with
// the provider selected in settings.
func (s *Service) AnalyzePage(ctx context.Context, req AnalyzeRequest) (*domain.AnalysisResult, error) {
	result, err := s.analyzePage(ctx, req)
	s.recordAnalysis(domain.OpAnalyzePage, result, err)
	if err != nil {
		return nil, err
	}
	s.archive(result)
	return result, nil
}

func (s *Service) analyzePage(ctx context.Context, req AnalyzeRequest) (*domain.AnalysisResult, error) {
	settings, err := s.settings(ctx)
	if err != nil {
		return nil, err
	}

	page, err := s.pageData(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(page.Forms) == 0 {
		return nil, domain.ErrNoFormsFound()
	}

	s.logger.Info("analyzing page",
		zap.String("url", page.URL),
		zap.String("provider", string(settings.ModelProvider)),
		zap.Int("forms", len(page.Forms)),
		zap.Int("fields", page.FieldCount()),
	)

	if !settings.ModelProvider.IsRemote() {
		return classify.ClassifyPage(page), nil
	}

	result, err := s.classifyRemote(ctx, settings, domain.OpAnalyzePage, classify.BuildFieldsPrompt(page), page.URL, page.PageType)
	if err == nil {
		return result, nil
	}
	if !s.fallback(ctx, domain.OpAnalyzePage, settings, err) {
		return nil, err
	}
	return flagged(classify.ClassifyPage(page), err), nil
}

// ExtractContent sanitizes the page markup and reports its size.
func (s *Service) ExtractContent(ctx context.Context, req ContentRequest) (*ContentResult, error) {
	req, err := s.content(ctx, req)
	if err != nil {
		return nil, err
	}

	res := s.sanitizer.Sanitize(req.HTML)
	return &ContentResult{
		Content: domain.PageContent{
			URL:      req.URL,
			Title:    req.Title,
			HTML:     res.HTML,
			PageType: extraction.InferPageType(req.URL, req.Title, res.HTML),
			Stats:    res.Stats,
		},
		Truncated: res.Truncated,
	}, nil
}

// SmartAnalyze sends the sanitized page to the remote model, which finds
// the fields itself. Content over the user's token budget is rejected before
// any call. With the local provider, or on remote failure when fallback is
// allowed, the local extractor and classifier answer instead.
func (s *Service) SmartAnalyze(ctx context.Context, req ContentRequest) (*domain.AnalysisResult, error) {
	result, err := s.smartAnalyze(ctx, req)
	s.recordAnalysis(domain.OpSmartAnalyze, result, err)
	if err != nil {
		return nil, err
	}
	s.archive(result)
	return result, nil
}

func (s *Service) smartAnalyze(ctx context.Context, req ContentRequest) (*domain.AnalysisResult, error) {
	settings, err := s.settings(ctx)
	if err != nil {
		return nil, err
	}
	req, err = s.content(ctx, req)
	if err != nil {
		return nil, err
	}

	local := func() (*domain.AnalysisResult, error) {
		doc, err := extraction.ParseHTMLString(req.HTML)
		if err != nil {
			return nil, domain.ErrValidation("page content is not parseable HTML").WithCause(err)
		}
		page := s.extractor.ExtractPage(doc, req.URL)
		if len(page.Forms) == 0 {
			return nil, domain.ErrNoFormsFound()
		}
		return classify.ClassifyPage(page), nil
	}

	if !settings.ModelProvider.IsRemote() {
		return local()
	}

	content, err := s.ExtractContent(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := sanitize.CheckBudget(content.Content.Stats, settings.MaxContentSize); err != nil {
		return nil, err
	}

	s.logger.Info("smart analysis",
		zap.String("url", req.URL),
		zap.String("provider", string(settings.ModelProvider)),
		zap.Int("estimated_tokens", content.Content.Stats.EstimatedTokens),
		zap.Bool("truncated", content.Truncated),
	)

	result, err := s.classifyRemote(ctx, settings, domain.OpSmartAnalyze,
		classify.BuildContentPrompt(content.Content), req.URL, content.Content.PageType)
	if err == nil {
		return result, nil
	}
	if !s.fallback(ctx, domain.OpSmartAnalyze, settings, err) {
		return nil, err
	}

	localResult, localErr := local()
	if localErr != nil {
		return nil, localErr
	}
	return flagged(localResult, err), nil
}

// GetPageInfo summarizes a page without classifying it.
func (s *Service) GetPageInfo(ctx context.Context, req PageInfoRequest) (*PageInfo, error) {
	content, err := s.content(ctx, ContentRequest{URL: req.URL, HTML: req.HTML})
	if err != nil {
		return nil, err
	}

	doc, err := extraction.ParseHTMLString(content.HTML)
	if err != nil {
		return nil, domain.ErrValidation("page content is not parseable HTML").WithCause(err)
	}
	page := s.extractor.ExtractPage(doc, content.URL)
	title := page.Title
	if title == "" {
		title = content.Title
	}

	return &PageInfo{
		URL:        content.URL,
		Title:      title,
		FormCount:  doc.Find("form").Length(),
		FieldCount: doc.Find("input, select, textarea").Length(),
		PageType:   page.PageType,
		Meta:       page.Meta,
	}, nil
}

func (s *Service) classifyRemote(ctx context.Context, settings domain.Settings, op domain.Operation, prompt llm.Prompt, pageURL string, pageType domain.PageType) (*domain.AnalysisResult, error) {
	provider, err := s.deps.Providers.For(settings)
	if err != nil {
		return nil, err
	}

	classifier := classify.NewRemoteClassifier(provider, s.logger)
	if fn := s.debugObserver(settings, op); fn != nil {
		classifier.OnStateChange(fn)
	}
	return classifier.Classify(ctx, prompt, pageURL, pageType)
}

// pageData resolves the request into extracted page data.
func (s *Service) pageData(ctx context.Context, req AnalyzeRequest) (domain.PageData, error) {
	if req.Page != nil {
		page := *req.Page
		if page.URL == "" {
			page.URL = req.URL
		}
		if page.PageType == "" {
			page.PageType = extraction.InferPageType(page.URL, page.Title, "")
		}
		return page, nil
	}

	content, err := s.content(ctx, ContentRequest{URL: req.URL, HTML: req.HTML})
	if err != nil {
		return domain.PageData{}, err
	}
	doc, err := extraction.ParseHTMLString(content.HTML)
	if err != nil {
		return domain.PageData{}, domain.ErrValidation("page content is not parseable HTML").WithCause(err)
	}
	return s.extractor.ExtractPage(doc, content.URL), nil
}

// content fills in the markup from the page source when only a URL is given.
func (s *Service) content(ctx context.Context, req ContentRequest) (ContentRequest, error) {
	if strings.TrimSpace(req.HTML) != "" {
		return req, nil
	}
	if req.URL == "" {
		return req, domain.ErrValidation("either html or url is required")
	}
	if s.deps.PageSource == nil {
		return req, domain.ErrValidation("html is required when no browser is configured")
	}

	snap, err := s.deps.PageSource.Fetch(ctx, req.URL)
	if err != nil {
		return req, domain.ErrInjection(err).WithDetails("rendering " + req.URL)
	}
	req.HTML = snap.HTML
	if req.Title == "" {
		req.Title = snap.Title
	}
	if snap.URL != "" {
		req.URL = snap.URL
	}
	return req, nil
}

// flagged marks a local result as the answer to a failed remote attempt.
func flagged(result *domain.AnalysisResult, cause error) *domain.AnalysisResult {
	result.Fallback = true
	result.FallbackReason = fallbackReason(cause)
	return result
}

func fallbackReason(cause error) string {
	if appErr, ok := domain.AsAppError(cause); ok {
		return appErr.Code + ": " + appErr.Message
	}
	return cause.Error()
}
