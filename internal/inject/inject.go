// Package inject writes fill values into live pages.
package inject

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/testforge/smartfill/internal/domain"
)

// ErrElementNotFound is reported for selectors that match nothing.
var ErrElementNotFound = errors.New("Element not found")

// Injector fills a page, identified by URL, with a fill map.
type Injector interface {
	Fill(ctx context.Context, pageURL string, fillMap domain.FillMap) (domain.FillReport, error)
}

// Snapshot is a rendered page as seen by a browser.
type Snapshot struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	HTML  string `json:"html"`
}

// PageSource renders a page for analysis.
type PageSource interface {
	Fetch(ctx context.Context, pageURL string) (Snapshot, error)
}

// Target is an open page that values can be written into. Selectors address
// the first matching element.
type Target interface {
	Exists(selector string) (bool, error)
	Kind(selector string) (tag, typ string, err error)
	Clear(selector string) error
	TypeText(selector, text string, delay time.Duration) error
	SetValue(selector, value string) error
	Dispatch(selector, event string) error
	Highlight(selector string, d time.Duration) error
}

// Options controls pacing and feedback.
type Options struct {
	TypingDelay       time.Duration
	HighlightDuration time.Duration
	FillDelay         time.Duration
}

// DefaultOptions matches a human typing into the page.
func DefaultOptions() Options {
	return Options{
		TypingDelay:       10 * time.Millisecond,
		HighlightDuration: 2 * time.Second,
	}
}

// events fired after every write, in order.
var events = []string{"input", "change", "blur"}

// typed reports whether a control gets per-character typing.
func typed(tag, typ string) bool {
	if tag == "textarea" {
		return true
	}
	switch typ {
	case "text", "email", "tel":
		return true
	}
	return false
}

// FillTarget writes every entry of fillMap into t in selector order. A field
// that fails is reported and the rest still run; cancellation marks the
// remaining fields failed.
func FillTarget(ctx context.Context, t Target, fillMap domain.FillMap, opts Options, logger *zap.Logger) domain.FillReport {
	if logger == nil {
		logger = zap.NewNop()
	}

	selectors := make([]string, 0, len(fillMap))
	for s := range fillMap {
		selectors = append(selectors, s)
	}
	sort.Strings(selectors)

	report := domain.FillReport{Results: make([]domain.FieldResult, 0, len(selectors))}
	for i, selector := range selectors {
		if err := ctx.Err(); err != nil {
			for _, rest := range selectors[i:] {
				report.Add(domain.FieldResult{Selector: rest, Status: domain.FieldFailed, Error: err.Error()})
			}
			break
		}

		value := fillMap[selector]
		if err := fillField(t, selector, value, opts); err != nil {
			logger.Debug("field fill failed", zap.String("selector", selector), zap.Error(err))
			report.Add(domain.FieldResult{Selector: selector, Status: domain.FieldFailed, Error: err.Error()})
			continue
		}
		report.Add(domain.FieldResult{Selector: selector, Status: domain.FieldSuccess, Value: value})

		if opts.HighlightDuration > 0 {
			if err := t.Highlight(selector, opts.HighlightDuration); err != nil {
				logger.Debug("highlight failed", zap.String("selector", selector), zap.Error(err))
			}
		}
		if opts.FillDelay > 0 && i < len(selectors)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(opts.FillDelay):
			}
		}
	}

	logger.Info("form filled",
		zap.Int("total", report.TotalFields),
		zap.Int("success", report.SuccessCount),
		zap.Int("failed", report.FailedCount),
	)
	return report
}

func fillField(t Target, selector, value string, opts Options) error {
	ok, err := t.Exists(selector)
	if err != nil {
		return err
	}
	if !ok {
		return ErrElementNotFound
	}

	tag, typ, err := t.Kind(selector)
	if err != nil {
		return err
	}
	if err := t.Clear(selector); err != nil {
		return err
	}

	if typed(tag, typ) {
		err = t.TypeText(selector, value, opts.TypingDelay)
	} else {
		err = t.SetValue(selector, value)
	}
	if err != nil {
		return err
	}

	for _, ev := range events {
		if err := t.Dispatch(selector, ev); err != nil {
			return err
		}
	}
	return nil
}
