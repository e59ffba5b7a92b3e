package fill

import (
	"go.uber.org/zap"

	"github.com/testforge/smartfill/internal/domain"
)

// BuildFillMap resolves every field. Two fields sharing a selector keep the
// later value; the selector is recorded in the summary's collisions.
// It fails with NO_MATCHED_VALUES when fields were processed but none matched.
func BuildFillMap(fields []domain.ClassifiedField, info domain.ParsedProfileInfo, logger *zap.Logger) (domain.FillMap, domain.FillSummary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fillMap := make(domain.FillMap)
	summary := domain.FillSummary{FieldsProcessed: len(fields)}
	seen := make(map[string]bool, len(fields))

	for _, f := range fields {
		value, ok := Resolve(f.SemanticLabel, info, f.Hint())
		if !ok {
			continue
		}
		if seen[f.Selector] {
			summary.Collisions = append(summary.Collisions, f.Selector)
			logger.Warn("selector collision, last value wins",
				zap.String("selector", f.Selector),
				zap.String("label", string(f.SemanticLabel)),
			)
		}
		seen[f.Selector] = true
		fillMap[f.Selector] = value
	}

	summary.FieldsMatched = len(fillMap)

	logger.Debug("fill map built",
		zap.Int("fields_processed", summary.FieldsProcessed),
		zap.Int("fields_matched", summary.FieldsMatched),
	)

	if summary.FieldsMatched == 0 && summary.FieldsProcessed > 0 {
		return nil, summary, domain.ErrNoMatchedValues(summary.FieldsProcessed)
	}
	return fillMap, summary, nil
}
