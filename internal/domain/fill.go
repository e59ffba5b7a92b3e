package domain

// FillMap maps CSS selectors to the values typed into them.
type FillMap map[string]string

// FillSummary counts the work done while building a FillMap.
// Collisions lists selectors that more than one field resolved to.
type FillSummary struct {
	FieldsProcessed int      `json:"fieldsProcessed"`
	FieldsMatched   int      `json:"fieldsMatched"`
	Collisions      []string `json:"collisions,omitempty"`
}

// FillResult is the output of fill-data generation.
type FillResult struct {
	FillMap        FillMap     `json:"fillData"`
	Summary        FillSummary `json:"summary"`
	Source         Source      `json:"source"`
	Fallback       bool        `json:"fallback"`
	FallbackReason string      `json:"fallbackReason,omitempty"`
}

// FieldStatus is the outcome of filling one field.
type FieldStatus string

const (
	FieldSuccess FieldStatus = "success"
	FieldFailed  FieldStatus = "failed"
)

// FieldResult reports a single injection.
type FieldResult struct {
	Selector string      `json:"selector"`
	Status   FieldStatus `json:"status"`
	Value    string      `json:"value,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// FillReport is returned by the injection collaborator.
type FillReport struct {
	Results      []FieldResult `json:"results"`
	TotalFields  int           `json:"totalFields"`
	SuccessCount int           `json:"successCount"`
	FailedCount  int           `json:"failedCount"`
}

// Add appends r and updates the counters.
func (r *FillReport) Add(res FieldResult) {
	r.Results = append(r.Results, res)
	r.TotalFields++
	if res.Status == FieldSuccess {
		r.SuccessCount++
	} else {
		r.FailedCount++
	}
}
