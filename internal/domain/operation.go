package domain

// Operation names a message-channel entry point.
type Operation string

const (
	OpAnalyzePage        Operation = "ANALYZE_PAGE"
	OpExtractPageContent Operation = "EXTRACT_PAGE_CONTENT"
	OpSmartAnalyze       Operation = "SMART_ANALYZE"
	OpGenerateFillData   Operation = "GENERATE_FILL_DATA"
	OpAutofillForm       Operation = "AUTOFILL_FORM"
	OpFillForm           Operation = "FILL_FORM"
	OpGetProfiles        Operation = "GET_PROFILES"
	OpSaveProfile        Operation = "SAVE_PROFILE"
	OpDeleteProfile      Operation = "DELETE_PROFILE"
	OpParseProfile       Operation = "PARSE_PROFILE"
	OpGetSettings        Operation = "GET_SETTINGS"
	OpSaveSettings       Operation = "SAVE_SETTINGS"
	OpGetPageInfo        Operation = "GET_PAGE_INFO"
)

// Operations lists every entry point in a stable order.
func Operations() []Operation {
	return []Operation{
		OpAnalyzePage, OpExtractPageContent, OpSmartAnalyze, OpGenerateFillData,
		OpAutofillForm, OpFillForm, OpGetProfiles, OpSaveProfile, OpDeleteProfile,
		OpParseProfile, OpGetSettings, OpSaveSettings, OpGetPageInfo,
	}
}
