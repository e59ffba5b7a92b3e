package fill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testforge/smartfill/internal/domain"
	"github.com/testforge/smartfill/internal/services/profile"
)

func parsed(values map[domain.SemanticLabel]string) domain.ParsedProfileInfo {
	return domain.ParsedProfileInfo{Values: values}
}

func TestResolve(t *testing.T) {
	info := parsed(map[domain.SemanticLabel]string{
		domain.LabelEmail:    "john@x.com",
		domain.LabelPhone:    "5551234567",
		domain.LabelFullName: "John Smith",
		domain.LabelCity:     "   ",
	})

	tests := []struct {
		name   string
		label  domain.SemanticLabel
		hint   string
		want   string
		wantOK bool
	}{
		{"direct email", domain.LabelEmail, "", "john@x.com", true},
		{"direct phone", domain.LabelPhone, "", "5551234567", true},
		{"missing value", domain.LabelCompany, "", "", false},
		{"blank value", domain.LabelCity, "", "", false},
		{"password placeholder", domain.LabelPassword, "", DemoPassword, true},
		{"confirm password placeholder", domain.LabelConfirmPassword, "", DemoPassword, true},
		{"unknown with email hint", domain.LabelUnknown, "Your E-mail", "john@x.com", true},
		{"unknown with chinese email hint", domain.LabelUnknown, "邮箱地址", "john@x.com", true},
		{"unknown with name hint", domain.LabelUnknown, "姓名", "John Smith", true},
		{"unknown with phone hint", domain.LabelUnknown, "Mobile", "5551234567", true},
		{"unknown with chinese phone hint", domain.LabelUnknown, "手机号码", "5551234567", true},
		{"unknown without hint", domain.LabelUnknown, "Favourite colour", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(tt.label, info, tt.hint)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_PasswordWithEmptyInfo(t *testing.T) {
	got, ok := Resolve(domain.LabelPassword, domain.ParsedProfileInfo{}, "")
	assert.True(t, ok)
	assert.Equal(t, DemoPassword, got)
}

func TestBuildFillMap(t *testing.T) {
	info := profile.Parse(domain.Profile{Name: "John Smith", Info: "email: john@x.com, phone: 555-123-4567"})
	fields := []domain.ClassifiedField{
		{Selector: "#e", SemanticLabel: domain.LabelEmail},
		{Selector: "#p", SemanticLabel: domain.LabelPhone},
	}

	fillMap, summary, err := BuildFillMap(fields, info, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.FillMap{"#e": "john@x.com", "#p": "5551234567"}, fillMap)
	assert.Equal(t, 2, summary.FieldsProcessed)
	assert.Equal(t, 2, summary.FieldsMatched)
	assert.Empty(t, summary.Collisions)
}

func TestBuildFillMap_SkipsUnmatched(t *testing.T) {
	info := parsed(map[domain.SemanticLabel]string{domain.LabelEmail: "a@b.co"})
	fields := []domain.ClassifiedField{
		{Selector: "#e", SemanticLabel: domain.LabelEmail},
		{Selector: "#c", SemanticLabel: domain.LabelCity},
		{Selector: "#x", SemanticLabel: domain.LabelUnknown, Label: "Notes"},
	}

	fillMap, summary, err := BuildFillMap(fields, info, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.FillMap{"#e": "a@b.co"}, fillMap)
	assert.Equal(t, 3, summary.FieldsProcessed)
	assert.Equal(t, 1, summary.FieldsMatched)
}

func TestBuildFillMap_NoMatches(t *testing.T) {
	fields := []domain.ClassifiedField{{Selector: "#c", SemanticLabel: domain.LabelCompany}}

	_, summary, err := BuildFillMap(fields, parsed(nil), nil)
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrCodeNoMatchedValues))
	assert.Equal(t, 1, summary.FieldsProcessed)
	assert.Equal(t, 0, summary.FieldsMatched)
}

func TestBuildFillMap_EmptyFields(t *testing.T) {
	fillMap, summary, err := BuildFillMap(nil, parsed(nil), nil)
	require.NoError(t, err)
	assert.Empty(t, fillMap)
	assert.Equal(t, 0, summary.FieldsProcessed)
}

func TestBuildFillMap_CollisionLastWins(t *testing.T) {
	info := parsed(map[domain.SemanticLabel]string{
		domain.LabelFirstName: "John",
		domain.LabelFullName:  "John Smith",
	})
	fields := []domain.ClassifiedField{
		{Selector: "form > input", SemanticLabel: domain.LabelFirstName},
		{Selector: "form > input", SemanticLabel: domain.LabelFullName},
	}

	fillMap, summary, err := BuildFillMap(fields, info, nil)
	require.NoError(t, err)
	assert.Equal(t, "John Smith", fillMap["form > input"])
	assert.Equal(t, []string{"form > input"}, summary.Collisions)
	assert.Equal(t, 1, summary.FieldsMatched)
}

func TestBuildFillPrompt(t *testing.T) {
	p := BuildFillPrompt(
		domain.Profile{Name: "John", Info: "john@x.com"},
		[]domain.ClassifiedField{{Selector: "#e", Type: "email", SemanticLabel: domain.LabelEmail}},
	)
	assert.Contains(t, p.User, "User Profile:\nName: John\nInfo: john@x.com\n\nForm Fields:\n")
	assert.Contains(t, p.User, `"selector": "#e"`)
	assert.Contains(t, p.User, "Only include fields that can be confidently filled")
}

func TestValidateRemoteFillMap(t *testing.T) {
	fields := []domain.ClassifiedField{{Selector: "#e"}, {Selector: "#p"}, {Selector: "#n"}, {Selector: "#b"}}

	raw := "```json\n{\"#e\": \"john@x.com\", \"#p\": 5551234567, \"#n\": \"  \", \"#made-up\": \"x\", \"#b\": {\"nested\": true}}\n```"
	got, err := ValidateRemoteFillMap(raw, fields)
	require.NoError(t, err)
	assert.Equal(t, domain.FillMap{"#e": "john@x.com", "#p": "5551234567"}, got)

	wrapped, err := ValidateRemoteFillMap(`{"fillData": {"#e": "a@b.co"}}`, fields)
	require.NoError(t, err)
	assert.Equal(t, domain.FillMap{"#e": "a@b.co"}, wrapped)

	_, err = ValidateRemoteFillMap("no json here", fields)
	assert.True(t, domain.HasCode(err, domain.ErrCodeResponseParse))
}
