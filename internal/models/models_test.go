package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func resolvedReport() *Report {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	resolved := created.Add(90 * time.Minute)
	minutes := 90
	return &Report{
		ID:            "4b1c6c56-2d4f-4a43-9d5b-6b7d2f0d8e11",
		AnonymousID:   "anon_1a2b3c4d",
		Type:          TypeVandalism,
		Severity:      SeverityHigh,
		Latitude:      9.40,
		Longitude:     -0.84,
		Location:      "Market",
		MediaURLs:     []string{"/uploads/a.jpg", "/uploads/b.jpg"},
		Status:        StatusResolved,
		AssignedTo:    strPtr("TPD-001"),
		InternalNotes: strPtr("suspect identified"),
		ResolvedAt:    &resolved,
		ResponseTime:  &minutes,
		CreatedAt:     created,
		UpdatedAt:     resolved,
	}
}

func TestTypeFromCategory(t *testing.T) {
	cases := map[string]ReportType{
		"Rubbish":             TypeRubbish,
		"Unsafe Area":         TypeUnsafeArea,
		"Suspicious Activity": TypeSuspiciousActivity,
		"Vandalism":           TypeVandalism,
		"Unknown Thing":       TypeRubbish,
		"vandalism":           TypeRubbish,
		"":                    TypeRubbish,
	}
	for label, want := range cases {
		assert.Equal(t, want, TypeFromCategory(label), "label %q", label)
	}
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, StatusRejected.Valid())
	assert.False(t, Status("CLOSED").Valid())
	assert.True(t, SeverityCritical.Valid())
	assert.False(t, Severity("URGENT").Valid())
	assert.True(t, TypeUnsafeArea.Valid())
	assert.False(t, ReportType("LITTER").Valid())

	assert.True(t, StatusResolved.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.Equal(t, []Status{StatusSubmitted, StatusReviewing, StatusInProgress}, ActiveStatuses())
}

func TestPublicViewOmitsPoliceFields(t *testing.T) {
	raw, err := json.Marshal(PublicView(resolvedReport()))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))

	for _, key := range []string{"assignedTo", "internalNotes", "resolvedAt", "id"} {
		assert.NotContains(t, fields, key)
	}
	assert.Equal(t, "anon_1a2b3c4d", fields["anonymousId"])
	assert.Equal(t, float64(90), fields["responseTime"])
	assert.Equal(t, []any{"/uploads/a.jpg", "/uploads/b.jpg"}, fields["mediaUrls"])
}

func TestPoliceViewCarriesFullRecord(t *testing.T) {
	raw, err := json.Marshal(PoliceView(resolvedReport()))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))

	assert.Equal(t, "4b1c6c56-2d4f-4a43-9d5b-6b7d2f0d8e11", fields["id"])
	assert.Equal(t, "TPD-001", fields["assignedTo"])
	assert.Equal(t, "suspect identified", fields["internalNotes"])
	assert.Contains(t, fields, "resolvedAt")
	assert.Equal(t, "anon_1a2b3c4d", fields["anonymousId"])
}

func TestPublicViewNeverNullMedia(t *testing.T) {
	r := resolvedReport()
	r.MediaURLs = nil

	raw, err := json.Marshal(PublicViews([]Report{*r}))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"mediaUrls":[]`)
}
