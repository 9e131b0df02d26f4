package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func v(c Category, l Likelihood) Violation {
	return Violation{Category: c, Likelihood: l}
}

func TestDetermineSeverity(t *testing.T) {
	tests := []struct {
		name       string
		violations []Violation
		want       Severity
	}{
		{"no violations", nil, SeverityLow},
		{"adult very likely", []Violation{v(CategoryAdult, VeryLikely)}, SeverityCritical},
		{"violence likely", []Violation{v(CategoryViolence, Likely)}, SeverityCritical},
		{"adult unlikely", []Violation{v(CategoryAdult, Unlikely)}, SeverityMedium},
		{"adult possible", []Violation{v(CategoryAdult, Possible)}, SeverityMedium},
		{"racy likely", []Violation{v(CategoryRacy, Likely)}, SeverityHigh},
		{"inappropriate detected", []Violation{{Category: CategoryInappropriateContent, Likelihood: Detected, Labels: []string{"person"}}}, SeverityHigh},
		{"spoof possible", []Violation{v(CategorySpoof, Possible)}, SeverityMedium},
		{
			"three low violations",
			[]Violation{v(CategoryAdult, Unlikely), v(CategorySpoof, Possible), v(CategoryMedical, Possible)},
			SeverityHigh,
		},
		{
			"critical wins over high",
			[]Violation{v(CategoryRacy, VeryLikely), v(CategoryAdult, Likely)},
			SeverityCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetermineSeverity(tt.violations))
		})
	}
}

func TestShouldAutoReject(t *testing.T) {
	tests := []struct {
		name       string
		violations []Violation
		want       bool
	}{
		{"no violations", nil, false},
		{"adult unlikely", []Violation{v(CategoryAdult, Unlikely)}, true},
		{"violence very unlikely", []Violation{v(CategoryViolence, VeryUnlikely)}, false},
		{"inappropriate detected", []Violation{v(CategoryInappropriateContent, Detected)}, true},
		{"racy possible", []Violation{v(CategoryRacy, Possible)}, false},
		{"racy likely", []Violation{v(CategoryRacy, Likely)}, true},
		{"spoof very likely", []Violation{v(CategorySpoof, VeryLikely)}, false},
		{"medical likely", []Violation{v(CategoryMedical, Likely)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldAutoReject(tt.violations))
		})
	}
}

func allViolationSets() [][]Violation {
	var singles []Violation
	for _, c := range SafeSearchCategories {
		for l := Unknown; l <= VeryLikely; l++ {
			singles = append(singles, v(c, l))
		}
	}
	singles = append(singles, v(CategoryInappropriateContent, Detected))

	sets := [][]Violation{nil}
	for i := range singles {
		sets = append(sets, []Violation{singles[i]})
		for j := i + 1; j < len(singles); j++ {
			sets = append(sets, []Violation{singles[i], singles[j]})
		}
	}
	return sets
}

func TestCriticalImpliesAutoReject(t *testing.T) {
	for _, set := range allViolationSets() {
		if DetermineSeverity(set) == SeverityCritical {
			assert.True(t, ShouldAutoReject(set), "critical set must auto-reject: %+v", set)
		}
	}
}

func TestAutoRejectDoesNotImplyCritical(t *testing.T) {
	set := []Violation{v(CategoryAdult, Unlikely)}

	assert.True(t, ShouldAutoReject(set))
	assert.Equal(t, SeverityMedium, DetermineSeverity(set))
}

func TestVeryLikelyAdultOrViolenceAlwaysCritical(t *testing.T) {
	for _, set := range allViolationSets() {
		for _, c := range []Category{CategoryAdult, CategoryViolence} {
			extended := append(append([]Violation{}, set...), v(c, VeryLikely))
			assert.Equal(t, SeverityCritical, DetermineSeverity(extended), "set: %+v", extended)
		}
	}
}

func TestSeverityRank(t *testing.T) {
	assert.Greater(t, SeverityCritical.Rank(), SeverityHigh.Rank())
	assert.Greater(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	assert.Greater(t, SeverityMedium.Rank(), SeverityLow.Rank())
	assert.False(t, Severity("urgent").Valid())
}
