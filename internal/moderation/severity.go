package moderation

// Severity is the review-queue urgency bucket.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for sorting; higher is more urgent.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Valid reports whether s is one of the four buckets.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// DetermineSeverity buckets a violation set for review prioritisation.
func DetermineSeverity(violations []Violation) Severity {
	if len(violations) == 0 {
		return SeverityLow
	}

	var critical, high bool
	for _, v := range violations {
		switch v.Category {
		case CategoryAdult, CategoryViolence:
			if v.Likelihood == Likely || v.Likelihood == VeryLikely {
				critical = true
			}
		case CategoryRacy, CategoryInappropriateContent:
			if v.Likelihood == Likely || v.Likelihood == VeryLikely || v.Likelihood == Detected {
				high = true
			}
		}
	}

	switch {
	case critical:
		return SeverityCritical
	case high, len(violations) > 2:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// ShouldAutoReject decides whether the stored file is discarded without waiting for
// review. It is stricter than the critical bucket: a lone adult=UNLIKELY auto-rejects
// while only rating medium.
func ShouldAutoReject(violations []Violation) bool {
	for _, v := range violations {
		switch v.Category {
		case CategoryAdult, CategoryViolence:
			if v.Likelihood.AtLeast(Unlikely) {
				return true
			}
		case CategoryInappropriateContent:
			return true
		case CategoryRacy:
			if v.Likelihood.AtLeast(Likely) {
				return true
			}
		}
	}
	return false
}
