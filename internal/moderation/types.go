// Package moderation holds the image safety vocabulary, the decision policy and the
// analyzer that turns raw classifier output into violations.
package moderation

import (
	"fmt"
	"strings"
	"time"
)

// Category is a safety dimension reported for an image.
type Category string

const (
	CategoryAdult                Category = "adult"
	CategoryViolence             Category = "violence"
	CategoryRacy                 Category = "racy"
	CategorySpoof                Category = "spoof"
	CategoryMedical              Category = "medical"
	CategoryInappropriateContent Category = "inappropriate_content"
)

// SafeSearchCategories are the categories scored by the classifier, in evaluation order.
var SafeSearchCategories = []Category{
	CategoryAdult,
	CategoryViolence,
	CategoryRacy,
	CategorySpoof,
	CategoryMedical,
}

// Likelihood is the classifier's six-point ordinal scale plus the label-derived Detected marker.
type Likelihood int

const (
	Unknown Likelihood = iota
	VeryUnlikely
	Unlikely
	Possible
	Likely
	VeryLikely
	// Detected is not on the ordinal scale; it marks label-based violations.
	Detected
)

var likelihoodNames = map[Likelihood]string{
	Unknown:      "UNKNOWN",
	VeryUnlikely: "VERY_UNLIKELY",
	Unlikely:     "UNLIKELY",
	Possible:     "POSSIBLE",
	Likely:       "LIKELY",
	VeryLikely:   "VERY_LIKELY",
	Detected:     "DETECTED",
}

// ParseLikelihood maps the classifier's enum names onto the scale.
// Unrecognised names map to Unknown.
func ParseLikelihood(s string) Likelihood {
	name := strings.ToUpper(strings.TrimSpace(s))
	for l, n := range likelihoodNames {
		if n == name {
			return l
		}
	}
	return Unknown
}

func (l Likelihood) String() string {
	if n, ok := likelihoodNames[l]; ok {
		return n
	}
	return likelihoodNames[Unknown]
}

// Score returns the ordinal score used by threshold comparisons.
// Detected has no ordinal position and scores 0.
func (l Likelihood) Score() int {
	if l < Unknown || l > VeryLikely {
		return 0
	}
	return int(l)
}

// AtLeast reports whether l sits at or above other on the ordinal scale.
func (l Likelihood) AtLeast(other Likelihood) bool {
	if l == Detected {
		return false
	}
	return l.Score() >= other.Score()
}

func (l Likelihood) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Likelihood) UnmarshalText(text []byte) error {
	name := strings.ToUpper(strings.TrimSpace(string(text)))
	for k, n := range likelihoodNames {
		if n == name {
			*l = k
			return nil
		}
	}
	return fmt.Errorf("unknown likelihood %q", string(text))
}

// Violation is one flagged signal. It is not modified after the analyzer emits it.
type Violation struct {
	Category   Category   `json:"category"`
	Likelihood Likelihood `json:"likelihood"`
	Labels     []string   `json:"labels,omitempty"`
}

// Label is a detected label with its confidence in [0,1].
type Label struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
	Confidence  int     `json:"confidence"`
}

// ContentCheck is the informational relevance signal. It never affects IsSafe.
type ContentCheck struct {
	HasRelevantContent   bool     `json:"has_relevant_content"`
	AllowedLabelsFound   []string `json:"allowed_labels_found"`
	ForbiddenLabelsFound []string `json:"forbidden_labels_found"`
}

// AnalysisResult is the analyzer output for one image. IsSafe holds exactly when
// Violations is empty.
type AnalysisResult struct {
	IsSafe       bool                    `json:"is_safe"`
	Violations   []Violation             `json:"violations"`
	Details      map[Category]Likelihood `json:"details"`
	Labels       []Label                 `json:"labels,omitempty"`
	DetectedText string                  `json:"detected_text,omitempty"`
	ContentCheck ContentCheck            `json:"content_check"`
	Timestamp    time.Time               `json:"timestamp"`
}

// Categories returns the violation categories in emission order.
func (r AnalysisResult) Categories() []Category {
	out := make([]Category, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, v.Category)
	}
	return out
}
