package moderation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"
)

// ErrClassifierNotConfigured is returned when no classifier credentials were available
// at startup.
var ErrClassifierNotConfigured = errors.New("image classifier not configured")

// AnalysisError reports that an image could not be analysed. The source path is kept
// for error reporting.
type AnalysisError struct {
	Source string
	Err    error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("failed to analyze image %s: %v", e.Source, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Classification is the raw classifier output.
type Classification struct {
	Likelihoods map[Category]Likelihood
	Labels      []Label
	// Text is the OCR transcript of the image, empty when none was found.
	Text string
}

// Classifier is the external vision collaborator.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (*Classification, error)
}

// Analyzer turns classifier output into an AnalysisResult under a Policy.
type Analyzer struct {
	classifier Classifier
	policy     Policy
	now        func() time.Time
}

func NewAnalyzer(classifier Classifier, policy Policy) *Analyzer {
	return &Analyzer{
		classifier: classifier,
		policy:     policy,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Policy returns the policy the analyzer was built with.
func (a *Analyzer) Policy() Policy {
	return a.policy
}

// Analyze classifies one image. Every failure is returned as *AnalysisError.
func (a *Analyzer) Analyze(ctx context.Context, image []byte, source string) (*AnalysisResult, error) {
	if a == nil || a.classifier == nil {
		return nil, &AnalysisError{Source: source, Err: ErrClassifierNotConfigured}
	}
	if len(image) == 0 {
		return nil, &AnalysisError{Source: source, Err: errors.New("empty image")}
	}

	cls, err := a.classifier.Classify(ctx, image)
	if err != nil {
		return nil, &AnalysisError{Source: source, Err: err}
	}
	if cls == nil || cls.Likelihoods == nil {
		return nil, &AnalysisError{Source: source, Err: errors.New("no safe search annotations found")}
	}

	return a.evaluate(cls), nil
}

// ImageSource loads stored image bytes by path.
type ImageSource interface {
	Read(ctx context.Context, path string) ([]byte, error)
}

// AnalyzeFile reads the image from src and analyses it. A read failure is an
// *AnalysisError like any classifier failure.
func (a *Analyzer) AnalyzeFile(ctx context.Context, src ImageSource, path string) (*AnalysisResult, error) {
	data, err := src.Read(ctx, path)
	if err != nil {
		return nil, &AnalysisError{Source: path, Err: err}
	}
	return a.Analyze(ctx, data, path)
}

func (a *Analyzer) evaluate(cls *Classification) *AnalysisResult {
	labels := normalizeLabels(cls.Labels)

	details := make(map[Category]Likelihood, len(SafeSearchCategories))
	violations := make([]Violation, 0)
	for _, c := range SafeSearchCategories {
		l := cls.Likelihoods[c]
		details[c] = l
		threshold, ok := a.policy.Threshold(c)
		if ok && l.AtLeast(threshold) {
			violations = append(violations, Violation{Category: c, Likelihood: l})
		}
	}

	forbidden := matchLabels(labels, a.policy.ForbiddenLabels, a.policy.ForbiddenConfidence, a.policy.AllowedLabels)
	if len(forbidden) > 0 {
		violations = append(violations, Violation{
			Category:   CategoryInappropriateContent,
			Likelihood: Detected,
			Labels:     forbidden,
		})
	}

	allowed := matchLabels(labels, a.policy.AllowedLabels, a.policy.AllowedConfidence, nil)

	return &AnalysisResult{
		IsSafe:       len(violations) == 0,
		Violations:   violations,
		Details:      details,
		Labels:       topLabels(labels, a.policy.MaxStoredLabels),
		DetectedText: truncateText(cls.Text, maxDetectedText),
		ContentCheck: ContentCheck{
			HasRelevantContent:   len(allowed) > 0,
			AllowedLabelsFound:   allowed,
			ForbiddenLabelsFound: forbidden,
		},
		Timestamp: a.now(),
	}
}

func normalizeLabels(in []Label) []Label {
	out := make([]Label, 0, len(in))
	for _, l := range in {
		out = append(out, Label{
			Description: strings.ToLower(strings.TrimSpace(l.Description)),
			Score:       l.Score,
			Confidence:  int(math.Round(l.Score * 100)),
		})
	}
	return out
}

// matchLabels returns the descriptions of labels that contain any vocabulary term
// as whole words and score strictly above minScore. A term is ignored for a label
// that also contains an exempt phrase built around that term ("chest of drawers").
func matchLabels(labels []Label, vocabulary []string, minScore float64, exempt []string) []string {
	var found []string
	for _, l := range labels {
		if l.Score <= minScore {
			continue
		}
		desc := words(l.Description)
		for _, term := range vocabulary {
			tw := words(term)
			if containsWords(desc, tw) && !exempted(desc, tw, exempt) {
				found = append(found, l.Description)
				break
			}
		}
	}
	return found
}

func exempted(desc, term []string, exempt []string) bool {
	for _, phrase := range exempt {
		pw := words(phrase)
		if len(pw) > len(term) && containsWords(pw, term) && containsWords(desc, pw) {
			return true
		}
	}
	return false
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsWords reports whether needle occurs in haystack as a contiguous run.
func containsWords(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, w := range needle {
			if haystack[i+j] != w {
				continue outer
			}
		}
		return true
	}
	return false
}

// maxDetectedText caps the OCR transcript carried on a result, in runes.
const maxDetectedText = 500

func truncateText(s string, limit int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= limit {
		return string(r)
	}
	return string(r[:limit])
}

func topLabels(labels []Label, limit int) []Label {
	sorted := make([]Label, len(labels))
	copy(sorted, labels)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
