// Package vision adapts the Google Cloud Vision annotate API to moderation.Classifier.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ahmetcoskunkizilkaya/imageguard/internal/moderation"
	"google.golang.org/api/option"
	visionapi "google.golang.org/api/vision/v1"
)

const defaultMaxLabels = 20

// Options configures the Vision client. CredentialsFile falls back to
// GOOGLE_APPLICATION_CREDENTIALS when empty.
type Options struct {
	CredentialsFile string
	Endpoint        string
	Timeout         time.Duration
	MaxLabels       int64
	// HTTPClient replaces the authenticated transport; used against emulators and in tests.
	HTTPClient *http.Client
}

type Client struct {
	svc       *visionapi.Service
	timeout   time.Duration
	maxLabels int64
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	var clientOpts []option.ClientOption
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(opts.HTTPClient))
	} else if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	svc, err := visionapi.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}

	maxLabels := opts.MaxLabels
	if maxLabels <= 0 {
		maxLabels = defaultMaxLabels
	}
	return &Client{svc: svc, timeout: opts.Timeout, maxLabels: maxLabels}, nil
}

// Classify runs safe-search, label and text detection in a single annotate call.
func (c *Client) Classify(ctx context.Context, image []byte) (*moderation.Classification, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := &visionapi.BatchAnnotateImagesRequest{
		Requests: []*visionapi.AnnotateImageRequest{{
			Image: &visionapi.Image{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []*visionapi.Feature{
				{Type: "SAFE_SEARCH_DETECTION"},
				{Type: "LABEL_DETECTION", MaxResults: c.maxLabels},
				{Type: "TEXT_DETECTION"},
			},
		}},
	}

	resp, err := c.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("vision annotate: %w", err)
	}
	if len(resp.Responses) == 0 {
		return nil, errors.New("vision annotate: empty response")
	}

	r := resp.Responses[0]
	if r.Error != nil && r.Error.Code != 0 {
		return nil, fmt.Errorf("vision annotate: %s (code %d)", r.Error.Message, r.Error.Code)
	}
	if r.SafeSearchAnnotation == nil {
		return nil, errors.New("vision annotate: no safe search annotations found")
	}

	ss := r.SafeSearchAnnotation
	cls := &moderation.Classification{
		Likelihoods: map[moderation.Category]moderation.Likelihood{
			moderation.CategoryAdult:    moderation.ParseLikelihood(ss.Adult),
			moderation.CategoryViolence: moderation.ParseLikelihood(ss.Violence),
			moderation.CategoryRacy:     moderation.ParseLikelihood(ss.Racy),
			moderation.CategorySpoof:    moderation.ParseLikelihood(ss.Spoof),
			moderation.CategoryMedical:  moderation.ParseLikelihood(ss.Medical),
		},
		Labels: make([]moderation.Label, 0, len(r.LabelAnnotations)),
	}
	for _, l := range r.LabelAnnotations {
		if l == nil {
			continue
		}
		cls.Labels = append(cls.Labels, moderation.Label{Description: l.Description, Score: l.Score})
	}
	// The first text annotation carries the full transcript.
	if len(r.TextAnnotations) > 0 && r.TextAnnotations[0] != nil {
		cls.Text = r.TextAnnotations[0].Description
	}
	return cls, nil
}
