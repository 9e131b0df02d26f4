// Package optimizer compresses accepted uploads through the Tinify API.
package optimizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ahmetcoskunkizilkaya/imageguard/internal/storage"
)

const defaultEndpoint = "https://api.tinify.com"

type Config struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// Result describes one compressed file.
type Result struct {
	OriginalSize     int64     `json:"original_size"`
	CompressedSize   int64     `json:"compressed_size"`
	CompressionRatio string    `json:"compression_ratio"`
	SavedBytes       int64     `json:"saved_bytes"`
	OutputPath       string    `json:"output_path"`
	CompressionCount int64     `json:"compression_count"`
	Timestamp        time.Time `json:"timestamp"`
}

type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	store      storage.Store
	// compressions is the service-reported monthly usage. Advisory only.
	compressions atomic.Int64
}

func NewClient(cfg Config, store storage.Store) *Client {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		store:      store,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// CompressionCount returns the last usage count reported by the service.
func (c *Client) CompressionCount() int64 {
	if c == nil {
		return 0
	}
	return c.compressions.Load()
}

// Optimize compresses the stored file at inputPath and writes the result to outputPath,
// or back over inputPath when outputPath is empty.
func (c *Client) Optimize(ctx context.Context, inputPath, outputPath string, opts Options) (*Result, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	destination := outputPath
	if destination == "" {
		destination = inputPath
	}

	original, err := c.store.Read(ctx, inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", inputPath, err)
	}

	outputURL, err := c.shrink(ctx, original)
	if err != nil {
		return nil, err
	}

	compressed, contentType, err := c.fetchOutput(ctx, outputURL, opts)
	if err != nil {
		return nil, err
	}

	if err := c.store.Write(ctx, destination, compressed, contentType); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", destination, err)
	}

	originalSize := int64(len(original))
	compressedSize := int64(len(compressed))
	ratio := 0.0
	if originalSize > 0 {
		ratio = float64(originalSize-compressedSize) / float64(originalSize) * 100
	}

	return &Result{
		OriginalSize:     originalSize,
		CompressedSize:   compressedSize,
		CompressionRatio: fmt.Sprintf("%.2f%%", ratio),
		SavedBytes:       originalSize - compressedSize,
		OutputPath:       destination,
		CompressionCount: c.CompressionCount(),
		Timestamp:        time.Now().UTC(),
	}, nil
}

// OptimizeWithPreset runs Optimize with a named preset.
func (c *Client) OptimizeWithPreset(ctx context.Context, inputPath, outputPath, preset string) (*Result, error) {
	return c.Optimize(ctx, inputPath, outputPath, Preset(preset))
}

type shrinkResponse struct {
	Output struct {
		Size int64  `json:"size"`
		Type string `json:"type"`
		URL  string `json:"url"`
	} `json:"output"`
}

func (c *Client) shrink(ctx context.Context, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/shrink", bytes.NewReader(data))
	if err != nil {
		return "", &Error{Kind: KindClient, Message: err.Error(), Err: err}
	}

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body shrinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &Error{Kind: KindServer, Status: resp.StatusCode, Message: "invalid shrink response", Err: err}
	}
	if body.Output.URL != "" {
		return body.Output.URL, nil
	}
	if loc := resp.Header.Get("Location"); loc != "" {
		return loc, nil
	}
	return "", &Error{Kind: KindServer, Status: resp.StatusCode, Message: "shrink response has no output location"}
}

type transformRequest struct {
	Resize  *Resize `json:"resize,omitempty"`
	Convert *struct {
		Type string `json:"type"`
	} `json:"convert,omitempty"`
}

func (c *Client) fetchOutput(ctx context.Context, outputURL string, opts Options) ([]byte, string, error) {
	var req *http.Request
	var err error
	if opts.Resize == nil && opts.Convert == "" {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, outputURL, nil)
	} else {
		body := transformRequest{Resize: opts.Resize}
		if opts.Convert != "" {
			body.Convert = &struct {
				Type string `json:"type"`
			}{Type: opts.Convert}
		}
		payload, mErr := json.Marshal(body)
		if mErr != nil {
			return nil, "", &Error{Kind: KindClient, Message: mErr.Error(), Err: mErr}
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, outputURL, bytes.NewReader(payload))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return nil, "", &Error{Kind: KindClient, Message: err.Error(), Err: err}
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &Error{Kind: KindConnection, Message: "failed to read output", Err: err}
	}
	return data, resp.Header.Get("Content-Type"), nil
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do sends an authenticated request and maps failures onto error kinds. The caller
// owns the body of a successful response.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth("api", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &Error{Kind: KindConnection, Message: "error while connecting", Err: err}
	}

	if n, perr := strconv.ParseInt(resp.Header.Get("Compression-Count"), 10, 64); perr == nil {
		c.compressions.Store(n)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	var body errorBody
	_ = json.NewDecoder(resp.Body).Decode(&body)
	msg := body.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return nil, &Error{Kind: kindForStatus(resp.StatusCode), Status: resp.StatusCode, Message: msg}
}
