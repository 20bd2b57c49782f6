// Package extract retrieves raw country records from the REST endpoint.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/country-ingress/pkg/model"
)

var (
	// ErrUnexpectedStatus is wrapped when the endpoint answers with a non-2xx status
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	// ErrNotAnArray is wrapped when the response body is valid JSON but not an array
	ErrNotAnArray = errors.New("response is not a JSON array")
)

// maxErrorBody caps how much of a failed response is echoed into the error
const maxErrorBody = 512

// Fetcher performs a single GET against the countries endpoint
type Fetcher struct {
	client *http.Client
	logger *zap.Logger
}

// NewFetcher creates a Fetcher with its own HTTP client
func NewFetcher(timeout time.Duration, logger *zap.Logger) *Fetcher {
	return NewFetcherWithClient(&http.Client{Timeout: timeout}, logger)
}

// NewFetcherWithClient creates a Fetcher around a caller-supplied client
func NewFetcherWithClient(client *http.Client, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client: client,
		logger: logger.Named("fetcher"),
	}
}

// FetchRaw returns the response body elements without decoding them into records
func (f *Fetcher) FetchRaw(ctx context.Context, url string) ([]json.RawMessage, error) {
	f.logger.Info("Attempting to fetch data", zap.String("url", url))
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("fetch %s: %w: %d %s", url, ErrUnexpectedStatus, resp.StatusCode, string(snippet))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(body, &elements); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("decode response: %w", ErrNotAnArray)
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if elements == nil {
		// a literal null body
		return nil, fmt.Errorf("decode response: %w", ErrNotAnArray)
	}

	f.logger.Info("Fetched data",
		zap.Int("records", len(elements)),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)))

	return elements, nil
}

// Fetch GETs url and decodes each array element into a RawCountry.
// Elements that are not objects of the expected shape are skipped with a warning.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]model.RawCountry, error) {
	elements, err := f.FetchRaw(ctx, url)
	if err != nil {
		return nil, err
	}

	countries := make([]model.RawCountry, 0, len(elements))
	for i, element := range elements {
		var rc model.RawCountry
		if err := json.Unmarshal(element, &rc); err != nil {
			f.logger.Warn("Skipping undecodable country record",
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		countries = append(countries, rc)
	}

	if skipped := len(elements) - len(countries); skipped > 0 {
		f.logger.Warn("Some records could not be decoded",
			zap.Int("skipped", skipped),
			zap.Int("decoded", len(countries)))
	}

	return countries, nil
}
