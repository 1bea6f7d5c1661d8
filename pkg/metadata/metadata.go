// Package metadata uploads token metadata to the launchpad's IPFS endpoint.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/types"
)

// DefaultEndpoint is the pump.fun metadata upload URL.
const DefaultEndpoint = "https://pump.fun/api/ipfs"

// Token is the metadata shown for a launched token.
type Token struct {
	Name        string
	Symbol      string
	Description string
	Twitter     string
	Telegram    string
	Website     string
	// Image is optional; ImageName defaults to "image.png".
	Image     []byte
	ImageName string
}

// Validate checks the fields the endpoint requires.
func (t Token) Validate() error {
	if t.Name == "" {
		return types.NewValidationError("name", "is required")
	}
	if t.Symbol == "" {
		return types.NewValidationError("symbol", "is required")
	}
	return nil
}

// Options tunes an Uploader.
type Options struct {
	Endpoint string
	Client   *http.Client
	// MaxTries bounds upload attempts; zero retries until ctx ends.
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Logger          zerolog.Logger
}

// Uploader posts metadata forms and returns the resulting URI.
type Uploader struct {
	opts Options
	log  zerolog.Logger
}

// NewUploader fills in defaults for unset options.
func NewUploader(opts Options) *Uploader {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 10 * time.Second
	}
	return &Uploader{opts: opts, log: opts.Logger}
}

type uploadResponse struct {
	MetadataURI string `json:"metadataUri"`
}

// Upload posts tok until the endpoint returns a metadata URI. Client errors other than
// 429 are not retried.
func (u *Uploader) Upload(ctx context.Context, tok Token) (string, error) {
	if err := tok.Validate(); err != nil {
		return "", err
	}
	body, contentType, err := encodeForm(tok)
	if err != nil {
		return "", err
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = u.opts.InitialInterval
	expo.MaxInterval = u.opts.MaxInterval

	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(expo),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			u.log.Warn().Err(err).Dur("retry_in", next).Msg("metadata upload failed")
		}),
	}
	if u.opts.MaxTries > 0 {
		retryOpts = append(retryOpts, backoff.WithMaxTries(u.opts.MaxTries))
	}

	uri, err := backoff.Retry(ctx, func() (string, error) {
		return u.post(ctx, body, contentType)
	}, retryOpts...)
	if err != nil {
		return "", fmt.Errorf("upload metadata: %w", err)
	}
	u.log.Info().Str("uri", uri).Str("symbol", tok.Symbol).Msg("metadata uploaded")
	return uri, nil
}

func (u *Uploader) post(ctx context.Context, body []byte, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := u.opts.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		epErr := types.EndpointError{Endpoint: u.opts.Endpoint, StatusCode: resp.StatusCode, Err: errors.New(string(raw))}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", backoff.Permanent(epErr)
		}
		return "", epErr
	}

	var out uploadResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode metadata response: %w", err)
	}
	if out.MetadataURI == "" {
		return "", errors.New("metadata response has no metadataUri")
	}
	return out.MetadataURI, nil
}

func encodeForm(tok Token) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ key, value string }{
		{"name", tok.Name},
		{"symbol", tok.Symbol},
		{"description", tok.Description},
		{"twitter", tok.Twitter},
		{"telegram", tok.Telegram},
		{"website", tok.Website},
		{"showName", "true"},
	}
	for _, f := range fields {
		if f.value == "" && f.key != "description" {
			continue
		}
		if err := w.WriteField(f.key, f.value); err != nil {
			return nil, "", err
		}
	}

	if len(tok.Image) > 0 {
		name := tok.ImageName
		if name == "" {
			name = "image.png"
		}
		part, err := w.CreateFormFile("file", filepath.Base(name))
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(tok.Image); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
