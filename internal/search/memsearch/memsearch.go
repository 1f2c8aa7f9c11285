// Package memsearch implements search.Client over the memsearch command line
// tool. Every call shells out to the binary and decodes its --json output.
package memsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/Yates-Labs/memctx/internal/search"
)

// ErrBinaryNotFound is returned when the memsearch executable is not on PATH
var ErrBinaryNotFound = errors.New("memsearch CLI not found. Please install it using: pip install memsearch")

// ErrConfigKey is returned by ConfigSet without a key
var ErrConfigKey = errors.New("memsearch config set requires a key")

// Config holds CLI client settings
type Config struct {
	Binary string // Executable name or path
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{Binary: "memsearch"}
}

// runFunc runs the binary with args and returns its stdout
type runFunc func(ctx context.Context, bin string, args ...string) ([]byte, error)

// Client talks to memsearch through its CLI
type Client struct {
	bin    string
	run    runFunc
	logger *slog.Logger
}

// New creates a CLI client.
func New(config Config, logger *slog.Logger) *Client {
	if config.Binary == "" {
		config.Binary = DefaultConfig().Binary
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		bin:    config.Binary,
		run:    execRun,
		logger: logger.With("component", "memsearch"),
	}
}

// commandError is a non-zero exit with the captured stderr
type commandError struct {
	args   []string
	stderr string
	err    error
}

func (e *commandError) Error() string {
	msg := strings.TrimSpace(e.stderr)
	if msg == "" {
		msg = e.err.Error()
	}
	return fmt.Sprintf("memsearch %s: %s", strings.Join(e.args, " "), msg)
}

func (e *commandError) Unwrap() error { return e.err }

func execRun(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrBinaryNotFound, err)
		}
		return out, &commandError{args: args, stderr: stderr.String(), err: err}
	}
	return out, nil
}

// classify maps CLI failures onto the search sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ce *commandError
	if errors.As(err, &ce) {
		msg := strings.ToLower(ce.stderr)
		if strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist") {
			return fmt.Errorf("%w: %w", search.ErrNotFound, err)
		}
	}
	if errors.Is(err, ErrBinaryNotFound) {
		return fmt.Errorf("%w: %w", search.ErrUnavailable, err)
	}
	return err
}

// searchSource is where a memsearch result came from
type searchSource struct {
	Name string `json:"name"`
	URI  string `json:"uri,omitempty"`
	ID   string `json:"id,omitempty"`
}

type searchResult struct {
	Content    string            `json:"content"`
	Source     searchSource      `json:"source"`
	ChunkHash  string            `json:"chunk_hash"`
	Score      float64           `json:"score"`
	ChunkIndex *int              `json:"chunk_index,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type searchResponse struct {
	Query      string         `json:"query"`
	Results    []searchResult `json:"results"`
	DurationMs float64        `json:"durationMs,omitempty"`
}

func (r searchResult) hit() search.Hit {
	var meta map[string]string
	if len(r.Metadata) > 0 || r.Source.ID != "" || r.ChunkIndex != nil {
		meta = make(map[string]string, len(r.Metadata)+2)
		for k, v := range r.Metadata {
			meta[k] = v
		}
		if r.Source.ID != "" {
			meta["source_id"] = r.Source.ID
		}
		if r.ChunkIndex != nil {
			meta["chunk_index"] = strconv.Itoa(*r.ChunkIndex)
		}
	}
	return search.Hit{
		Content:   r.Content,
		Score:     r.Score,
		Origin:    r.Source.URI,
		Name:      r.Source.Name,
		ChunkHash: r.ChunkHash,
		Metadata:  meta,
	}
}

// searchArgs builds the argument list for a search call.
func searchArgs(query string, opts search.Options) []string {
	args := []string{"search", query, "--json"}
	if opts.TopK > 0 {
		args = append(args, "--top-k", strconv.Itoa(opts.TopK))
	}
	// Always sent so a zero floor is not replaced by the CLI's own default.
	args = append(args, "--min-score", strconv.FormatFloat(opts.MinScore, 'f', -1, 64))
	if opts.Filter != "" {
		args = append(args, "--filter", opts.Filter)
	}
	if opts.Collection != "" {
		args = append(args, "--collection", opts.Collection)
	}
	return args
}

// Search implements search.Client.
func (c *Client) Search(ctx context.Context, query string, opts search.Options) search.Result {
	if strings.TrimSpace(query) == "" {
		return search.TransportError(search.ErrEmptyQuery)
	}

	out, err := c.run(ctx, c.bin, searchArgs(query, opts)...)
	if err != nil {
		return search.ResultFromError(classify(err))
	}

	results, err := decodeResults(out)
	if err != nil {
		return search.TransportError(fmt.Errorf("failed to decode memsearch output: %w", err))
	}

	hits := make([]search.Hit, len(results))
	for i, r := range results {
		hits[i] = r.hit()
	}
	c.logger.Debug("search completed", "collection", opts.Collection, "hits", len(hits))
	return search.OK(hits)
}

// decodeResults accepts the response envelope or a bare result array.
func decodeResults(out []byte) ([]searchResult, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, nil
	}
	if out[0] == '[' {
		var results []searchResult
		if err := json.Unmarshal(out, &results); err != nil {
			return nil, err
		}
		return results, nil
	}

	var resp searchResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Version returns the output of memsearch --version. Available uses it
// to detect the binary.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.run(ctx, c.bin, "--version")
	if err != nil {
		return "", classify(err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Available reports whether the binary answers --version.
func (c *Client) Available(ctx context.Context) bool {
	_, err := c.Version(ctx)
	return err == nil
}

// Index indexes the markdown under path.
func (c *Client) Index(ctx context.Context, path string, recursive bool) error {
	args := []string{"index", path}
	if recursive {
		args = append(args, "--recursive")
	}
	if _, err := c.run(ctx, c.bin, args...); err != nil {
		return classify(err)
	}
	c.logger.Info("indexed", "path", path)
	return nil
}

// Watch runs memsearch watch on path until ctx is cancelled. Cancellation is
// not reported as an error.
func (c *Client) Watch(ctx context.Context, path string) error {
	c.logger.Info("watch started", "path", path)
	_, err := c.run(ctx, c.bin, "watch", path)
	if ctx.Err() != nil {
		c.logger.Info("watch stopped", "path", path)
		return nil
	}
	return classify(err)
}

// Stats describes the memsearch index
type Stats struct {
	DocumentCount int    `json:"documentCount"`
	ChunkCount    int    `json:"chunkCount"`
	IndexSize     int64  `json:"indexSize"`
	LastIndexedAt string `json:"lastIndexedAt,omitempty"`
}

// Stats returns index statistics.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	out, err := c.run(ctx, c.bin, "stats", "--json")
	if err != nil {
		return s, classify(err)
	}
	if err := json.Unmarshal(out, &s); err != nil {
		return s, fmt.Errorf("failed to decode memsearch stats: %w", err)
	}
	return s, nil
}

// ExpandResult is the full context for one chunk
type ExpandResult struct {
	Origin    string `json:"origin"`
	Name      string `json:"name"`
	Heading   string `json:"heading,omitempty"`
	Content   string `json:"content"`
	ChunkHash string `json:"chunk_hash"`
}

// Expand returns the full content behind a chunk hash.
func (c *Client) Expand(ctx context.Context, chunkHash string) ([]ExpandResult, error) {
	out, err := c.run(ctx, c.bin, "expand", chunkHash, "--json")
	if err != nil {
		return nil, classify(err)
	}

	var raw []struct {
		Source    searchSource `json:"source"`
		Heading   string       `json:"heading"`
		Content   string       `json:"content"`
		ChunkHash string       `json:"chunk_hash"`
	}
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode memsearch expand: %w", err)
	}

	results := make([]ExpandResult, len(raw))
	for i, r := range raw {
		results[i] = ExpandResult{
			Origin:    r.Source.URI,
			Name:      r.Source.Name,
			Heading:   r.Heading,
			Content:   r.Content,
			ChunkHash: r.ChunkHash,
		}
	}
	return results, nil
}

// Compact runs memsearch compact and returns the summary it prints.
func (c *Client) Compact(ctx context.Context) (string, error) {
	out, err := c.run(ctx, c.bin, "compact")
	if err != nil {
		return "", classify(err)
	}
	return string(out), nil
}

// Reset drops the whole memsearch index.
func (c *Client) Reset(ctx context.Context) error {
	if _, err := c.run(ctx, c.bin, "reset", "--force"); err != nil {
		return classify(err)
	}
	c.logger.Info("index reset")
	return nil
}

// ConfigGet returns the memsearch configuration, or only key when it is set.
func (c *Client) ConfigGet(ctx context.Context, key string) (map[string]any, error) {
	args := []string{"config", "get", "--json"}
	if key != "" {
		args = append(args, key)
	}
	out, err := c.run(ctx, c.bin, args...)
	if err != nil {
		return nil, classify(err)
	}

	var raw any
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode memsearch config: %w", err)
	}
	if conf, ok := raw.(map[string]any); ok {
		return conf, nil
	}
	// A single key may come back as a bare value.
	return map[string]any{key: raw}, nil
}

// ConfigSet stores value under key in the memsearch configuration.
func (c *Client) ConfigSet(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrConfigKey
	}
	if _, err := c.run(ctx, c.bin, "config", "set", key, value); err != nil {
		return classify(err)
	}
	return nil
}
