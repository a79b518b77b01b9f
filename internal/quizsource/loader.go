// Package quizsource loads and validates quiz definitions from files or
// HTTP endpoints.
package quizsource

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

const (
	defaultTimeout = 10 * time.Second
	maxSourceBytes = 4 << 20
)

// LoadError reports a quiz definition that could not be fetched or is
// not a valid quiz. No session may be started from such a source.
type LoadError struct {
	Source string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("load quiz %s: %s", e.Source, e.Reason)
	}
	return fmt.Sprintf("load quiz %s: %s: %v", e.Source, e.Reason, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

type options struct {
	client  *http.Client
	timeout time.Duration
}

// Option customizes Load.
type Option func(*options)

// WithHTTPClient sets the client used for http(s) sources.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithTimeout bounds the fetch of an http(s) source.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// Load reads the quiz definition at src, which is either an http(s) URL
// or a file path. Both YAML and JSON documents are accepted.
func Load(ctx context.Context, src string, opts ...Option) (quiz.Definition, error) {
	o := options{client: http.DefaultClient, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		data, err = fetch(ctx, o, src)
	} else {
		data, err = readFile(src)
	}
	if err != nil {
		return quiz.Definition{}, err
	}

	def, err := Parse(data)
	if err != nil {
		return quiz.Definition{}, &LoadError{Source: src, Reason: "invalid quiz definition", Err: err}
	}

	slog.Info("quiz loaded", "source", src, "title", def.Title, "questions", len(def.Questions))
	return def, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Source: path, Reason: "unreadable", Err: err}
	}
	return data, nil
}

func fetch(ctx context.Context, o options, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &LoadError{Source: url, Reason: "bad request", Err: err}
	}
	req.Header.Set("Accept", "application/json, application/yaml")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, &LoadError{Source: url, Reason: "unreachable", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &LoadError{Source: url, Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
	if err != nil {
		return nil, &LoadError{Source: url, Reason: "read body", Err: err}
	}
	return data, nil
}

type rawQuestion struct {
	ID           any      `json:"id"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Topic        string   `json:"topic"`
}

type rawDefinition struct {
	Title         string        `json:"title"`
	TimeLimitSec  int           `json:"timeLimitSec"`
	PassThreshold float64       `json:"passThreshold"`
	Questions     []rawQuestion `json:"questions"`
}

// Parse decodes and validates a quiz document.
func Parse(data []byte) (quiz.Definition, error) {
	doc, err := decodeDocument(data)
	if err != nil {
		return quiz.Definition{}, err
	}
	if err := validateSchema(doc); err != nil {
		return quiz.Definition{}, err
	}

	// Re-encode the validated document so YAML and JSON share one typed path.
	normalized, err := json.Marshal(doc)
	if err != nil {
		return quiz.Definition{}, fmt.Errorf("normalize: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(normalized))
	dec.UseNumber()
	var raw rawDefinition
	if err := dec.Decode(&raw); err != nil {
		return quiz.Definition{}, fmt.Errorf("decode: %w", err)
	}

	def := quiz.Definition{
		Title:         raw.Title,
		TimeLimitSec:  raw.TimeLimitSec,
		PassThreshold: raw.PassThreshold,
		Questions:     make([]quiz.Question, 0, len(raw.Questions)),
	}

	seen := make(map[string]int, len(raw.Questions))
	for i, rq := range raw.Questions {
		id := questionID(rq.ID)
		if id == "" {
			return quiz.Definition{}, fmt.Errorf("question %d: empty id", i+1)
		}
		if prev, dup := seen[id]; dup {
			return quiz.Definition{}, fmt.Errorf("question %d: duplicate id %q (also question %d)", i+1, id, prev+1)
		}
		seen[id] = i
		if rq.CorrectIndex >= len(rq.Options) {
			return quiz.Definition{}, fmt.Errorf("question %d: correctIndex %d out of range for %d options", i+1, rq.CorrectIndex, len(rq.Options))
		}

		def.Questions = append(def.Questions, quiz.Question{
			ID:           id,
			Text:         rq.Text,
			Options:      rq.Options,
			CorrectIndex: rq.CorrectIndex,
			Topic:        rq.Topic,
		})
	}

	return def, nil
}

func decodeDocument(data []byte) (any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	var doc any
	if trimmed[0] == '{' {
		jsonErr := json.Unmarshal(trimmed, &doc)
		if jsonErr == nil {
			return doc, nil
		}
		// A YAML flow mapping also starts with a brace.
		doc = nil
		if err := yaml.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", jsonErr)
		}
		return doc, nil
	}
	if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return doc, nil
}

func questionID(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case json.Number:
		return id.String()
	}
	return ""
}

// Fingerprint returns a stable content hash of a definition. Sessions are
// stored under it so progress never carries over to a different quiz.
func Fingerprint(def quiz.Definition) string {
	data, err := json.Marshal(def)
	if err != nil {
		// Definition only holds strings and numbers; fall back to the title.
		data = []byte(def.Title)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
