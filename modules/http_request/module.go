// Package http_request provides the track kind that sends an HTTP request
// as a cue when a section becomes active.
package http_request

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vk/seqcore/internal/config"
	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/registry"
	"github.com/vk/seqcore/internal/sequence"
	"github.com/vk/seqcore/internal/track"
)

const Kind = "http_request"

const defaultTimeout = 10 * time.Second

// Module implements the registry.Module interface for this package.
type Module struct {
	// Client is shared by every http_request track. Nil builds one with a
	// 10s timeout.
	Client *http.Client
}

// Register registers the http_request track kind in the default bucket.
func (m *Module) Register(r *registry.Registry) {
	if m.Client == nil {
		m.Client = &http.Client{Timeout: defaultTimeout}
	}
	r.RegisterTrackKind(Kind, "", m.newTrack)
}

// Arguments are the track-level arguments.
type Arguments struct {
	URL     string            `cty:"url,required"`
	Method  string            `cty:"method"`
	Headers map[string]string `cty:"headers"`
	Body    string            `cty:"body"`
}

// SectionArguments override the request body for one section.
type SectionArguments struct {
	Body string `cty:"body"`
}

// Track sends one request per section activation.
type Track struct {
	name    string
	client  *http.Client
	url     string
	method  string
	headers map[string]string
	bounds  []track.SectionBounds
	bodies  []string
}

type pending struct{}

func (m *Module) newTrack(ctx context.Context, def sequence.Definition, conv config.Converter) (track.Track, error) {
	var args Arguments
	if err := conv.DecodeArguments(ctx, def.Arguments, &args); err != nil {
		return nil, err
	}
	if args.Method == "" {
		args.Method = http.MethodPost
	}
	// Validate once so a bad URL or method fails at compile time.
	if _, err := http.NewRequest(args.Method, args.URL, nil); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	t := &Track{
		name:    def.Name,
		client:  m.Client,
		url:     args.URL,
		method:  strings.ToUpper(args.Method),
		headers: args.Headers,
	}
	for i, s := range def.Sections {
		var sa SectionArguments
		if err := conv.DecodeArguments(ctx, s.Arguments, &sa); err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
		body := args.Body
		if sa.Body != "" {
			body = sa.Body
		}
		t.bounds = append(t.bounds, track.SectionBounds{Range: s.Range})
		t.bodies = append(t.bodies, body)
	}
	return t, nil
}

func (t *Track) GenerateSegments() []track.SectionRange {
	return track.DefaultSegments(t.bounds)
}

func (t *Track) OnBeginEvaluation(_ context.Context, section int, ec *track.Context) {
	ec.Persistent.Set(ec.Entity(section), pending{})
}

func (t *Track) OnEndEvaluation(context.Context, int, *track.Context) {}

func (t *Track) Evaluate(ctx context.Context, seg track.Segment, ec *track.Context) []track.ExecutionToken {
	var tokens []track.ExecutionToken
	for _, e := range seg.Entities {
		key := ec.Entity(e.SectionIndex)
		if _, ok := track.Load[pending](ec.Persistent, key); !ok {
			continue
		}
		ec.Persistent.Delete(key)
		if ec.Silent {
			continue
		}
		body := t.bodies[e.SectionIndex]
		tokens = append(tokens, track.TokenFunc(func(ctx context.Context, _ track.Operand, _ track.Player) error {
			return t.send(ctx, body)
		}))
	}
	return tokens
}

func (t *Track) send(ctx context.Context, body string) error {
	logger := ctxlog.FromContext(ctx).With("track", t.name)
	logger.Info("Making HTTP request", "method", t.method, "url", t.url)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, t.method, t.url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	logger.Info("Received HTTP response", "status", resp.Status)
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("request failed with status: %s", resp.Status)
	}
	return nil
}
