// Package socketio provides the track kind that emits socket.io events as
// cues: one when a section becomes active and, optionally, one when it ends.
package socketio

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/seqcore/internal/config"
	"github.com/vk/seqcore/internal/ctxlog"
	"github.com/vk/seqcore/internal/registry"
	"github.com/vk/seqcore/internal/sequence"
	"github.com/vk/seqcore/internal/track"
)

const Kind = "socketio"

const defaultTimeout = 10 * time.Second

// Emitter sends events over one connection.
type Emitter interface {
	Emit(ctx context.Context, event string, data any) error
	Close()
}

// Connection identifies a socket.io endpoint.
type Connection struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// DialFunc opens a connection.
type DialFunc func(ctx context.Context, c Connection) (Emitter, error)

// Module implements the registry.Module interface for this package. It
// keeps one connection per endpoint, shared by every socketio track.
type Module struct {
	// Dial defaults to the socket.io client.
	Dial DialFunc

	mu    sync.Mutex
	conns map[Connection]Emitter
}

// Register registers the socketio track kind in the default bucket.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTrackKind(Kind, "", m.newTrack)
}

// Close disconnects every open connection.
func (m *Module) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for c, e := range m.conns {
		e.Close()
		delete(m.conns, c)
	}
}

func (m *Module) emitter(ctx context.Context, c Connection) (Emitter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.conns[c]; ok {
		return e, nil
	}
	dial := m.Dial
	if dial == nil {
		dial = Dial
	}
	e, err := dial(ctx, c)
	if err != nil {
		return nil, err
	}
	if m.conns == nil {
		m.conns = make(map[Connection]Emitter)
	}
	m.conns[c] = e
	return e, nil
}

// Arguments are the track-level arguments.
type Arguments struct {
	URL                string         `cty:"url,required"`
	Namespace          string         `cty:"namespace"`
	Event              string         `cty:"event,required"`
	EndEvent           string         `cty:"end_event"`
	Data               map[string]any `cty:"data"`
	Timeout            string         `cty:"timeout"`
	InsecureSkipVerify bool           `cty:"insecure_skip_verify"`
}

// SectionArguments override the track's payload for one section.
type SectionArguments struct {
	Data map[string]any `cty:"data"`
}

// Track emits cue events.
type Track struct {
	module   *Module
	conn     Connection
	event    string
	endEvent string
	bounds   []track.SectionBounds
	data     []map[string]any
}

type pending struct{}

func (m *Module) newTrack(ctx context.Context, def sequence.Definition, conv config.Converter) (track.Track, error) {
	logger := ctxlog.FromContext(ctx).With("track", def.Name)

	var args Arguments
	if err := conv.DecodeArguments(ctx, def.Arguments, &args); err != nil {
		return nil, err
	}
	if _, err := url.Parse(args.URL); err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	timeout := defaultTimeout
	if args.Timeout != "" {
		d, err := time.ParseDuration(args.Timeout)
		if err != nil {
			logger.Warn("Failed to parse timeout, using default 10s", "inputTimeout", args.Timeout, "error", err)
		} else {
			timeout = d
		}
	}
	if args.Namespace == "" {
		args.Namespace = "/"
	}

	t := &Track{
		module: m,
		conn: Connection{
			URL:                args.URL,
			Namespace:          args.Namespace,
			InsecureSkipVerify: args.InsecureSkipVerify,
			Timeout:            timeout,
		},
		event:    args.Event,
		endEvent: args.EndEvent,
	}
	for i, s := range def.Sections {
		var sa SectionArguments
		if err := conv.DecodeArguments(ctx, s.Arguments, &sa); err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
		data := args.Data
		if sa.Data != nil {
			data = sa.Data
		}
		t.bounds = append(t.bounds, track.SectionBounds{Range: s.Range})
		t.data = append(t.data, data)
	}
	return t, nil
}

func (t *Track) GenerateSegments() []track.SectionRange {
	return track.DefaultSegments(t.bounds)
}

// OnBeginEvaluation marks the section so its first evaluation emits.
func (t *Track) OnBeginEvaluation(_ context.Context, section int, ec *track.Context) {
	ec.Persistent.Set(ec.Entity(section), pending{})
}

func (t *Track) Evaluate(ctx context.Context, seg track.Segment, ec *track.Context) []track.ExecutionToken {
	var tokens []track.ExecutionToken
	for _, e := range seg.Entities {
		key := ec.Entity(e.SectionIndex)
		if _, ok := track.Load[pending](ec.Persistent, key); !ok {
			continue
		}
		ec.Persistent.Delete(key)
		if ec.Silent {
			ctxlog.FromContext(ctx).Debug("Silent evaluation, not emitting.", "event", t.event)
			continue
		}
		tokens = append(tokens, &emitToken{track: t, event: t.event, data: t.data[e.SectionIndex]})
	}
	return tokens
}

// OnEndEvaluation sends the end event directly; hooks run outside token
// application.
func (t *Track) OnEndEvaluation(ctx context.Context, section int, ec *track.Context) {
	if t.endEvent == "" || ec.Silent {
		return
	}
	tok := &emitToken{track: t, event: t.endEvent, data: t.data[section]}
	if err := tok.Execute(ctx, ec.Operand(), ec.Player); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to emit end event.", "event", t.endEvent, "error", err)
	}
}

type emitToken struct {
	track *Track
	event string
	data  map[string]any
}

func (e *emitToken) Execute(ctx context.Context, _ track.Operand, _ track.Player) error {
	em, err := e.track.module.emitter(ctx, e.track.conn)
	if err != nil {
		return err
	}
	return em.Emit(ctx, e.event, e.data)
}

type socketEmitter struct {
	io *socket.Socket
}

// Dial connects with the socket.io client over websocket and waits for the
// namespace to be joined.
func Dial(ctx context.Context, c Connection) (Emitter, error) {
	logger := ctxlog.FromContext(ctx).With("url", c.URL, "namespace", c.Namespace)

	parsedURL, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if c.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(c.Namespace, opts)

	done := make(chan error, 1)
	io.On(types.EventName("connect"), func(...any) {
		logger.Info("Successfully connected", "sid", io.Id())
		select {
		case done <- nil:
		default:
		}
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		err := errors.New("connect error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		select {
		case done <- err:
		default:
		}
	})
	io.Connect()

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-opCtx.Done():
		io.Disconnect()
		return nil, errors.New("timed out while waiting for initial connection")
	case err := <-done:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("connecting to %s: %w", c.URL, err)
		}
	}
	return &socketEmitter{io: io}, nil
}

func (s *socketEmitter) Emit(ctx context.Context, event string, data any) error {
	jsonData, _ := json.Marshal(data)
	ctxlog.FromContext(ctx).Info("Emitting event", "event", event, "data", string(jsonData))
	s.io.Emit(event, data)
	return nil
}

func (s *socketEmitter) Close() {
	s.io.Disconnect()
}
