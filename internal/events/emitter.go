// Package events publishes graph diagnostics to an external visualization
// surface over socket.io. Everything emitted is a plain ordered sequence:
// edges are [source, [names...], dest] triples and cycles are ordered edge
// lists, so consumers never receive set-typed payloads.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/cellgraph/internal/ctxlog"
	"github.com/vk/cellgraph/internal/graph"
)

// Config holds the connection settings for the diagnostics endpoint.
type Config struct {
	// URL of the socket.io endpoint, including any path.
	URL string
	// Namespace to join; defaults to "/".
	Namespace string
	// Timeout bounds the initial connection handshake.
	Timeout time.Duration
}

// Emitter is a connected diagnostics client.
type Emitter struct {
	manager *socket.Manager
	io      *socket.Socket
}

// Dial connects to the diagnostics endpoint and waits for the handshake to
// complete (or fail) before returning.
func Dial(ctx context.Context, cfg Config) (*Emitter, error) {
	logger := ctxlog.FromContext(ctx).With("events_url", cfg.URL)
	logger.Debug("Connecting diagnostics emitter.")

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse events URL: %w", err)
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "/"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(namespace, opts)

	done := make(chan error, 1)
	io.On(types.EventName("connect"), func(...any) {
		logger.Debug("Diagnostics emitter connected.", "sid", io.Id())
		done <- nil
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		if len(errs) > 0 {
			if connectErr, ok := errs[0].(error); ok {
				done <- connectErr
				return
			}
		}
		done <- fmt.Errorf("connect error")
	})

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	io.Connect()
	select {
	case <-opCtx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("timed out while waiting for diagnostics connection to %s", cfg.URL)
	case err := <-done:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("diagnostics connection failed: %w", err)
		}
	}
	return &Emitter{manager: manager, io: io}, nil
}

// EmitSnapshot publishes the current shape of the graph.
func (e *Emitter) EmitSnapshot(ctx context.Context, snap *Snapshot) error {
	logger := ctxlog.FromContext(ctx)

	// Round-trip through JSON so the wire payload is the documented plain
	// form, independent of internal types.
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling graph snapshot: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("unmarshaling graph snapshot: %w", err)
	}

	e.io.Emit("graph:snapshot", payload)
	logger.Debug("Emitted graph snapshot.", "cells", len(snap.Cells), "edges", len(snap.Edges), "cycles", len(snap.Cycles))
	return nil
}

// Close disconnects the emitter.
func (e *Emitter) Close() {
	e.io.Disconnect()
}

// Snapshot is the serializable form of a graph's structure.
type Snapshot struct {
	Cells           []string                  `json:"cells"`
	Edges           []graph.EdgeWithVariables `json:"edges"`
	Cycles          []graph.Cycle             `json:"cycles"`
	MultiplyDefined []string                  `json:"multiply_defined"`
}

// BuildSnapshot captures the graph's current structure in its serializable
// form. Cells appear in registration order.
func BuildSnapshot(g *graph.Graph) *Snapshot {
	ids := g.CellIDs()
	cells := make([]string, len(ids))
	for i, id := range ids {
		cells[i] = string(id)
	}
	return &Snapshot{
		Cells:           cells,
		Edges:           g.EdgesWithVariables(),
		Cycles:          g.Cycles(),
		MultiplyDefined: g.MultiplyDefined(),
	}
}
