package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/luxfi/agentsync/agentsyncerr"
	"github.com/luxfi/agentsync/gossip"
)

const transportComponent = "gossip_transport"

// httpTransport delivers gossip envelopes over HTTP POST to a peer's
// /gossip endpoint. Idempotent-safe under retries (spec §6's egress
// contract): the receiver's dedup table, not this transport, is what
// makes a retried delivery harmless.
type httpTransport struct {
	client *http.Client
}

func newHTTPTransport(timeout time.Duration) *httpTransport {
	return &httpTransport{client: &http.Client{Timeout: timeout}}
}

// Send classifies its own failures per the taxonomy spec §7 names as
// locally recoverable (Transient, Timeout), so the engine's retry-with-
// backoff loop (internal/retry) knows which of them are worth retrying.
func (t *httpTransport) Send(ctx context.Context, peer gossip.Peer, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, peer.Endpoint+"/gossip", bytes.NewReader(data))
	if err != nil {
		return agentsyncerr.New(transportComponent, agentsyncerr.ParseError, "", "build gossip request", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	resp, err := t.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return agentsyncerr.New(transportComponent, agentsyncerr.Timeout, "", "peer "+peer.ID+" timed out", err)
		}
		return agentsyncerr.New(transportComponent, agentsyncerr.Transient, "", "peer "+peer.ID+" unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return agentsyncerr.New(transportComponent, agentsyncerr.Transient, "", "peer "+peer.ID+" returned "+resp.Status, nil)
	}
	if resp.StatusCode >= 300 {
		return agentsyncerr.New(transportComponent, agentsyncerr.Conflict, "", "peer "+peer.ID+" returned "+resp.Status, nil)
	}
	return nil
}

// gossipIngressHandler wires the receiving side of the transport: any
// body posted to /gossip is handed to the engine's Receive, which never
// fails the connection on a malformed or unknown-type message (spec §6's
// "Malformed bytes -> ParseError, never a panic").
func gossipIngressHandler(engine *gossip.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(r.Body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := engine.Receive(r.Context(), buf.Bytes()); err != nil {
			w.WriteHeader(statusForKind(err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
