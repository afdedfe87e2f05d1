package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/responder/core/notify"
)

// handleStream pushes every notification broadcast after the connection was
// accepted as a server-sent event named after its topic. A subscriber evicted
// for lagging receives a final "evicted" event and must reconnect. The stream
// ends on the first failed write so the subscription is released.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "notifications disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	topics, err := parseTopics(r.URL.Query().Get("topics"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var heartbeat <-chan time.Time
	if s.heartbeat > 0 {
		t := time.NewTicker(s.heartbeat)
		defer t.Stop()
		heartbeat = t.C
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case n, ok := <-sub:
			if !ok {
				_ = sendSSEEvent(w, flusher, "evicted", map[string]string{"error": "subscriber closed"})
				return
			}
			if topics != nil && !topics[n.Topic] {
				continue
			}
			if err := sendSSEEvent(w, flusher, string(n.Topic), n.Entities); err != nil {
				s.logger.Debugf("stream closed: %v", err)
				return
			}
		case <-heartbeat:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				s.logger.Debugf("stream closed: %v", err)
				return
			}
			if err := flush(flusher); err != nil {
				s.logger.Debugf("stream closed: %v", err)
				return
			}
		}
	}
}

// parseTopics reads a comma separated topic filter. An empty filter selects
// every topic.
func parseTopics(raw string) (map[notify.Topic]bool, error) {
	if raw == "" {
		return nil, nil
	}
	known := map[notify.Topic]bool{}
	for _, t := range notify.Topics() {
		known[t] = true
	}
	res := map[notify.Topic]bool{}
	for _, part := range strings.Split(raw, ",") {
		t := notify.Topic(strings.TrimSpace(part))
		if !known[t] {
			return nil, fmt.Errorf("unknown topic %q", t)
		}
		res[t] = true
	}
	return res, nil
}

func sendSSEEvent(w io.Writer, flusher http.Flusher, event string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(b)); err != nil {
		return fmt.Errorf("write %s event: %w", event, err)
	}
	return flush(flusher)
}

// flush reports the flush error when the writer exposes one.
func flush(f http.Flusher) error {
	if f == nil {
		return nil
	}
	if fe, ok := f.(interface{ FlushError() error }); ok {
		return fe.FlushError()
	}
	f.Flush()
	return nil
}
