package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// handleStream serves a session's event log over Server-Sent Events.
// Replay starts after the Last-Event-ID header (or ?after query) so a
// reconnecting client never misses or re-reads an event. The stream
// ends when the session reaches a terminal stage.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteErrorR(w, r, http.StatusInternalServerError, "Internal Server Error", "streaming unsupported by connection")
		return
	}

	after, err := streamCheckpoint(r)
	if err != nil {
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	events, cancel, err := s.orc.Subscribe(r.Context(), r.PathValue("id"), after)
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				// Terminal event delivered; the log is complete.
				fmt.Fprint(w, "event: stream_closed\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("event marshal failed", "session_id", ev.SessionID, "sequence", ev.Sequence, "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Sequence, ev.Type, data)
			flusher.Flush()
		}
	}
}

// streamCheckpoint resolves the resume point: the SSE Last-Event-ID
// header wins over the after query parameter.
func streamCheckpoint(r *http.Request) (int64, error) {
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		raw = r.URL.Query().Get("after")
	}
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("resume point %q must be a non-negative integer", raw)
	}
	return n, nil
}
