package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/videoforge/videoforge/internal/api/response"
	"github.com/videoforge/videoforge/internal/job"
)

// NewJobEventsHandler returns the handler for GET /api/v1/jobs/{jobID}/events.
// It streams job snapshots as server-sent events: one event for the current
// state, then one per committed change, until the job reaches a terminal
// status or the client disconnects.
func NewJobEventsHandler(store job.Store, broadcaster *job.Broadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseJobID(w, r)
		if !ok {
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Streaming unsupported", nil)
			return
		}

		ch := broadcaster.Subscribe(id)
		defer broadcaster.Unsubscribe(id, ch)

		// Subscribe before the initial read so no update can slip between
		// the snapshot and the stream.
		j, err := store.Get(id)
		if err != nil {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Unknown job id", nil)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		if err := writeEvent(w, j); err != nil {
			return
		}
		flusher.Flush()
		if j.Terminal() {
			return
		}

		for {
			select {
			case <-r.Context().Done():
				return
			case snap, open := <-ch:
				if !open {
					return
				}
				if err := writeEvent(w, snap); err != nil {
					return
				}
				flusher.Flush()
				if snap.Terminal() {
					return
				}
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, j *job.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: status\ndata: %s\n\n", data)
	return err
}
