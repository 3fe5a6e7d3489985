package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/volshift/event"
	"github.com/xraph/volshift/resumer"
)

// handleTimeout bounds handling one accepted event. Handling is detached
// from the request so a taken record is always settled.
const handleTimeout = 30 * time.Second

// EventResponse reports how an event was handled.
type EventResponse struct {
	Outcome resumer.Outcome `json:"outcome"`
}

func (a *API) postEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	if len(body) > maxEventBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "event too large")
		return
	}

	env, err := event.Parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), handleTimeout)
	defer cancel()

	outcome, err := a.eng.Handle(ctx, env)
	if err != nil {
		a.logger.Warn("event handling failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("event_id", env.ID),
			slog.String("detail_type", env.DetailType),
			slog.String("error", err.Error()),
		)
		a.mapStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EventResponse{Outcome: outcome})
}
