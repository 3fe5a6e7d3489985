package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/volshift/dlq"
	"github.com/xraph/volshift/id"
	"github.com/xraph/volshift/workflow"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// DLQCountResponse is the body of GET /v1/dlq/count.
type DLQCountResponse struct {
	Count int64 `json:"count"`
}

// parseListOpts reads limit, offset, stage and unresolved from the query.
func parseListOpts(r *http.Request) (dlq.ListOpts, error) {
	q := r.URL.Query()
	opts := dlq.ListOpts{Limit: defaultPageSize}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid limit %q", v)
		}
		opts.Limit = min(n, maxPageSize)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid offset %q", v)
		}
		opts.Offset = n
	}
	if v := q.Get("stage"); v != "" {
		s, err := workflow.ParseStage(v)
		if err != nil {
			return opts, err
		}
		opts.Stage = s
	}
	if v := q.Get("unresolved"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid unresolved %q", v)
		}
		opts.Unresolved = b
	}
	return opts, nil
}

func (a *API) listDLQ(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := a.eng.DLQService().DLQStore().ListDLQ(r.Context(), opts)
	if err != nil {
		a.mapStoreError(w, fmt.Errorf("list dlq: %w", err))
		return
	}
	if entries == nil {
		entries = []*dlq.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) entryID(w http.ResponseWriter, r *http.Request) (id.DLQID, bool) {
	entryID, err := id.ParseDLQID(chi.URLParam(r, "entryId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid DLQ entry ID: %v", err))
		return entryID, false
	}
	return entryID, true
}

func (a *API) getDLQ(w http.ResponseWriter, r *http.Request) {
	entryID, ok := a.entryID(w, r)
	if !ok {
		return
	}
	entry, err := a.eng.DLQService().DLQStore().GetDLQ(r.Context(), entryID)
	if err != nil {
		a.mapStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *API) resolveDLQ(w http.ResponseWriter, r *http.Request) {
	entryID, ok := a.entryID(w, r)
	if !ok {
		return
	}
	entry, err := a.eng.DLQService().Resolve(r.Context(), entryID)
	if err != nil {
		a.mapStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *API) dlqCount(w http.ResponseWriter, r *http.Request) {
	count, err := a.eng.DLQService().DLQStore().CountDLQ(r.Context())
	if err != nil {
		a.mapStoreError(w, fmt.Errorf("count dlq: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, DLQCountResponse{Count: count})
}
