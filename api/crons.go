package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/volshift/cron"
)

func (a *API) listCrons(w http.ResponseWriter, _ *http.Request) {
	entries := a.eng.Scheduler().Entries()
	if entries == nil {
		entries = []cron.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) enableCron(w http.ResponseWriter, r *http.Request)  { a.setCron(w, r, true) }
func (a *API) disableCron(w http.ResponseWriter, r *http.Request) { a.setCron(w, r, false) }

func (a *API) setCron(w http.ResponseWriter, r *http.Request, enabled bool) {
	name := chi.URLParam(r, "name")
	if !a.eng.Scheduler().SetEnabled(name, enabled) {
		writeError(w, http.StatusNotFound, "cron entry not found: "+name)
		return
	}
	for _, e := range a.eng.Scheduler().Entries() {
		if e.Name == name {
			writeJSON(w, http.StatusOK, e)
			return
		}
	}
}

func (a *API) definition(w http.ResponseWriter, _ *http.Request) {
	def := a.eng.Definition()
	if err := def.Validate(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	doc, err := def.Render()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}
