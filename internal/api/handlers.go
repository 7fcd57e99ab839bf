package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/susu3304/tripledger/internal/calc"
	"github.com/susu3304/tripledger/internal/extract"
	"github.com/susu3304/tripledger/internal/ledger"
	"github.com/susu3304/tripledger/internal/metrics"
	"go.uber.org/zap"
)

// Web senders are namespaced so they never share a draft with a DM sender.
func webSender(c *Claims) string {
	return "web:" + c.UserID
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleTurn(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	messages := a.svc.HandleTurn(r.Context(), webSender(claims), req.Text)
	if messages == nil {
		messages = []string{}
	}
	resp := map[string]any{"messages": messages}
	if sess := a.svc.Session(webSender(claims)); sess != nil {
		resp["session"] = sess
	}
	writeJSON(w, http.StatusOK, resp)
}

type sessionResponse struct {
	*ledger.Session
	Missing []string `json:"missing"`
}

func (a *API) handleGetSession(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	sess := a.svc.Session(webSender(claims))
	if sess == nil {
		http.Error(w, "no draft", http.StatusNotFound)
		return
	}
	form, ok := a.svc.Controller().Form(sess.Form)
	if !ok {
		http.Error(w, "unknown form", http.StatusInternalServerError)
		return
	}
	_, missing := calc.IsComplete(form, sess)
	if missing == nil {
		missing = []string{}
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: sess, Missing: missing})
}

func (a *API) handleClearSession(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if !a.svc.Clear(webSender(claims)) {
		http.Error(w, "no draft", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "draft cleared"})
}

func (a *API) handleListForms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Controller().Forms())
}

func (a *API) handleListRecords(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["form"]
	if _, ok := a.svc.Controller().Form(name); !ok {
		http.Error(w, "unknown form", http.StatusNotFound)
		return
	}

	byKey, err := a.records.ReadAll(r.Context(), name)
	if err != nil {
		a.log.Warn("failed to list records", zap.String("form", name), zap.Error(err))
		metrics.StoreErrors.WithLabelValues("read_all").Inc()
		http.Error(w, "failed to list records", http.StatusInternalServerError)
		return
	}

	entity := strings.ToUpper(r.URL.Query().Get("entity"))
	records := make([]ledger.Record, 0, len(byKey))
	for _, rec := range byKey {
		if entity != "" && rec.EntityCode != entity {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })
	writeJSON(w, http.StatusOK, records)
}

func (a *API) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["form"]
	if _, ok := a.svc.Controller().Form(name); !ok {
		http.Error(w, "unknown form", http.StatusNotFound)
		return
	}
	loc := a.config.Location
	if loc == nil {
		loc = time.Local
	}
	date, err := extract.ParseDate(vars["date"], time.Now().In(loc))
	if err != nil {
		http.Error(w, "invalid date, use DD-MM-YYYY", http.StatusBadRequest)
		return
	}

	rec, ok, err := a.records.Get(r.Context(), name, ledger.RecordKey(strings.ToUpper(vars["entity"]), date))
	if err != nil {
		a.log.Warn("failed to get record", zap.String("form", name), zap.Error(err))
		metrics.StoreErrors.WithLabelValues("get").Inc()
		http.Error(w, "failed to get record", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "record not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
