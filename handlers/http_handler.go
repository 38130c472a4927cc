// Package handlers provides HTTP request handlers for the doselog API endpoints.
// This file implements the HTTPHandler interface with dependency injection.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/giygas/doselog/doselog"
	"github.com/giygas/doselog/doseparser"
	"github.com/giygas/doselog/doseparser/entities"
	"github.com/giygas/doselog/interfaces"
	"github.com/giygas/doselog/logging"
	"github.com/giygas/doselog/metrics"
	"github.com/giygas/doselog/routes"
	"github.com/go-chi/chi/v5"
)

// KindInvalidInput marks dose strings rejected before parsing
const KindInvalidInput doseparser.ErrorKind = "invalid_input"

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	directory interfaces.UserDirectory
	validator interfaces.DoseValidator
	health    interfaces.HealthChecker
	registry  *routes.Registry
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(directory interfaces.UserDirectory, validator interfaces.DoseValidator, health interfaces.HealthChecker) interfaces.HTTPHandler {
	return &HTTPHandlerImpl{
		directory: directory,
		validator: validator,
		health:    health,
		registry:  routes.Default,
	}
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data"`
}

// LogRequest is the body of POST /v1/users/{name}/doses. Exactly one form is
// used: text, texts, or substance+amount(+route).
type LogRequest struct {
	Text      *string  `json:"text,omitempty"`
	Texts     []string `json:"texts,omitempty"`
	Substance string   `json:"substance,omitempty"`
	Amount    *float64 `json:"amount,omitempty"`
	Route     string   `json:"route,omitempty"`
}

// DoseResult reports the outcome of one dose in a log request
type DoseResult struct {
	Input string              `json:"input,omitempty"`
	OK    bool                `json:"ok"`
	Entry *entities.DoseEntry `json:"entry,omitempty"`
	Kind  string              `json:"kind,omitempty"`
	Error string              `json:"error,omitempty"`
}

// LogResponse is returned by LogDoses
type LogResponse struct {
	User    string       `json:"user"`
	Logged  int          `json:"logged"`
	Failed  int          `json:"failed"`
	Results []DoseResult `json:"results"`
}

// StatsResponse is returned by ServeStats
type StatsResponse struct {
	User                 string                        `json:"user"`
	Count                int                           `json:"count"`
	TotalMg              float64                       `json:"total_mg"`
	AverageMg            float64                       `json:"average_mg"`
	MedianMg             float64                       `json:"median_mg"`
	LastDose             *time.Time                    `json:"last_dose"`
	SecondsSinceLastDose *float64                      `json:"seconds_since_last_dose"`
	Tally                map[string]map[string]float64 `json:"tally"`
}

// RespondWithJSON writes a JSON response
func (h *HTTPHandlerImpl) RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(data)
}

// RespondWithError writes a JSON error response
func (h *HTTPHandlerImpl) RespondWithError(w http.ResponseWriter, code int, message string) {
	errorResponse := map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	}
	h.RespondWithJSON(w, code, errorResponse)
}

// userName reads and validates the {name} path parameter
func (h *HTTPHandlerImpl) userName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "name")
	if err := h.validator.ValidateUserName(name); err != nil {
		logging.Warn("Unusual user input", "name", name)
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return name, true
}

// LogDoses appends one dose, a batch of doses, or an explicit dose. Bad items
// in a batch are reported and never abort the batch.
func (h *HTTPHandlerImpl) LogDoses(w http.ResponseWriter, r *http.Request) {
	name, ok := h.userName(w, r)
	if !ok {
		return
	}

	var req LogRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.RespondWithError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		h.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if decoder.Decode(&struct{}{}) != io.EOF {
		h.RespondWithError(w, http.StatusBadRequest, "Request body must contain a single JSON object")
		return
	}

	explicit := req.Substance != "" || req.Amount != nil || req.Route != ""
	forms := 0
	for _, used := range []bool{req.Text != nil, req.Texts != nil, explicit} {
		if used {
			forms++
		}
	}
	if forms != 1 {
		h.RespondWithError(w, http.StatusBadRequest, "Provide exactly one of text, texts, or substance and amount")
		return
	}

	switch {
	case req.Text != nil:
		resp := h.logTexts(name, []string{*req.Text})
		code := http.StatusCreated
		if resp.Failed > 0 {
			code = http.StatusUnprocessableEntity
		}
		h.RespondWithJSON(w, code, resp)

	case req.Texts != nil:
		if err := h.validator.ValidateBatchSize(len(req.Texts)); err != nil {
			h.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.RespondWithJSON(w, http.StatusOK, h.logTexts(name, req.Texts))

	default:
		h.logExplicit(w, name, req)
	}
}

// logTexts validates each string, then logs the valid ones as one batch
func (h *HTTPHandlerImpl) logTexts(name string, texts []string) LogResponse {
	resp := LogResponse{User: name, Results: make([]DoseResult, len(texts))}

	var valid []string
	var positions []int
	for i, text := range texts {
		if err := h.validator.ValidateDoseText(text); err != nil {
			resp.Results[i] = DoseResult{Input: text, Kind: string(KindInvalidInput), Error: err.Error()}
			continue
		}
		valid = append(valid, text)
		positions = append(positions, i)
	}

	if len(valid) > 0 {
		var results []doselog.LogResult
		_ = h.directory.WithUser(name, func(u *doselog.User) error {
			results = u.LogBatch(valid...)
			return nil
		})
		for j, res := range results {
			resp.Results[positions[j]] = toDoseResult(res)
		}
	}

	for _, res := range resp.Results {
		if res.OK {
			resp.Logged++
			metrics.DosesLoggedTotal.WithLabelValues(res.Entry.Route).Inc()
		} else {
			resp.Failed++
			metrics.DoseLogFailuresTotal.WithLabelValues(res.Kind).Inc()
		}
	}
	return resp
}

func toDoseResult(res doselog.LogResult) DoseResult {
	if !res.OK() {
		return DoseResult{Input: res.Input, Kind: string(res.Kind()), Error: res.Err.Error()}
	}
	entry := res.Entry
	return DoseResult{Input: res.Input, OK: true, Entry: &entry}
}

func (h *HTTPHandlerImpl) logExplicit(w http.ResponseWriter, name string, req LogRequest) {
	if err := h.validator.ValidateSubstance(req.Substance); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount == nil {
		h.RespondWithError(w, http.StatusBadRequest, "amount is required")
		return
	}
	if err := h.validator.ValidateAmount(*req.Amount); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var entry entities.DoseEntry
	var logged bool
	_ = h.directory.WithUser(name, func(u *doselog.User) error {
		entry, logged = u.Log(req.Substance, *req.Amount, req.Route)
		return nil
	})
	if !logged {
		metrics.DoseLogFailuresTotal.WithLabelValues(string(doseparser.KindInvalidAmount)).Inc()
		h.RespondWithError(w, http.StatusBadRequest, "amount must be a positive number")
		return
	}
	metrics.DosesLoggedTotal.WithLabelValues(entry.Route).Inc()

	h.RespondWithJSON(w, http.StatusCreated, LogResponse{
		User:    name,
		Logged:  1,
		Results: []DoseResult{{OK: true, Entry: &entry}},
	})
}

// readView runs fn on the filtered view of an existing user, writing the
// error response itself when the user or the filters are invalid
func (h *HTTPHandlerImpl) readView(w http.ResponseWriter, r *http.Request, fn func(name string, q doselog.Query)) {
	name, ok := h.userName(w, r)
	if !ok {
		return
	}

	var queryErr error
	found, _ := h.directory.ReadUser(name, func(u *doselog.User) error {
		q, err := h.buildQuery(u, r.URL.RawQuery)
		if err != nil {
			queryErr = err
			return nil
		}
		fn(name, q)
		return nil
	})

	if !found {
		h.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	if queryErr != nil {
		h.RespondWithError(w, http.StatusBadRequest, queryErr.Error())
	}
}

// ServeDoses returns the entries of the filtered view
func (h *HTTPHandlerImpl) ServeDoses(w http.ResponseWriter, r *http.Request) {
	h.readView(w, r, func(name string, q doselog.Query) {
		h.RespondWithJSON(w, http.StatusOK, map[string]any{
			"user":    name,
			"count":   q.Len(),
			"entries": q.Entries(),
		})
	})
}

// ServeStats returns aggregates over the filtered view
func (h *HTTPHandlerImpl) ServeStats(w http.ResponseWriter, r *http.Request) {
	h.readView(w, r, func(name string, q doselog.Query) {
		resp := StatsResponse{
			User:      name,
			Count:     q.Len(),
			TotalMg:   q.TotalDose(),
			AverageMg: q.AverageDose(),
			MedianMg:  q.MedianDose(),
			Tally:     q.Tally(),
		}
		if last, ok := q.LastDoseTime(); ok {
			resp.LastDose = &last
		}
		if since, ok := q.TimeSinceLastDose(); ok {
			seconds := math.Round(since.Seconds())
			resp.SecondsSinceLastDose = &seconds
		}
		h.RespondWithJSON(w, http.StatusOK, resp)
	})
}

// ServeSummary writes the plain text summary of the filtered view
func (h *HTTPHandlerImpl) ServeSummary(w http.ResponseWriter, r *http.Request) {
	h.readView(w, r, func(name string, q doselog.Query) {
		var buf bytes.Buffer
		if err := q.PrintSummary(&buf); err != nil {
			logging.Error("Failed to render summary", "user", name, "error", err)
			h.RespondWithError(w, http.StatusInternalServerError, "Failed to render summary")
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	})
}

// ServeRoutes lists the canonical routes with their aliases
func (h *HTTPHandlerImpl) ServeRoutes(w http.ResponseWriter, r *http.Request) {
	type routeInfo struct {
		Route   string   `json:"route"`
		Aliases []string `json:"aliases"`
	}

	all := h.registry.Routes()
	out := make([]routeInfo, 0, len(all))
	for _, route := range all {
		out = append(out, routeInfo{Route: string(route), Aliases: h.registry.Aliases(route)})
	}
	h.RespondWithJSON(w, http.StatusOK, out)
}

// HealthCheck returns service health
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, data, httpStatus := h.health.HealthCheck()
	h.RespondWithJSON(w, httpStatus, HealthResponse{Status: status, Data: data})
}
