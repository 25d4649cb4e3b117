// Package handlers provides HTTP request handlers for the drug match API
// endpoints. It includes handlers for pharmaceutical lookup, match results,
// pagination, health checks, and response formatting with proper input
// validation and error handling.
package handlers

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ihtsdo/drugmatch/interfaces"
	"github.com/ihtsdo/drugmatch/logging"
	"github.com/ihtsdo/drugmatch/match"
)

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	dataStore interfaces.DataStore
	validator interfaces.DataValidator
	health    interfaces.HealthChecker
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(dataStore interfaces.DataStore, validator interfaces.DataValidator, health interfaces.HealthChecker) *HTTPHandlerImpl {
	return &HTTPHandlerImpl{
		dataStore: dataStore,
		validator: validator,
		health:    health,
	}
}

// ServeHTTP implements the http.Handler interface. Routing is handled by
// chi; this exists to satisfy the handler contract.
func (h *HTTPHandlerImpl) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Not implemented", http.StatusNotImplemented)
}

// RespondWithJSON writes a JSON response
func (h *HTTPHandlerImpl) RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	w.WriteHeader(code)
	w.Write(data)
}

// RespondWithError writes a JSON error response
func (h *HTTPHandlerImpl) RespondWithError(w http.ResponseWriter, code int, message string) {
	errorResponse := map[string]interface{}{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	}
	h.RespondWithJSON(w, code, errorResponse)
}

// ServePagedPharmaceuticals returns a page of pharmaceutical records
func (h *HTTPHandlerImpl) ServePagedPharmaceuticals(w http.ResponseWriter, r *http.Request) {
	pageNumber := chi.URLParam(r, "pageNumber")
	pageNum, err := strconv.Atoi(pageNumber)
	if err != nil || pageNum < 1 {
		logging.Warn("Unusual user input", "pageNumber", pageNumber)
		h.RespondWithError(w, http.StatusBadRequest, "Invalid page number")
		return
	}

	pharmaceuticals := h.dataStore.GetPharmaceuticals()
	pageSize := 10
	start := (pageNum - 1) * pageSize
	end := start + pageSize

	if start >= len(pharmaceuticals) {
		h.RespondWithError(w, http.StatusNotFound, "Page not found")
		return
	}

	if end > len(pharmaceuticals) {
		end = len(pharmaceuticals)
	}

	paged := pharmaceuticals[start:end]
	totalItems := len(pharmaceuticals)
	maxPage := (totalItems + pageSize - 1) / pageSize

	response := map[string]interface{}{
		"data":       paged,
		"page":       pageNum,
		"pageSize":   pageSize,
		"totalItems": totalItems,
		"maxPage":    maxPage,
	}

	h.RespondWithJSON(w, http.StatusOK, response)
}

// FindPharmaceuticalByID finds a pharmaceutical record by drug id
func (h *HTTPHandlerImpl) FindPharmaceuticalByID(w http.ResponseWriter, r *http.Request) {
	drugID, err := h.validator.ValidateDrugID(chi.URLParam(r, "drugID"))
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Invalid drug id")
		return
	}

	p, exists := h.dataStore.GetPharmaceutical(drugID)
	if !exists {
		h.RespondWithError(w, http.StatusNotFound, "Pharmaceutical not found")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, p)
}

// ServeAllMatches returns the match outcome of every record in the current
// snapshot, sorted by drug id
func (h *HTTPHandlerImpl) ServeAllMatches(w http.ResponseWriter, r *http.Request) {
	result := h.dataStore.GetResult()
	h.RespondWithJSON(w, http.StatusOK, sortedMatches(result.Matches))
}

// FindMatchByID returns the match outcome for one drug id
func (h *HTTPHandlerImpl) FindMatchByID(w http.ResponseWriter, r *http.Request) {
	drugID, err := h.validator.ValidateDrugID(chi.URLParam(r, "drugID"))
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Invalid drug id")
		return
	}

	m, exists := h.dataStore.GetMatch(drugID)
	if !exists {
		h.RespondWithError(w, http.StatusNotFound, "Match not found")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, m)
}

// FindMatchesByRule returns every match that finished on the given term rule
func (h *HTTPHandlerImpl) FindMatchesByRule(w http.ResponseWriter, r *http.Request) {
	rule := chi.URLParam(r, "rule")
	if rule == "" {
		h.RespondWithError(w, http.StatusBadRequest, "Missing rule")
		return
	}

	if err := h.validator.ValidateInput(rule); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if match.TermRule(rule).Weight() == 0 {
		h.RespondWithError(w, http.StatusBadRequest, "Unknown rule")
		return
	}

	result := h.dataStore.GetResult()
	matches := make(map[string]match.PharmaceuticalMatch)
	for drugID, m := range result.Matches {
		if string(m.TermRule) == rule {
			matches[drugID] = m
		}
	}

	// Always return 200 with results array (empty if no matches)
	h.RespondWithJSON(w, http.StatusOK, sortedMatches(matches))
}

// HealthCheck returns server health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	// Get memory statistics
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(h.dataStore.GetServerStartTime())
	status, data, httpStatus := h.health.HealthCheck()

	data["api_version"] = "1.0"
	data["next_update"] = h.health.CalculateNextUpdate().Format(time.RFC3339)

	response := map[string]interface{}{
		"status":         status,
		"uptime_seconds": uptime.Seconds(),
		"data":           data,
		"system": map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc_mb":       int(m.Alloc / 1024 / 1024),
				"total_alloc_mb": int(m.TotalAlloc / 1024 / 1024),
				"sys_mb":         int(m.Sys / 1024 / 1024),
				"num_gc":         m.NumGC,
			},
		},
	}

	h.RespondWithJSON(w, httpStatus, response)
}

// sortedMatches flattens a match map into a drug-id-sorted slice for stable
// response ordering
func sortedMatches(matches map[string]match.PharmaceuticalMatch) []match.PharmaceuticalMatch {
	out := make([]match.PharmaceuticalMatch, 0, len(matches))
	for _, m := range matches {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Pharmaceutical.DrugID < out[j].Pharmaceutical.DrugID
	})
	return out
}
