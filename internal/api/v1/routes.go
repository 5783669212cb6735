// Package v1 provides the REST API handlers for reference resolution.
package v1

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"

	"github.com/atref/atref/internal/api/common"
	"github.com/atref/atref/internal/canonical"
)

// MaxBatchSize bounds the inputs of a single batch request
const MaxBatchSize = 100

// BatchRequest is the body of POST /v1/resolve
type BatchRequest struct {
	Inputs []string `json:"inputs"`
}

// BatchResult is one entry of a batch response. Exactly one of Record and
// Error is set.
type BatchResult struct {
	Input  string            `json:"input"`
	Record *canonical.Record `json:"record,omitempty"`
	Error  string            `json:"error,omitempty"`
	Status int               `json:"status"`
}

// BatchResponse is the body returned by POST /v1/resolve
type BatchResponse struct {
	Results []BatchResult `json:"results"`
}

// Routes holds the handlers and their service
type Routes struct {
	service Service
}

// Router creates the /v1 router
func Router(svc Service) http.Handler {
	routes := &Routes{service: svc}

	r := chi.NewRouter()
	r.Get("/resolve", routes.resolve)
	r.Post("/resolve", routes.resolveBatch)
	r.Get("/cache/stats", routes.cacheStats)
	r.Delete("/cache", routes.clearCache)

	return r
}

// HealthHandler reports liveness
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, map[string]string{"status": "healthy"}, http.StatusOK)
}

// resolve handles GET /v1/resolve?input=...
func (rr *Routes) resolve(w http.ResponseWriter, r *http.Request) {
	input := strings.TrimSpace(r.URL.Query().Get("input"))
	if input == "" {
		common.WriteErrorResponse(w, "input query parameter is required", http.StatusBadRequest)
		return
	}

	rec, err := rr.service.ResolveInput(r.Context(), input)
	if err != nil {
		logr.FromContextOrDiscard(r.Context()).V(1).Info("Resolution failed", "input", input, "error", err.Error())
		common.WriteError(w, err)
		return
	}

	common.WriteJSONResponse(w, rec, http.StatusOK)
}

// resolveBatch handles POST /v1/resolve
func (rr *Routes) resolveBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		common.WriteErrorResponse(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Inputs) == 0 {
		common.WriteErrorResponse(w, "inputs must not be empty", http.StatusBadRequest)
		return
	}
	if len(req.Inputs) > MaxBatchSize {
		common.WriteErrorResponse(w, "too many inputs", http.StatusRequestEntityTooLarge)
		return
	}

	results, err := rr.service.ResolveAll(r.Context(), req.Inputs)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	resp := BatchResponse{Results: make([]BatchResult, 0, len(results))}
	for _, res := range results {
		item := BatchResult{Input: res.Input, Record: res.Record, Status: http.StatusOK}
		if res.Err != nil {
			item.Record = nil
			item.Error = res.Err.Error()
			item.Status = common.StatusForError(res.Err)
		}
		resp.Results = append(resp.Results, item)
	}
	common.WriteJSONResponse(w, resp, http.StatusOK)
}

// cacheStats handles GET /v1/cache/stats
func (rr *Routes) cacheStats(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, rr.service.CacheStats(), http.StatusOK)
}

// clearCache handles DELETE /v1/cache
func (rr *Routes) clearCache(w http.ResponseWriter, r *http.Request) {
	rr.service.ClearCache(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
