// Package api implements the REST façade: thin handlers mapping the
// declarative PUT/POST/DELETE surface of spec.md §6 onto GroupManager,
// and GET handlers for reading groups, versions, and events. Routing and
// response envelopes are grounded on lxd/api.go's gorilla/mux wiring and
// its lxd/response Sync/Error/Async split.
package api

import (
	"encoding/json"
	"net/http"
)

// Response is returned by every handler; it knows how to render itself
// onto an http.ResponseWriter, mirroring the teacher's lxd/response
// interface.
type Response interface {
	Render(w http.ResponseWriter) error
}

type syncResponse struct {
	code     int
	metadata any
	location string
}

// StatusCode reports the HTTP status this response will render, so wrap
// can tell an accepted mutating call from a rejected one without
// re-deriving it from the error path.
func (r syncResponse) StatusCode() int { return r.code }

func (r syncResponse) Render(w http.ResponseWriter) error {
	if r.location != "" {
		w.Header().Set("Location", r.location)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(r.code)

	if r.metadata == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(r.metadata)
}

// SyncResponse renders a synchronous 200 (or the given code via
// SyncResponseCode) carrying metadata as its JSON body.
func SyncResponse(metadata any) Response {
	return syncResponse{code: http.StatusOK, metadata: metadata}
}

// SyncResponseLocation renders a synchronous response at code, setting
// Location, for the 201-Created case.
func SyncResponseLocation(code int, metadata any, location string) Response {
	return syncResponse{code: code, metadata: metadata, location: location}
}

// SyncResponseCode renders a synchronous response with an explicit
// status code and no Location header.
func SyncResponseCode(code int, metadata any) Response {
	return syncResponse{code: code, metadata: metadata}
}

type errorResponse struct {
	code int
	err  string
}

// StatusCode reports the HTTP status this response will render.
func (r errorResponse) StatusCode() int { return r.code }

func (r errorResponse) Render(w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(r.code)

	return json.NewEncoder(w).Encode(map[string]any{
		"error":      r.err,
		"error_code": r.code,
	})
}

// ErrorResponse renders a JSON error body at the given HTTP status.
func ErrorResponse(code int, err string) Response {
	return errorResponse{code: code, err: err}
}

type asyncResponse struct {
	deploymentID string
	version      string
}

// StatusCode reports the HTTP status this response will render.
func (r asyncResponse) StatusCode() int { return http.StatusAccepted }

func (r asyncResponse) Render(w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)

	return json.NewEncoder(w).Encode(map[string]any{
		"deploymentId": r.deploymentID,
		"version":      r.version,
	})
}

// AsyncResponse renders a 202 carrying the deployment id and version of
// a mutation already handed off to the executor, for the async DELETE
// case.
func AsyncResponse(deploymentID, version string) Response {
	return asyncResponse{deploymentID: deploymentID, version: version}
}
