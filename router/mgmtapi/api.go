// Copyright 2025 Canarygate Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mgmtapi implements the http control-plane API of the router.
package mgmtapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/canarygate/canarygate/router/control"
)

// Problem types reported in error responses.
const (
	BadRequest        = "bad_request"
	InvalidState      = "invalid_state"
	InvalidTransition = "invalid_transition"
	InternalError     = "internal_error"
)

// Problem is an RFC 7807 problem detail.
type Problem struct {
	Detail *string `json:"detail,omitempty"`
	Status int     `json:"status"`
	Title  string  `json:"title"`
	Type   *string `json:"type,omitempty"`
}

// StringRef returns a reference to the given string.
func StringRef(s string) *string {
	return &s
}

// RolloutManager is the control-plane surface exposed by the API.
type RolloutManager interface {
	StartRollout(ctx context.Context, candidate, baseline string, initial int) error
	SetPercentage(ctx context.Context, pct int) error
	Promote(ctx context.Context) error
	Rollback(ctx context.Context) error
	Status() control.Snapshot
}

// Server implements the http control-plane API of the router.
type Server struct {
	Rollouts RolloutManager
	// Config, Info and LogLevel serve the service pages. Optional.
	Config   http.HandlerFunc
	Info     http.HandlerFunc
	LogLevel http.HandlerFunc
}

// Handler returns the API routes mounted on a chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/rollouts", s.StartRollout)
	r.Get("/rollouts/status", s.GetStatus)
	r.Put("/rollouts/percentage", s.SetPercentage)
	r.Post("/rollouts/promote", s.Promote)
	r.Post("/rollouts/rollback", s.Rollback)
	if s.Config != nil {
		r.Get("/config", s.Config)
	}
	if s.Info != nil {
		r.Get("/info", s.Info)
	}
	if s.LogLevel != nil {
		r.Get("/log/level", s.LogLevel)
		r.Put("/log/level", s.LogLevel)
	}
	return r
}

type startRolloutRequest struct {
	Candidate  string `json:"candidate"`
	Baseline   string `json:"baseline"`
	Percentage int    `json:"percentage"`
}

type setPercentageRequest struct {
	Percentage int `json:"percentage"`
}

// StatusResponse is the wire form of the rollout status.
type StatusResponse struct {
	Candidate  string `json:"candidate"`
	Baseline   string `json:"baseline"`
	Percentage int    `json:"percentage"`
	State      string `json:"state"`
	UpdatedAt  string `json:"updated_at"`
}

// StartRollout starts ramping a candidate version.
func (s *Server) StartRollout(w http.ResponseWriter, r *http.Request) {
	var req startRolloutRequest
	if !decode(w, r, &req) {
		return
	}
	err := s.Rollouts.StartRollout(r.Context(), req.Candidate, req.Baseline, req.Percentage)
	if err != nil {
		errorFor(w, err, "error starting rollout")
		return
	}
	s.writeStatus(w, http.StatusCreated)
}

// SetPercentage adjusts the percentage of the active rollout.
func (s *Server) SetPercentage(w http.ResponseWriter, r *http.Request) {
	var req setPercentageRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.Rollouts.SetPercentage(r.Context(), req.Percentage); err != nil {
		errorFor(w, err, "error setting percentage")
		return
	}
	s.writeStatus(w, http.StatusOK)
}

// Promote promotes the candidate to serve all traffic.
func (s *Server) Promote(w http.ResponseWriter, r *http.Request) {
	if err := s.Rollouts.Promote(r.Context()); err != nil {
		errorFor(w, err, "error promoting rollout")
		return
	}
	s.writeStatus(w, http.StatusOK)
}

// Rollback aborts the rollout and withdraws the candidate.
func (s *Server) Rollback(w http.ResponseWriter, r *http.Request) {
	if err := s.Rollouts.Rollback(r.Context()); err != nil {
		errorFor(w, err, "error rolling back")
		return
	}
	s.writeStatus(w, http.StatusOK)
}

// GetStatus reports the current rollout state.
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	s.writeStatus(w, http.StatusOK)
}

func (s *Server) writeStatus(w http.ResponseWriter, code int) {
	snap := s.Rollouts.Status()
	rep := StatusResponse{
		Candidate:  snap.Candidate,
		Baseline:   snap.Baseline,
		Percentage: snap.Percentage,
		State:      snap.State.String(),
		UpdatedAt:  snap.UpdatedAt.UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(rep); err != nil {
		ErrorResponse(w, Problem{
			Detail: StringRef(err.Error()),
			Status: http.StatusInternalServerError,
			Title:  "unable to marshal response",
			Type:   StringRef(InternalError),
		})
		return
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		ErrorResponse(w, Problem{
			Detail: StringRef(err.Error()),
			Status: http.StatusBadRequest,
			Title:  "malformed request body",
			Type:   StringRef(BadRequest),
		})
		return false
	}
	return true
}

// errorFor maps controller errors to problem responses.
func errorFor(w http.ResponseWriter, err error, title string) {
	p := Problem{
		Detail: StringRef(err.Error()),
		Status: http.StatusInternalServerError,
		Title:  title,
		Type:   StringRef(InternalError),
	}
	switch {
	case errors.Is(err, control.ErrInvalidState):
		p.Status = http.StatusConflict
		p.Type = StringRef(InvalidState)
	case errors.Is(err, control.ErrInvalidTransition):
		p.Status = http.StatusConflict
		p.Type = StringRef(InvalidTransition)
	case errors.Is(err, control.ErrInvalidPercentage):
		p.Status = http.StatusBadRequest
		p.Type = StringRef(BadRequest)
	default:
		// Input validation failures from the controller are client errors.
		p.Status = http.StatusBadRequest
		p.Type = StringRef(BadRequest)
	}
	ErrorResponse(w, p)
}

// ErrorResponse creates a detailed error response.
func ErrorResponse(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	// no point in catching error here, there is nothing we can do about it anymore.
	_ = enc.Encode(p)
}
