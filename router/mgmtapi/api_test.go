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

package mgmtapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canarygate/canarygate/router/control"
	"github.com/canarygate/canarygate/router/mgmtapi"
)

func newServer(t *testing.T) (*httptest.Server, *control.Controller) {
	t.Helper()
	ctrl := control.New()
	ts := httptest.NewServer((&mgmtapi.Server{Rollouts: ctrl}).Handler())
	t.Cleanup(ts.Close)
	return ts, ctrl
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	rep, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { rep.Body.Close() })
	return rep
}

func decodeStatus(t *testing.T, rep *http.Response) mgmtapi.StatusResponse {
	t.Helper()
	var s mgmtapi.StatusResponse
	require.NoError(t, json.NewDecoder(rep.Body).Decode(&s))
	return s
}

func decodeProblem(t *testing.T, rep *http.Response) mgmtapi.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", rep.Header.Get("Content-Type"))
	var p mgmtapi.Problem
	require.NoError(t, json.NewDecoder(rep.Body).Decode(&p))
	return p
}

func TestStartRollout(t *testing.T) {
	ts, ctrl := newServer(t)

	rep := postJSON(t, ts.URL+"/rollouts",
		`{"candidate": "v2", "baseline": "v1", "percentage": 5}`)
	require.Equal(t, http.StatusCreated, rep.StatusCode)

	want := mgmtapi.StatusResponse{
		Candidate:  "v2",
		Baseline:   "v1",
		Percentage: 5,
		State:      "ramping",
	}
	diff := cmp.Diff(want, decodeStatus(t, rep),
		cmpopts.IgnoreFields(mgmtapi.StatusResponse{}, "UpdatedAt"))
	assert.Empty(t, diff)

	assert.Equal(t, control.Ramping, ctrl.Status().State)
}

func TestStartRolloutConflict(t *testing.T) {
	ts, _ := newServer(t)

	rep := postJSON(t, ts.URL+"/rollouts",
		`{"candidate": "v2", "baseline": "v1", "percentage": 5}`)
	require.Equal(t, http.StatusCreated, rep.StatusCode)

	rep = postJSON(t, ts.URL+"/rollouts",
		`{"candidate": "v3", "baseline": "v1", "percentage": 5}`)
	require.Equal(t, http.StatusConflict, rep.StatusCode)
	p := decodeProblem(t, rep)
	require.NotNil(t, p.Type)
	assert.Equal(t, mgmtapi.InvalidState, *p.Type)
}

func TestStartRolloutMalformed(t *testing.T) {
	ts, _ := newServer(t)

	rep := postJSON(t, ts.URL+"/rollouts", `{"candidate": `)
	require.Equal(t, http.StatusBadRequest, rep.StatusCode)

	rep = postJSON(t, ts.URL+"/rollouts", `{"bogus_field": true}`)
	require.Equal(t, http.StatusBadRequest, rep.StatusCode)

	rep = postJSON(t, ts.URL+"/rollouts",
		`{"candidate": "v2", "baseline": "v1", "percentage": 101}`)
	require.Equal(t, http.StatusBadRequest, rep.StatusCode)
}

func TestSetPercentage(t *testing.T) {
	ts, _ := newServer(t)

	rep := postJSON(t, ts.URL+"/rollouts",
		`{"candidate": "v2", "baseline": "v1", "percentage": 5}`)
	require.Equal(t, http.StatusCreated, rep.StatusCode)

	r, err := http.NewRequest(http.MethodPut, ts.URL+"/rollouts/percentage",
		strings.NewReader(`{"percentage": 50}`))
	require.NoError(t, err)
	rep, err = http.DefaultClient.Do(r)
	require.NoError(t, err)
	defer rep.Body.Close()
	require.Equal(t, http.StatusOK, rep.StatusCode)
	assert.Equal(t, 50, decodeStatus(t, rep).Percentage)
}

func TestSetPercentageWithoutRollout(t *testing.T) {
	ts, _ := newServer(t)

	r, err := http.NewRequest(http.MethodPut, ts.URL+"/rollouts/percentage",
		strings.NewReader(`{"percentage": 50}`))
	require.NoError(t, err)
	rep, err := http.DefaultClient.Do(r)
	require.NoError(t, err)
	defer rep.Body.Close()
	require.Equal(t, http.StatusConflict, rep.StatusCode)
	p := decodeProblem(t, rep)
	require.NotNil(t, p.Type)
	assert.Equal(t, mgmtapi.InvalidTransition, *p.Type)
}

func TestPromote(t *testing.T) {
	ts, ctrl := newServer(t)

	rep := postJSON(t, ts.URL+"/rollouts",
		`{"candidate": "v2", "baseline": "v1", "percentage": 5}`)
	require.Equal(t, http.StatusCreated, rep.StatusCode)

	rep = postJSON(t, ts.URL+"/rollouts/promote", "")
	require.Equal(t, http.StatusOK, rep.StatusCode)
	s := decodeStatus(t, rep)
	assert.Equal(t, "live", s.State)
	assert.Equal(t, 100, s.Percentage)
	assert.Equal(t, control.Live, ctrl.Status().State)
}

func TestRollback(t *testing.T) {
	ts, ctrl := newServer(t)

	rep := postJSON(t, ts.URL+"/rollouts",
		`{"candidate": "v2", "baseline": "v1", "percentage": 40}`)
	require.Equal(t, http.StatusCreated, rep.StatusCode)

	rep = postJSON(t, ts.URL+"/rollouts/rollback", "")
	require.Equal(t, http.StatusOK, rep.StatusCode)
	s := decodeStatus(t, rep)
	assert.Equal(t, "rolled_back", s.State)
	assert.Equal(t, 0, s.Percentage)
	assert.Equal(t, control.RolledBack, ctrl.Status().State)

	// Rolling back twice is rejected.
	rep = postJSON(t, ts.URL+"/rollouts/rollback", "")
	require.Equal(t, http.StatusConflict, rep.StatusCode)
}

func TestGetStatus(t *testing.T) {
	ts, _ := newServer(t)

	rep, err := http.Get(ts.URL + "/rollouts/status")
	require.NoError(t, err)
	defer rep.Body.Close()
	require.Equal(t, http.StatusOK, rep.StatusCode)
	s := decodeStatus(t, rep)
	assert.Equal(t, "idle", s.State)
	assert.Empty(t, s.Candidate)
}
