package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOwner = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

// runApp runs the CLI with args and returns what it wrote to stdout.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"atlasclaim"}, args...))
	return out.String(), err
}

type fakeAPI struct {
	*httptest.Server
	claimBodies []map[string]interface{}
	dismissed   bool
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}

	writeJSON := func(w http.ResponseWriter, status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}
	fleets := map[string]interface{}{
		"owner": testOwner,
		"count": 2,
		"fleets": []map[string]interface{}{
			{"id": "fleet-a", "name": "Pearce X4", "size": 12, "countdown": "3d 4h", "pending_rewards": "1,234.5", "reward_per_day": "10", "color": "on-track"},
			{"id": "fleet-b", "name": "Opal Jet", "size": 3, "countdown": "5h", "pending_rewards": "7", "reward_per_day": "1", "color": "warning", "selected": true},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/fleets/{owner}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("owner") != testOwner {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid owner address"})
			return
		}
		writeJSON(w, http.StatusOK, fleets)
	})
	mux.HandleFunc("POST /api/v1/fleets/{owner}/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, fleets)
	})
	mux.HandleFunc("POST /api/v1/fleets/{owner}/{fleet}/toggle", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": r.PathValue("fleet"), "name": "Pearce X4", "selected": true})
	})
	mux.HandleFunc("GET /api/v1/rewards/{owner}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"owner":         testOwner,
			"pending_atlas": "1,241.5",
			"per_day_atlas": "11",
			"pending_fiat":  "15.271",
			"per_day_fiat":  "n/a",
			"price":         "0.0123",
		})
	})
	mux.HandleFunc("POST /api/v1/claims", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		api.claimBodies = append(api.claimBodies, body)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"batch_id":   "claim-1",
			"owner":      testOwner,
			"message":    "Transactions are Sent. Please track them with Solscan using the following links:",
			"signatures": []string{"sig1"},
			"links":      []string{"https://solscan.io/tx/sig1"},
		})
	})
	mux.HandleFunc("GET /api/v1/claims", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testOwner, r.URL.Query().Get("owner"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"claims": []map[string]interface{}{
				{"signature": "sig1", "owner": testOwner, "batch_id": "claim-1", "status": "confirmed", "created_at": "2026-01-02T03:04:05Z"},
			},
		})
	})
	mux.HandleFunc("GET /api/v1/signatures", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"signatures": []map[string]string{{"hash": "sig1", "status": "processing"}},
			"loading":    true,
			"notice":     map[string]interface{}{"kind": "info", "message": "Transactions are Sent.", "list": []string{"https://solscan.io/tx/sig1"}},
		})
	})
	mux.HandleFunc("DELETE /api/v1/notice", func(w http.ResponseWriter, r *http.Request) {
		api.dismissed = true
		w.WriteHeader(http.StatusNoContent)
	})

	api.Server = httptest.NewServer(mux)
	t.Cleanup(api.Close)
	return api
}

func TestFleetsList(t *testing.T) {
	api := newFakeAPI(t)

	out, err := runApp(t, "--server-url", api.URL, "fleets", "list", testOwner)
	require.NoError(t, err)
	assert.Contains(t, out, "Pearce X4")
	assert.Contains(t, out, "warning")
	assert.Contains(t, out, "1,234.5")
}

func TestFleetsList_OwnerFromFlag(t *testing.T) {
	api := newFakeAPI(t)

	out, err := runApp(t, "--server-url", api.URL, "--owner", testOwner, "--json", "fleets", "list")
	require.NoError(t, err)

	var got struct {
		Owner  string `json:"owner"`
		Fleets []struct {
			ID string `json:"id"`
		} `json:"fleets"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, testOwner, got.Owner)
	assert.Len(t, got.Fleets, 2)
}

func TestFleetsList_JQ(t *testing.T) {
	api := newFakeAPI(t)

	out, err := runApp(t, "--server-url", api.URL, "--jq", ".fleets[] | select(.selected) | .id", "fleets", "list", testOwner)
	require.NoError(t, err)
	assert.Equal(t, "fleet-b\n", out)
}

func TestFleetsList_MissingOwner(t *testing.T) {
	t.Setenv("OWNER_ADDRESS", "")
	api := newFakeAPI(t)

	_, err := runApp(t, "--server-url", api.URL, "fleets", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner address is required")
}

func TestFleetsList_APIError(t *testing.T) {
	api := newFakeAPI(t)

	_, err := runApp(t, "--server-url", api.URL, "fleets", "list", "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid owner address")
}

func TestFleetsRefreshAndToggle(t *testing.T) {
	api := newFakeAPI(t)

	out, err := runApp(t, "--server-url", api.URL, "fleets", "refresh", testOwner)
	require.NoError(t, err)
	assert.Contains(t, out, "Opal Jet")

	out, err = runApp(t, "--server-url", api.URL, "fleets", "toggle", "fleet-a", testOwner)
	require.NoError(t, err)
	assert.Contains(t, out, "selected: true")

	_, err = runApp(t, "--server-url", api.URL, "fleets", "toggle")
	assert.ErrorContains(t, err, "fleet ID is required")
}

func TestRewards(t *testing.T) {
	api := newFakeAPI(t)

	out, err := runApp(t, "--server-url", api.URL, "rewards", testOwner)
	require.NoError(t, err)
	assert.Contains(t, out, "1,241.5")
	assert.Contains(t, out, "15.271")
	assert.Contains(t, out, "n/a")
	assert.Contains(t, out, "0.0123")
}

func TestClaim(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantBody map[string]interface{}
	}{
		{
			name:     "all",
			args:     []string{"claim"},
			wantBody: map[string]interface{}{},
		},
		{
			name:     "fleets",
			args:     []string{"claim", "--fleet", "fleet-a", "--fleet", "fleet-b"},
			wantBody: map[string]interface{}{"fleet_ids": []interface{}{"fleet-a", "fleet-b"}},
		},
		{
			name:     "selected",
			args:     []string{"claim", "--selected"},
			wantBody: map[string]interface{}{"selected": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t)

			out, err := runApp(t, append([]string{"--server-url", api.URL}, tt.args...)...)
			require.NoError(t, err)
			assert.Contains(t, out, "Transactions are Sent.")
			assert.Contains(t, out, "https://solscan.io/tx/sig1")
			require.Len(t, api.claimBodies, 1)
			assert.Equal(t, tt.wantBody, api.claimBodies[0])
		})
	}
}

func TestClaim_FleetAndSelectedConflict(t *testing.T) {
	api := newFakeAPI(t)

	_, err := runApp(t, "--server-url", api.URL, "claim", "--fleet", "fleet-a", "--selected")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
	assert.Empty(t, api.claimBodies)
}

func TestClaims(t *testing.T) {
	api := newFakeAPI(t)

	out, err := runApp(t, "--server-url", api.URL, "claims", "--limit", "5", testOwner)
	require.NoError(t, err)
	assert.Contains(t, out, "sig1")
	assert.Contains(t, out, "confirmed")
	assert.Contains(t, out, "2026-01-02T03:04:05Z")
}

func TestSignatures(t *testing.T) {
	api := newFakeAPI(t)

	out, err := runApp(t, "--server-url", api.URL, "signatures")
	require.NoError(t, err)
	assert.Contains(t, out, "INFO: Transactions are Sent.")
	assert.Contains(t, out, "sig1")
	assert.Contains(t, out, "(tracking in progress)")

	_, err = runApp(t, "--server-url", api.URL, "signatures", "dismiss")
	require.NoError(t, err)
	assert.True(t, api.dismissed)
}
