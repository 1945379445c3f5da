package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOwner = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

func TestFleets_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/v1/fleets/"+testOwner, r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"owner": testOwner,
			"count": 1,
			"fleets": []map[string]interface{}{
				{"id": "fleet1", "name": "Pearce X4", "countdown": "11:59:59", "color": "warning"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	fleets, err := client.Fleets(context.Background(), testOwner)
	require.NoError(t, err)
	require.Len(t, fleets.Fleets, 1)
	assert.Equal(t, "warning", fleets.Fleets[0].Color)
	assert.Equal(t, "11:59:59", fleets.Fleets[0].Countdown)
}

func TestRefreshAndToggle(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		paths = append(paths, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "fleet1", "selected": true})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", nil, nil)
	_, err := client.Refresh(context.Background(), testOwner)
	require.NoError(t, err)
	card, err := client.Toggle(context.Background(), testOwner, "fleet1")
	require.NoError(t, err)
	assert.True(t, card.Selected)

	assert.Equal(t, []string{
		"/api/v1/fleets/" + testOwner + "/refresh",
		"/api/v1/fleets/" + testOwner + "/fleet1/toggle",
	}, paths)
}

func TestRewards_NotPriced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"owner":         testOwner,
			"pending_raw":   150000000,
			"pending_atlas": "1.5",
			"pending_fiat":  "n/a",
		})
	}))
	defer server.Close()

	totals, err := NewClient(server.URL, nil, nil).Rewards(context.Background(), testOwner)
	require.NoError(t, err)
	assert.Equal(t, uint64(150000000), totals.Pending)
	assert.Equal(t, "n/a", totals.PendingFiat)
}

func TestClaim_RequestBodies(t *testing.T) {
	var bodies []map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/claims", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"batch_id":   "claim-1",
			"signatures": []string{"sig1"},
			"links":      []string{"https://solscan.io/tx/sig1"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	ctx := context.Background()

	result, err := client.ClaimAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "claim-1", result.BatchID)
	assert.Equal(t, []string{"https://solscan.io/tx/sig1"}, result.Links)

	_, err = client.ClaimFleets(ctx, nil)
	require.NoError(t, err)
	_, err = client.ClaimSelected(ctx)
	require.NoError(t, err)

	require.Len(t, bodies, 3)
	assert.Empty(t, bodies[0])
	assert.Equal(t, []interface{}{}, bodies[1]["fleet_ids"], "empty selection is sent, not omitted")
	assert.Equal(t, true, bodies[2]["selected"])
}

func TestClaim_Conflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "a claim is already in progress"})
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil, nil).ClaimAll(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "already in progress")
}

func TestClaims_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testOwner, r.URL.Query().Get("owner"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Empty(t, r.URL.Query().Get("offset"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"claims": []map[string]interface{}{{"signature": "sig1", "status": "confirmed"}},
		})
	}))
	defer server.Close()

	claims, err := NewClient(server.URL, nil, nil).Claims(context.Background(), testOwner, 10, 0)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, "confirmed", claims[0].Status)
}

func TestSignaturesAndDismiss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "DELETE":
			assert.Equal(t, "/api/v1/notice", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"signatures":[{"hash":"sig1","status":"processing"}],"loading":false,"notice":{"kind":"info","message":"sent"}}`)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	sigs, err := client.Signatures(context.Background())
	require.NoError(t, err)
	require.Len(t, sigs.Signatures, 1)
	assert.Equal(t, "processing", sigs.Signatures[0].Status)
	require.NotNil(t, sigs.Notice)
	assert.Equal(t, "info", sigs.Notice.Kind)

	assert.NoError(t, client.DismissNotice(context.Background()))
}

func TestStreamSignatures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/stream/signatures/"+testOwner, r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("history"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: connected\ndata: {\"owner\":\"x\"}\n\n")
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "event: signature\ndata: {\"signature\":\"sig1\",\"status\":\"processing\"}\n\n")
		fmt.Fprint(w, "event: signature\ndata: not json\n\n")
		fmt.Fprint(w, "event: signature\ndata: {\"signature\":\"sig1\",\"status\":\"confirmed\"}\n\n")
	}))
	defer server.Close()

	var got []string
	err := NewClient(server.URL, nil, nil).StreamSignatures(context.Background(), testOwner, true, func(e *SignatureEvent) error {
		got = append(got, e.Status)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"processing", "confirmed"}, got)
}

func TestStreamSignatures_HandlerStops(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: signature\ndata: {\"signature\":\"sig1\"}\n\n")
		fmt.Fprint(w, "event: signature\ndata: {\"signature\":\"sig2\"}\n\n")
	}))
	defer server.Close()

	stop := errors.New("stop")
	calls := 0
	err := NewClient(server.URL, nil, nil).StreamSignatures(context.Background(), "", false, func(e *SignatureEvent) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}
