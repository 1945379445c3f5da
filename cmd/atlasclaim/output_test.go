package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputJQ(t *testing.T) {
	v := struct {
		Owner string   `json:"owner"`
		Count int      `json:"count"`
		Links []string `json:"links"`
	}{
		Owner: testOwner,
		Count: 2,
		Links: []string{"a", "b"},
	}

	tests := []struct {
		name    string
		query   string
		want    string
		wantErr string
	}{
		{name: "string is raw", query: ".owner", want: testOwner + "\n"},
		{name: "number", query: ".count", want: "2\n"},
		{name: "multiple results", query: ".links[]", want: "a\nb\n"},
		{name: "object is compact", query: "{count}", want: "{\"count\":2}\n"},
		{name: "no results", query: "empty", want: ""},
		{name: "parse error", query: ".[", wantErr: "failed to parse jq filter"},
		{name: "runtime error", query: ".owner | tonumber", wantErr: "jq filter error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := outputJQ(&buf, v, tt.query)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, outputJSON(&buf, map[string]int{"count": 1}))
	assert.Equal(t, "{\n  \"count\": 1\n}\n", buf.String())
}
