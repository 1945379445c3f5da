package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectRandomEndpoint(t *testing.T) {
	t.Run("successful selection from multiple endpoints", func(t *testing.T) {
		endpoints := []string{
			"https://api.mainnet-beta.solana.com",
			"https://mainnet.helius-rpc.com",
			"https://rpc.ankr.com/solana",
		}

		selected, err := SelectRandomEndpoint(endpoints)
		require.NoError(t, err)
		assert.Contains(t, endpoints, selected)
	})

	t.Run("successful selection from single endpoint", func(t *testing.T) {
		endpoints := []string{"https://api.mainnet-beta.solana.com"}

		selected, err := SelectRandomEndpoint(endpoints)
		require.NoError(t, err)
		assert.Equal(t, endpoints[0], selected)
	})

	t.Run("error on empty slice", func(t *testing.T) {
		_, err := SelectRandomEndpoint([]string{})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no RPC endpoints configured")
	})

	t.Run("error on nil slice", func(t *testing.T) {
		_, err := SelectRandomEndpoint(nil)
		assert.Error(t, err)
	})

	t.Run("distribution across multiple calls", func(t *testing.T) {
		endpoints := []string{
			"https://endpoint1.com",
			"https://endpoint2.com",
			"https://endpoint3.com",
		}

		// probabilistic: 60 draws from 3 endpoints
		seen := make(map[string]bool)
		for i := 0; i < 60; i++ {
			selected, err := SelectRandomEndpoint(endpoints)
			require.NoError(t, err)
			seen[selected] = true
		}
		assert.GreaterOrEqual(t, len(seen), 2, "Expected to see multiple endpoints selected")
	})
}

func TestEndpointLabel(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://api.mainnet-beta.solana.com", "mainnet"},
		{"https://api.devnet.solana.com", "devnet"},
		{"https://mainnet.helius-rpc.com/?api-key=secret", "helius"},
		{"https://abc.solana-mainnet.quiknode.pro/KEY/", "quiknode"},
		{"https://rpc.example.org", "rpc.example.org"},
		{"://bad", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, EndpointLabel(tt.url))
		})
	}
}
