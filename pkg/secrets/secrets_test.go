package secrets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"whatsapp-assistant/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeVault(t *testing.T, reads *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/secret/data/wa-assistant" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "root", r.Header.Get("X-Vault-Token"))
		atomic.AddInt32(reads, 1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"data": map[string]any{
					"openai_api_key":    "sk-from-vault",
					"twilio_auth_token": "tw-from-vault",
				},
				"metadata": map[string]any{"version": 1},
			},
		})
	}))
}

func TestVaultFill(t *testing.T) {
	var reads int32
	srv := fakeVault(t, &reads)
	defer srv.Close()

	m, err := NewVaultManager(VaultConfig{Address: srv.URL, Token: "root"}, logger.Nop())
	require.NoError(t, err)

	openai := ""
	twilio := "explicit"
	meta := ""
	n, err := Fill(context.Background(), m, map[string]*string{
		"openai_api_key":    &openai,
		"twilio_auth_token": &twilio,
		"meta_access_token": &meta,
	}, logger.Nop())
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, "sk-from-vault", openai)
	assert.Equal(t, "explicit", twilio)
	assert.Empty(t, meta)
	assert.LessOrEqual(t, atomic.LoadInt32(&reads), int32(2))
}

func TestNewVaultManagerRequiresAddressAndToken(t *testing.T) {
	_, err := NewVaultManager(VaultConfig{Token: "x"}, logger.Nop())
	assert.ErrorIs(t, err, ErrNoVaultAddress)

	_, err = NewVaultManager(VaultConfig{Address: "http://127.0.0.1:8200"}, logger.Nop())
	assert.ErrorIs(t, err, ErrNoVaultToken)
}
