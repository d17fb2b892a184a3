package featuregate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KretovDmitry/backoffice/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	flags := map[string]bool{"pos_checkout": true, "beta": false}

	gate, err := New(&config.Config{FeatureGate: config.FeatureGate{Static: flags}})
	require.NoError(t, err)
	require.IsType(t, &Static{}, gate)

	// Later changes to the source map do not leak in.
	flags["beta"] = true

	for key, want := range map[string]bool{"pos_checkout": true, "beta": false, "missing": false} {
		got, err := gate.IsEnabled(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, want, got, key)
	}
}

func TestClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		switch r.URL.Path {
		case "/api/flags/pos_checkout":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"key":"pos_checkout","enabled":true}`))
		case "/api/flags/disabled":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"key":"disabled","enabled":false}`))
		case "/api/flags/broken":
			w.WriteHeader(http.StatusInternalServerError)
		case "/api/flags/garbled":
			_, _ = w.Write([]byte(`{"enabled":`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	gate, err := New(&config.Config{FeatureGate: config.FeatureGate{
		URL:     server.URL + "/api/",
		Timeout: time.Second,
	}})
	require.NoError(t, err)
	require.IsType(t, &Client{}, gate)

	tests := []struct {
		key     string
		want    bool
		wantErr bool
	}{
		{key: "pos_checkout", want: true},
		{key: "disabled", want: false},
		{key: "unknown", want: false},
		{key: "broken", wantErr: true},
		{key: "garbled", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt

		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()

			got, err := gate.IsEnabled(context.Background(), tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				assert.False(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClientUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	gate, err := NewClient(url, &http.Client{Timeout: time.Second})
	require.NoError(t, err)

	enabled, err := gate.IsEnabled(context.Background(), "pos_checkout")
	assert.Error(t, err)
	assert.False(t, enabled)
}
