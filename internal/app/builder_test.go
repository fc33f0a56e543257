package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/possync/possync/internal/config"
)

func createValidTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.Parse([]byte(`
tables:
  - name: producto
  - name: cliente
    deletedColumn: deleted
`))
	require.NoError(t, err)
	return cfg
}

func TestBaseConfig(t *testing.T) {
	t.Parallel()

	built, err := baseConfig(WithConfig(createValidTestConfig(t)))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8765", built.address)
	assert.Equal(t, defaultRequestTimeout, built.requestTimeout)

	_, err = baseConfig()
	require.Error(t, err)
}

func TestWithAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{name: "port only", address: ":9090"},
		{name: "localhost", address: "localhost:9090"},
		{name: "ip and port", address: "127.0.0.1:8765"},
		{name: "empty", address: "", wantErr: true},
		{name: "missing port", address: ":", wantErr: true},
		{name: "no colon", address: "9090", wantErr: true},
		{name: "hostname", address: "pos-terminal:9090", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			built, err := baseConfig(WithConfig(createValidTestConfig(t)), WithAddress(tt.address))
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, built)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.address, built.address)
		})
	}
}

func TestWithRequestTimeout(t *testing.T) {
	t.Parallel()

	built, err := baseConfig(WithConfig(createValidTestConfig(t)), WithRequestTimeout(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, time.Minute, built.requestTimeout)

	_, err = baseConfig(WithConfig(createValidTestConfig(t)), WithRequestTimeout(0))
	require.Error(t, err)
}
