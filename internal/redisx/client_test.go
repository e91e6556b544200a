package redisx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientDisabledWithoutAddr(t *testing.T) {
	client, err := NewClient(context.Background(), Config{Addr: "  "})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestOptionsTLS(t *testing.T) {
	opts := Config{Addr: "redis:6379", DB: 2, TLSEnabled: true, TLSInsecure: true}.Options()
	assert.Equal(t, "redis:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	require.NotNil(t, opts.TLSConfig)
	assert.True(t, opts.TLSConfig.InsecureSkipVerify)

	assert.Nil(t, Config{Addr: "redis:6379"}.Options().TLSConfig)
}
