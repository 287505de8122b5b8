package database

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upsell-workers/internal/common/config"
)

// ==========================
// Redis Tests
// ==========================

func TestRedisClient_Ping(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()))

	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}

func TestNewRedis_RequiresAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

// ==========================
// Elasticsearch Tests
// ==========================

func TestElasticsearchClient_Ping(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(status)
	}))
	defer srv.Close()

	client, err := NewElasticsearch(config.ElasticsearchConfig{URL: srv.URL})
	require.NoError(t, err)

	assert.NoError(t, client.Ping(context.Background()))

	status = http.StatusServiceUnavailable
	err = client.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

// ==========================
// Postgres Tests
// ==========================

func TestNewPostgres_AppliesPool(t *testing.T) {
	client, err := NewPostgres(config.PostgresConfig{
		Host: "localhost", Port: 5432, Database: "storefront", User: "upsell",
		SSLMode: "disable", MaxConnections: 7, MaxIdle: 2,
	})
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, 7, client.DB.Stats().MaxOpenConnections)
}
