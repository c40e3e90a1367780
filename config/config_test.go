package config

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"material-pipeline/constant"
)

func TestNewStorageRegistryLocal(t *testing.T) {
	cfg := Storage{
		Provider: constant.StorageProviderLocal,
		URLTTL:   time.Minute,
		Local:    LocalStorage{Root: t.TempDir(), BaseURL: "http://localhost/storage/local", SigningSecret: "s3cret"},
	}

	registry, err := NewStorageRegistry(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, constant.StorageProviderLocal, registry.Default().Name())

	_, err = registry.Get(constant.StorageProviderMinIO)
	assert.Error(t, err)
}

func TestNewStorageRegistryRejectsUnconfiguredDefault(t *testing.T) {
	_, err := NewStorageRegistry(context.Background(), Storage{Provider: constant.StorageProviderGCS})
	assert.Error(t, err)

	_, err = NewStorageRegistry(context.Background(), Storage{
		Provider: constant.StorageProviderLocal,
		Local:    LocalStorage{Root: t.TempDir()},
	})
	assert.ErrorContains(t, err, "signing_secret")
}

func TestRabbitMQEnabled(t *testing.T) {
	var missing *RabbitMQ
	assert.False(t, missing.Enabled())
	assert.False(t, (&RabbitMQ{}).Enabled())
	assert.True(t, (&RabbitMQ{Host: "localhost"}).Enabled())
}

func TestRabbitMQURIEscapesCredentials(t *testing.T) {
	r := &RabbitMQ{Host: "broker", Port: 5673, User: "svc", Pass: "p@ss/word"}

	parsed, err := amqp.ParseURI(r.URI())
	require.NoError(t, err)
	assert.Equal(t, "broker", parsed.Host)
	assert.Equal(t, 5673, parsed.Port)
	assert.Equal(t, "svc", parsed.Username)
	assert.Equal(t, "p@ss/word", parsed.Password)
}
