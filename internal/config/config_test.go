package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092")

	require.NoError(t, Load())

	assert.Equal(t, "8080", AppEnv.Port)
	assert.Equal(t, "b2bmarket", AppEnv.DBName)
	assert.Equal(t, 20*time.Minute, AppEnv.AccessTokenTTL)
	assert.Equal(t, 168*time.Hour, AppEnv.RefreshTokenTTL)
	assert.True(t, AppEnv.MongoTransactions)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, AppEnv.KafkaBrokers)
	assert.True(t, AppEnv.KafkaEnabled())
	assert.False(t, AppEnv.MailEnabled())
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "   ")

	err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}
