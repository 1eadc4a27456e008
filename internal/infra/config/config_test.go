package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_MODE", "")
	t.Setenv("RETRY_BACKOFF", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ModeMemory, cfg.StorageMode)
	require.Equal(t, ModeMemory, cfg.LockMode)
	require.Equal(t, ModeSandbox, cfg.PaymentsMode)
	require.Equal(t, 10*time.Second, cfg.GatewayTimeout)
	require.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
	require.True(t, cfg.SeedFixtures)
}

func TestLoadRejectsMongoWithoutURI(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_MODE", "mongo")
	t.Setenv("MONGO_URI", "")

	_, err := Load()
	require.ErrorContains(t, err, "MONGO_URI")
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("LOCK_TTL", "soon")

	_, err := Load()
	require.ErrorContains(t, err, "LOCK_TTL")
}

func TestValidateRequiresStripeSecrets(t *testing.T) {
	cfg := Config{
		StorageMode:  ModeMemory,
		LockMode:     ModeMemory,
		PaymentsMode: ModeStripe,
		JWTSecret:    "secret",
		LockTTL:      time.Second,
		LockWait:     time.Second,
	}
	require.ErrorContains(t, cfg.Validate(), "STRIPE_SECRET_KEY")

	cfg.StripeSecretKey = "sk_test"
	cfg.StripeWebhookSecret = "whsec"
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsMongoWithProcessLock(t *testing.T) {
	cfg := Config{
		StorageMode:  ModeMongo,
		MongoURI:     "mongodb://localhost:27017",
		KafkaBrokers: []string{"localhost:9092"},
		LockMode:     ModeMemory,
		PaymentsMode: ModeSandbox,
		JWTSecret:    "secret",
		LockTTL:      time.Second,
		LockWait:     time.Second,
	}
	require.ErrorContains(t, cfg.Validate(), "LOCK_MODE=redis")

	cfg.LockMode = ModeRedis
	cfg.RedisAddr = "localhost:6379"
	require.NoError(t, cfg.Validate())
}

func TestSplitList(t *testing.T) {
	require.Equal(t, []string{"a:9092", "b:9092"}, splitList(" a:9092, ,b:9092 "))
	require.Nil(t, splitList(""))
}
