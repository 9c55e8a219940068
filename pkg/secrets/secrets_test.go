package secrets

import (
	"context"
	"errors"
	"testing"

	"realtime-chat/backend/pkg/logger"

	vault "github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKV struct {
	data  map[string]interface{}
	err   error
	calls int
}

func (f *fakeKV) Get(ctx context.Context, secretPath string) (*vault.KVSecret, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &vault.KVSecret{Data: f.data}, nil
}

func managerWith(kv kvReader) *VaultManager {
	return &VaultManager{
		kv:     kv,
		config: VaultConfig{Mount: "secret", Path: "realtime-chat"},
		cache:  make(map[string]string),
		log:    logger.Discard(),
	}
}

func TestVaultManagerReadsAndCaches(t *testing.T) {
	kv := &fakeKV{data: map[string]interface{}{KeyJWTSecret: "from-vault"}}
	m := managerWith(kv)

	for i := 0; i < 2; i++ {
		v, err := m.GetSecret(context.Background(), KeyJWTSecret)
		require.NoError(t, err)
		assert.Equal(t, "from-vault", v)
	}
	assert.Equal(t, 1, kv.calls)
}

func TestVaultManagerFallsBackToEnvironment(t *testing.T) {
	t.Setenv("DB_PASSWORD", "from-env")

	m := managerWith(&fakeKV{data: map[string]interface{}{}})
	v, err := m.GetSecret(context.Background(), KeyDBPassword)
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)

	m = managerWith(&fakeKV{err: vault.ErrSecretNotFound})
	v, err = m.GetSecret(context.Background(), KeyDBPassword)
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)
}

func TestVaultManagerTransportError(t *testing.T) {
	m := managerWith(&fakeKV{err: errors.New("connection refused")})

	_, err := m.GetSecret(context.Background(), KeyJWTSecret)
	require.Error(t, err)
	assert.Equal(t, "fallback", m.GetSecretWithDefault(context.Background(), KeyJWTSecret, "fallback"))
}

func TestDisabledVaultUsesEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")

	m, err := NewVaultManager(VaultConfig{Enabled: false}, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, "env-secret", m.GetSecretWithDefault(context.Background(), KeyJWTSecret, "default"))
	assert.Equal(t, "default", m.GetSecretWithDefault(context.Background(), "missing_key", "default"))
}

func TestEnabledVaultRequiresAddressAndToken(t *testing.T) {
	_, err := NewVaultManager(VaultConfig{Enabled: true}, logger.Discard())
	assert.ErrorIs(t, err, ErrNoVaultAddress)

	_, err = NewVaultManager(VaultConfig{Enabled: true, Address: "http://127.0.0.1:8200"}, logger.Discard())
	assert.ErrorIs(t, err, ErrNoVaultToken)
}
