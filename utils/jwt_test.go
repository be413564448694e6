package utils

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cppla/stickerguard/config"
)

func TestMain(m *testing.M) {
	Sugar = zap.NewNop().Sugar()
	config.SetForTest(config.AppConfig{
		JWTSecret: "unit-test-secret",
		RedisHost: "127.0.0.1",
		RedisPort: 1, // nothing listens here; redis-backed paths fall back
	})
	os.Exit(m.Run())
}

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("user-1", "alex", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alex", claims.Username)
}

func TestParseTokenRejectsTampering(t *testing.T) {
	token, err := GenerateToken("user-1", "alex", time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token + "x")
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := GenerateToken("user-1", "alex", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token)
	assert.Error(t, err)
}

func TestBlacklistFallsBackToMemory(t *testing.T) {
	token, err := GenerateToken("user-2", "kim", time.Hour)
	require.NoError(t, err)

	assert.False(t, IsTokenBlacklisted(token))
	BlacklistToken(token, time.Now().Add(time.Hour))
	assert.True(t, IsTokenBlacklisted(token))
}

func TestSanitizeStripsMarkup(t *testing.T) {
	assert.Equal(t, "note text", Sanitize("<b>note</b> text"))
	assert.Equal(t, "", Sanitize("<script>alert(1)</script>"))
}
