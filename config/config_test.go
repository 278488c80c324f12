package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/messfeedback/go-auth/config"
)

const testKey = "0123456789abcdef0123456789abcdef"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("AUTH_SIGNING_KEY", testKey)
	t.Setenv("AUTH_MAX_LOGIN_ATTEMPTS", "7")
	t.Setenv("AUTH_LOCKOUT_DURATION", "45m")
	t.Setenv("AUTH_AUDIENCE", "mess, kiosk")
	t.Setenv("AUTH_SECURE_COOKIES", "false")

	cfg, err := config.Load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, testKey, cfg.GetSigningKey())
	assert.Equal(t, 24, cfg.GetTokenExpiration())
	assert.Equal(t, 7, cfg.GetMaxLoginAttempts())
	assert.Equal(t, 45*time.Minute, cfg.GetLockoutDuration())
	assert.Equal(t, []string{"mess", "kiosk"}, cfg.GetAudience())
	assert.False(t, cfg.GetSecureCookies())
	assert.Equal(t, "Bearer", cfg.GetAuthScheme())
}

func TestLoad_TOMLThenEnvFile(t *testing.T) {
	tomlPath := writeFile(t, "auth.toml", `
signing_key = "toml-key-toml-key-toml-key-toml-key"
issuer = "hostel-mess"
token_expiration = 12
lockout_duration = "10m"
log_level = "debug"
`)
	envPath := writeFile(t, "test.env", "AUTH_ISSUER=from-dotenv\n")

	t.Setenv("AUTH_ISSUER", "")
	t.Cleanup(func() { os.Unsetenv("AUTH_ISSUER") })
	require.NoError(t, os.Unsetenv("AUTH_ISSUER"))

	cfg, err := config.Load(tomlPath, envPath)
	require.NoError(t, err)

	assert.Equal(t, "toml-key-toml-key-toml-key-toml-key", cfg.SigningKey)
	assert.Equal(t, "from-dotenv", cfg.GetIssuer())
	assert.Equal(t, 12, cfg.GetTokenExpiration())
	assert.Equal(t, 10*time.Minute, cfg.GetLockoutDuration())
	assert.Equal(t, "DEBUG", cfg.SlogLevel().String())
}

func TestLoad_BadTOML(t *testing.T) {
	path := writeFile(t, "bad.toml", "signing_key = \n")

	_, err := config.Load(path)
	require.Error(t, err)

	var richErr *errors.Error
	require.True(t, errors.As(err, &richErr))
	assert.Equal(t, errors.CategoryValidation, richErr.Category)
}

func TestValidate(t *testing.T) {
	cfg := config.Default()
	cfg.SigningKey = "short"
	cfg.MaxLoginAttempts = 0
	cfg.BootstrapAdmin = "warden"

	err := cfg.Validate()
	require.Error(t, err)

	var richErr *errors.Error
	require.True(t, errors.As(err, &richErr))
	assert.Equal(t, "INVALID_CONFIG", richErr.TextCode)
	assert.Contains(t, richErr.Metadata, "signing_key")
	assert.Contains(t, richErr.Metadata, "max_login_attempts")
	assert.Contains(t, richErr.Metadata, "bootstrap_admin_password")

	cfg = config.Default()
	cfg.SigningKey = testKey
	assert.NoError(t, cfg.Validate())
}
