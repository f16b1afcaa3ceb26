package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, 3, cfg.Conversion.BatchSize)
	assert.Equal(t, 1024, cfg.Conversion.MaxWidth)
	assert.Equal(t, 30*time.Second, cfg.Conversion.OfficeTimeout)
	assert.Equal(t, 3, cfg.Preload.Window)
	assert.Equal(t, 100*time.Millisecond, cfg.Preload.Delay)
	assert.Equal(t, 24*time.Hour, cfg.Storage.MaxAge)
	assert.Equal(t, "./data/resources", cfg.Storage.ResourcesDir)
	assert.Equal(t, "shared", cfg.Room.AuthorityPolicy)
	assert.Equal(t, 500, cfg.Room.ChatMaxLen)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9090
log_level: debug
conversion:
  quality: 60
room:
  authority_policy: exclusive
rtc:
  ice_servers:
    - urls: ["stun:stun.example.org:3478"]
identity:
  allow_guests: false
  users:
    - username: ms.frizzle
      name: Ms. Frizzle
      role: teacher
`), 0o644))
	t.Setenv("CLASSROOM_PORT", "7070")
	t.Setenv("CLASSROOM_PRELOAD_WINDOW", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, 5, cfg.Preload.Window)
	assert.Equal(t, 60, cfg.Conversion.Quality)
	assert.Equal(t, "exclusive", cfg.Room.AuthorityPolicy)
	require.Len(t, cfg.RTC.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.example.org:3478"}, cfg.RTC.ICEServers[0].URLs)
	assert.False(t, cfg.Identity.AllowGuests)

	ids := cfg.Identity.Identities()
	require.Len(t, ids, 1)
	assert.Equal(t, domain.RoleAuthority, ids[0].Role)
	assert.Equal(t, "Ms. Frizzle", ids[0].DisplayName)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("conversion:\n  quality: 150\n"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "quality")
}

func TestApplyLogLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	ApplyLogLevel("warn")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	ApplyLogLevel("loud")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestWatch_ReloadsLogLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0o644))
	_, err := Watch(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("log_level: error\n"), 0o644))
	assert.Eventually(t, func() bool {
		return zerolog.GlobalLevel() == zerolog.ErrorLevel
	}, 3*time.Second, 20*time.Millisecond)
}
