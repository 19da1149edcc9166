package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mirror.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	t.Parallel()
	cfg := EmptyMirrorConfig()

	assert.Equal(t, "0.0.0.0", cfg.GetUDPAddress())
	assert.Equal(t, 4690, cfg.GetUDPPort())
	assert.Equal(t, 1<<20, cfg.GetUDPRcvBuf())
	assert.Equal(t, time.Minute, cfg.GetStatsInterval())
	assert.Equal(t, 1.0, cfg.GetReplaySpeed())
	assert.Equal(t, 0.0, cfg.GetMinFaceArea())
	assert.Equal(t, 1e-4, cfg.GetMinFootprintArea())
	assert.Empty(t, cfg.GetThemePath())
	assert.True(t, cfg.GetThemeWatch())
	assert.Equal(t, "data/planemirror.db", cfg.GetDBPath())
	assert.Equal(t, "db/migrations", cfg.GetMigrationsDir())
	assert.True(t, cfg.GetPersistEvents())
	assert.Equal(t, ":8080", cfg.GetHTTPAddress())
}

func TestLoadPartialConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{"udp_port": 9999, "stats_interval": "5s", "theme_watch": false}`)
	cfg, err := LoadMirrorConfig(path)
	require.NoError(t, err)

	// Overridden values.
	assert.Equal(t, 9999, cfg.GetUDPPort())
	assert.Equal(t, 5*time.Second, cfg.GetStatsInterval())
	assert.False(t, cfg.GetThemeWatch())

	// Omitted fields keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.GetUDPAddress())
	assert.Equal(t, "data/planemirror.db", cfg.GetDBPath())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad port", `{"udp_port": 70000}`, "udp_port"},
		{"bad interval", `{"stats_interval": "soon"}`, "stats_interval"},
		{"bad speed", `{"replay_speed": -2}`, "replay_speed"},
		{"negative area", `{"min_face_area": -1}`, "min_face_area"},
		{"not json", `{"udp_port": `, "parse config JSON"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := writeConfig(t, tc.content)
			_, err := LoadMirrorConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadConfigRejectsWrongExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mirror.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	_, err := LoadMirrorConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".json extension")
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadMirrorConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stat config file")
}

func TestMustLoadDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := MustLoadDefaultConfig()
	assert.Equal(t, 4690, cfg.GetUDPPort())
	assert.Equal(t, "config/theme.yaml", cfg.GetThemePath())
	assert.True(t, cfg.GetPersistEvents())
}
