package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gps.conf", cfg.XTRA.GPSConf)
	assert.Equal(t, 30, cfg.HTTP.TimeoutSecs)
	assert.Empty(t, cfg.HTTP.UserAgent)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3600, cfg.Serve.CacheTTLSecs)
	assert.InDelta(t, 6.0, cfg.Serve.RefreshPerMinute, 0.001)
	assert.Equal(t, []string{"*"}, cfg.Serve.CORSOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
xtra:
  gps_conf: /etc/gps.conf
http:
  timeout_secs: 10
  user_agent: xtrafetch/1.0
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/etc/gps.conf", cfg.XTRA.GPSConf)
	assert.Equal(t, 10, cfg.HTTP.TimeoutSecs)
	assert.Equal(t, "xtrafetch/1.0", cfg.HTTP.UserAgent)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 3600, cfg.Serve.CacheTTLSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
xtra:
  gps_conf: /etc/gps.conf
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("XTRAFETCH_XTRA_GPS_CONF", "/vendor/etc/gps.conf")
	t.Setenv("XTRAFETCH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "/vendor/etc/gps.conf", cfg.XTRA.GPSConf)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("XTRAFETCH_SERVER_PORT", "3000")
	t.Setenv("XTRAFETCH_HTTP_TIMEOUT_SECS", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 5, cfg.HTTP.TimeoutSecs)
	assert.Equal(t, "5s", cfg.HTTP.Timeout().String())
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestLoadServers_PropertiesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gps.conf")
	conf := `# XTRA mirrors
NTP_SERVER=north-america.pool.ntp.org
XTRA_SERVER_1=http://xtra1.gpsonextra.net/xtra2.bin
XTRA_SERVER_3=http://xtra3.gpsonextra.net/xtra2.bin
XTRA_SERVER_2=
DEBUG_LEVEL = 3
`
	require.NoError(t, os.WriteFile(path, []byte(conf), 0644))

	props, err := LoadServers(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"XTRA_SERVER_1": "http://xtra1.gpsonextra.net/xtra2.bin",
		"XTRA_SERVER_3": "http://xtra3.gpsonextra.net/xtra2.bin",
	}, props)
}

func TestLoadServers_ValuesKeptVerbatim(t *testing.T) {
	t.Setenv("HOME", "/home/gps")
	dir := t.TempDir()
	path := filepath.Join(dir, "gps.conf")
	conf := "XTRA_SERVER_1=http://a.example/x.bin?a=1&b=$HOME\r\n" +
		"XTRA_SERVER_2 = http://b.example/x.bin#frag\r\n" +
		"XTRA_SERVER_3=http://c.example/${HOME}/x.bin\r\n"
	require.NoError(t, os.WriteFile(path, []byte(conf), 0644))

	props, err := LoadServers(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"XTRA_SERVER_1": "http://a.example/x.bin?a=1&b=$HOME",
		"XTRA_SERVER_2": "http://b.example/x.bin#frag",
		"XTRA_SERVER_3": "http://c.example/${HOME}/x.bin",
	}, props)
}

func TestPropertiesCodec_Encode(t *testing.T) {
	out, err := propertiesCodec{}.Encode(map[string]any{
		"XTRA_SERVER_2": "http://b.example/x.bin",
		"XTRA_SERVER_1": "http://a.example/x.bin#frag",
	})
	require.NoError(t, err)

	decoded := map[string]any{}
	require.NoError(t, propertiesCodec{}.Decode(out, decoded))
	assert.Equal(t, "http://a.example/x.bin#frag", decoded["XTRA_SERVER_1"])
	assert.Equal(t, "http://b.example/x.bin", decoded["XTRA_SERVER_2"])
}

func TestLoadServers_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gps.conf")
	require.NoError(t, os.WriteFile(path, []byte("XTRA_SERVER_1=http://file.example/xtra.bin\n"), 0644))

	t.Setenv("XTRA_SERVER_1", "http://env.example/xtra.bin")
	t.Setenv("XTRA_SERVER_2", "http://env2.example/xtra.bin")

	props, err := LoadServers(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env.example/xtra.bin", props["XTRA_SERVER_1"])
	assert.Equal(t, "http://env2.example/xtra.bin", props["XTRA_SERVER_2"])
	assert.NotContains(t, props, "XTRA_SERVER_3")
}

func TestLoadServers_MissingFile(t *testing.T) {
	props, err := LoadServers(filepath.Join(t.TempDir(), "absent.conf"))
	require.NoError(t, err)
	assert.Empty(t, props)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.XTRA.GPSConf = "gps.conf"
	cfg.HTTP.TimeoutSecs = 30
	cfg.Server.Port = 8080
	cfg.Serve.CacheTTLSecs = 3600
	cfg.Serve.RefreshPerMinute = 6
	return cfg
}

func TestValidateDownload(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0 // irrelevant outside serve

	assert.NoError(t, cfg.Validate("download"))
	assert.NoError(t, cfg.Validate("servers"))
}

func TestValidateDownload_Problems(t *testing.T) {
	cfg := validDefaults()
	cfg.XTRA.GPSConf = " "
	cfg.HTTP.TimeoutSecs = -1

	err := cfg.Validate("download")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xtra.gps_conf is required")
	assert.Contains(t, err.Error(), "http.timeout_secs must be >= 0")
}

func TestValidateServe_ValidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 9090

	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateServe_Refresh(t *testing.T) {
	cfg := validDefaults()
	cfg.Serve.RefreshPerMinute = 0
	cfg.Serve.CacheTTLSecs = -5

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "serve.refresh_per_minute must be > 0")
	assert.Contains(t, err.Error(), "serve.cache_ttl_secs must be >= 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
