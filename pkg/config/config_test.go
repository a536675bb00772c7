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
	path := filepath.Join(t.TempDir(), "client.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ReposFile(t *testing.T) {
	path := writeConfig(t, `{
		"default": "main",
		"repos": {
			"main": {"url": "https://example.com/repo", "session": "abc"},
			"Other": {"url": "http://localhost:8000"}
		},
		"pull": {"workers": 4, "retry": "2s"}
	}`)

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, []string{"main", "other"}, cfg.RepoNames())

	rc, err := cfg.Repo("")
	require.NoError(t, err)
	assert.Equal(t, "main", rc.Name)
	assert.Equal(t, "https://example.com/repo", rc.URL)
	assert.Equal(t, "abc", rc.Session)

	rc, err = cfg.Repo("OTHER")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", rc.URL)
	assert.Empty(t, rc.Session)

	assert.Equal(t, 4, cfg.Pull.Workers)
	assert.Equal(t, 2*time.Second, cfg.Pull.Retry)
	// 未覆盖的值取默认
	assert.Equal(t, 10, cfg.Pull.Overlap)
	assert.Equal(t, "disk", cfg.Storage.Type)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
}

func TestRepo_FallbackToURL(t *testing.T) {
	cfg := &Config{Repos: map[string]RepoConfig{}}

	rc, err := cfg.Repo("https://example.org/base")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/base", rc.URL)
	assert.Empty(t, rc.Session)

	for _, name := range []string{"nope", "ftp://example.org", "http://"} {
		_, err := cfg.Repo(name)
		assert.ErrorIs(t, err, ErrUnknownRepo, name)
	}

	_, err = cfg.Repo("")
	assert.ErrorIs(t, err, ErrNoRepo)
}

func TestRepo_MissingURL(t *testing.T) {
	cfg := &Config{Repos: map[string]RepoConfig{"broken": {Session: "x"}}}
	_, err := cfg.Repo("broken")
	assert.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `{"storage": {"path": "/from/file"}}`)
	t.Setenv("SLN_STORAGE_PATH", "/from/env")

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Storage.Path)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(New(), writeConfig(t, `{"storage": {"type": "tape"}}`))
	assert.Error(t, err)

	_, err = Load(New(), writeConfig(t, `{not json`))
	assert.Error(t, err)

	_, err = Load(New(), filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "sln", SSLMode: "disable"}
	assert.Equal(t, "host=db user=u password=p dbname=sln port=5432 sslmode=disable TimeZone=UTC", d.DSN())
}
