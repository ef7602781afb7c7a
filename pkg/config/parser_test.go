package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnines/ants-tap/pkg/errors"
)

func TestTapLoader_ValidMinimalConfig(t *testing.T) {
	yamlContent := `
username: shop
password: secret
`
	tap, err := NewDefaultLoader().Parse([]byte(yamlContent))
	require.NoError(t, err)

	assert.Equal(t, "shop", tap.Username)
	assert.Equal(t, DefaultAPIURL, tap.APIURL)
	assert.Equal(t, ErrorPolicyIsolated, tap.ErrorPolicy)
	assert.Equal(t, 1, tap.Concurrency)
	assert.Equal(t, 30*time.Second, tap.RequestTimeout())
	assert.Equal(t, 60*time.Second, tap.RefreshBefore())
	assert.Equal(t, TokenStoreConfig, tap.TokenStore.Type)
	assert.Equal(t, "output", tap.Output.Dir)
	assert.Equal(t, ColumnsObserved, tap.Output.Columns)
}

func TestTapLoader_ParsesJSONConfig(t *testing.T) {
	jsonContent := `{
    "username": "shop",
    "password": "secret",
    "api_url": "https://shopapi.activeants.nl",
    "project_ids": ["p1", "p2"],
    "start_date": "2024-01-01",
    "token": "abc",
    "token_expires_at": "2030-01-01T10:00:00.123456"
}`
	tap, err := NewDefaultLoader().Parse([]byte(jsonContent))
	require.NoError(t, err)

	assert.Equal(t, "https://shopapi.activeants.nl", tap.APIURL)
	assert.Equal(t, []string{"p1", "p2"}, tap.ProjectIDs)

	token, exp, ok := tap.PersistedToken()
	require.True(t, ok)
	assert.Equal(t, "abc", token)
	assert.Equal(t, 2030, exp.Year())
}

func TestTapLoader_ExpandsEnvironment(t *testing.T) {
	t.Setenv("ANTS_PASSWORD", "from-env")

	tap, err := NewDefaultLoader().Parse([]byte("username: shop\npassword: ${ANTS_PASSWORD}\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", tap.Password)
}

func TestTapLoader_ValidationErrors(t *testing.T) {
	yamlContent := `
error_policy: sometimes
streams: [products, invoices]
pagination:
  type: cursor
token_store:
  type: redis
start_date: yesterday
`
	_, err := NewDefaultLoader().Parse([]byte(yamlContent))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))

	var ce *errors.ConfigError
	require.True(t, errors.As(err, &ce))

	fields := make(map[string]bool)
	for _, f := range ce.Fields {
		fields[f.Field] = true
	}
	for _, want := range []string{"username", "password", "error_policy", "streams", "pagination.type", "token_store.type", "start_date"} {
		assert.True(t, fields[want], "expected validation error for %s", want)
	}
}

func TestTapLoader_PaginationDefaults(t *testing.T) {
	tap, err := NewDefaultLoader().Parse([]byte("username: a\npassword: b\npagination:\n  type: page\n"))
	require.NoError(t, err)
	assert.Equal(t, "page", tap.Pagination.PageParam)
	assert.Equal(t, 100, tap.Pagination.PageSize)

	tap, err = NewDefaultLoader().Parse([]byte("username: a\npassword: b\npagination:\n  type: link\n"))
	require.NoError(t, err)
	assert.Equal(t, "links.next", tap.Pagination.NextLinkPath)
}

func TestTapLoader_LoadSetsPathOnConfigError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"username": "x"}`), 0o600))

	_, err := NewDefaultLoader().Load(path)
	var ce *errors.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, path, ce.Path)
}

func TestTapLoader_MissingFile(t *testing.T) {
	_, err := NewDefaultLoader().Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestPersistedToken_RequiresBothFields(t *testing.T) {
	tap := &Tap{Token: "abc"}
	_, _, ok := tap.PersistedToken()
	assert.False(t, ok)

	tap.TokenExpiresAt = "not a date"
	_, _, ok = tap.PersistedToken()
	assert.False(t, ok)
}
