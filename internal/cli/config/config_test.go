package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesDefaultsAndPersistsAuth(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, InitWithFs(fs, "/home/analyst/.soc-assistant"))

	exists, err := afero.Exists(fs, "/home/analyst/.soc-assistant/config.yaml")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, DefaultServerURL, GetServerURL())
	assert.False(t, IsLoggedIn())

	require.NoError(t, SetServerURL("https://soc.example.com/"))
	require.NoError(t, SaveAuth("analyst", "access", "refresh"))
	require.NoError(t, SaveAccessToken("access-2"))

	// 重新加载后读到保存的值
	require.NoError(t, InitWithFs(fs, "/home/analyst/.soc-assistant"))
	assert.Equal(t, "https://soc.example.com", GetServerURL())
	assert.Equal(t, "access-2", GetAccessToken())
	assert.Equal(t, "refresh", GetRefreshToken())
	assert.Equal(t, "analyst", GetUsername())
	assert.True(t, IsLoggedIn())

	require.NoError(t, ClearToken())
	require.NoError(t, InitWithFs(fs, "/home/analyst/.soc-assistant"))
	assert.False(t, IsLoggedIn())
}
