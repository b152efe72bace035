//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsEnabled(t *testing.T) {
	cfg := New("acme").
		Enable("weather", "getWeather").
		Enable("calc", Wildcard).
		Enable("files", "read*")

	assert.True(t, cfg.IsEnabled("weather", "getWeather"))
	assert.False(t, cfg.IsEnabled("weather", "getForecast"))
	assert.True(t, cfg.IsEnabled("calc", "anything"))
	assert.True(t, cfg.IsEnabled("files", "readFile"))
	assert.False(t, cfg.IsEnabled("files", "writeFile"))
	assert.False(t, cfg.IsEnabled("unknown", "getWeather"))

	var nilCfg *Config
	assert.False(t, nilCfg.IsEnabled("calc", "add"))
	assert.Nil(t, nilCfg.Providers())
}

func TestParseAndLoad(t *testing.T) {
	doc := []byte(`
tenant_id: acme
capabilities:
  weather: [getWeather]
  calc: ["*"]
`)
	cfg, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.TenantID)
	assert.Equal(t, []string{"calc", "weather"}, cfg.Providers())
	assert.True(t, cfg.IsEnabled("weather", "getWeather"))

	path := filepath.Join(t.TempDir(), "workflow.yaml")
	require.NoError(t, os.WriteFile(path, doc, 0o600))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Parse([]byte("capabilities: [oops"))
	assert.Error(t, err)

	_, err = Parse([]byte("capabilities:\n  calc: [\"get[\"]\n"))
	assert.Error(t, err)

	empty, err := Parse([]byte("tenant_id: t"))
	require.NoError(t, err)
	assert.NotNil(t, empty.Capabilities)
}

func TestJSONRoundTrip(t *testing.T) {
	cfg := New("acme").Enable("weather", "getWeather", "get*")
	data, err := cfg.Marshal()
	require.NoError(t, err)
	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	_, err = Unmarshal([]byte("nope"))
	assert.Error(t, err)
}
