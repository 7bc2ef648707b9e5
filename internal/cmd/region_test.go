package cmd

import (
	"encoding/json"
	"testing"

	"github.com/quantmind-br/depctl/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionCmd(t *testing.T) {
	t.Run("override", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Region.Override = "cn"

		out, err := execute(t, cfg, "region")
		require.NoError(t, err)
		assert.Contains(t, out, "Region:      CN")
		assert.Contains(t, out, "Method:      override")
		assert.Contains(t, out, "npmmirror")
	})

	t.Run("json", func(t *testing.T) {
		cfg := newTestConfig(t)

		out, err := execute(t, cfg, "region", "--json")
		require.NoError(t, err)

		var report struct {
			Region      core.Region          `json:"region"`
			Method      core.DetectionMethod `json:"method"`
			NpmRegistry string               `json:"npmRegistry"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Equal(t, core.RegionInternational, report.Region)
		assert.Equal(t, core.DetectionOverride, report.Method)
		assert.Equal(t, "https://registry.npmjs.org", report.NpmRegistry)
	})

	t.Run("detection is cached", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Region.Override = ""

		out, err := execute(t, cfg, "region", "--redetect")
		require.NoError(t, err)
		assert.Contains(t, out, "Method:      locale")

		out, err = execute(t, cfg, "region")
		require.NoError(t, err)
		assert.Contains(t, out, "Method:      cache")

		out, err = execute(t, cfg, "region", "--clear")
		require.NoError(t, err)
		assert.Contains(t, out, "Region cache cleared")

		out, err = execute(t, cfg, "region")
		require.NoError(t, err)
		assert.Contains(t, out, "Method:      locale")
	})

	t.Run("conflicting flags", func(t *testing.T) {
		cfg := newTestConfig(t)
		_, err := execute(t, cfg, "region", "--redetect", "--clear")
		require.Error(t, err)
		assert.Equal(t, core.ExitInvalidArgs, ExitCode(err))
	})
}
