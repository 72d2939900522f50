package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EmbeddedDefaults(t *testing.T) {
	set, err := New("", zerolog.Nop())
	require.NoError(t, err)

	t.Run("manual", func(t *testing.T) {
		out, err := set.Render(Manual, ManualData{FeatureDescription: "  Login form with email and password  "})
		require.NoError(t, err)
		assert.Contains(t, out, "Login form with email and password")
		assert.Contains(t, out, "**Expected result:**")
		assert.NotContains(t, out, "  Login form")
	})

	t.Run("autotest python", func(t *testing.T) {
		out, err := set.Render(Autotest, AutotestData{ManualTestText: "**Test case 1**", Language: "python"})
		require.NoError(t, err)
		assert.Contains(t, out, "Python")
		assert.Contains(t, out, "pytest")
		assert.Contains(t, out, "**Test case 1**")
	})

	t.Run("autotest java", func(t *testing.T) {
		out, err := set.Render(Autotest, AutotestData{ManualTestText: "cases", Language: "java"})
		require.NoError(t, err)
		assert.Contains(t, out, "JUnit 5")
		assert.NotContains(t, out, "pytest")
	})
}

func TestRender_Errors(t *testing.T) {
	set, err := New("", zerolog.Nop())
	require.NoError(t, err)

	_, err = set.Render("missing", nil)
	assert.Error(t, err)

	_, err = set.Render(Manual, map[string]string{})
	assert.Error(t, err, "missing keys must fail rendering")
}

func TestNew_OverrideDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manual.tmpl"), []byte("CUSTOM {{ .FeatureDescription | upper }}"), 0644))

	set, err := New(dir, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, dir, set.Dir())

	out, err := set.Render(Manual, ManualData{FeatureDescription: "search"})
	require.NoError(t, err)
	assert.Equal(t, "CUSTOM SEARCH", out)

	// autotest falls back to the embedded default
	out, err = set.Render(Autotest, AutotestData{ManualTestText: "x", Language: "java"})
	require.NoError(t, err)
	assert.Contains(t, out, "Java")
}

func TestNew_InvalidOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manual.tmpl"), []byte("{{ .Broken "), 0644))

	_, err := New(dir, zerolog.Nop())
	assert.Error(t, err)
}

func TestReload_KeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manual.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("v1 {{ .FeatureDescription }}"), 0644))

	set, err := New(dir, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("v2 {{ .FeatureDescription "), 0644))
	assert.Error(t, set.Reload())

	out, err := set.Render(Manual, ManualData{FeatureDescription: "f"})
	require.NoError(t, err)
	assert.Equal(t, "v1 f", out)

	require.NoError(t, os.WriteFile(path, []byte("v3 {{ .FeatureDescription }}"), 0644))
	require.NoError(t, set.Reload())

	out, err = set.Render(Manual, ManualData{FeatureDescription: "f"})
	require.NoError(t, err)
	assert.Equal(t, "v3 f", out)
}
