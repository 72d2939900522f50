package prompts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWatcher_RequiresDirectory(t *testing.T) {
	set, err := New("", zerolog.Nop())
	require.NoError(t, err)

	_, err = NewWatcher(set, 0)
	assert.Error(t, err)
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manual.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("before {{ .FeatureDescription }}"), 0644))

	set, err := New(dir, zerolog.Nop())
	require.NoError(t, err)

	w, err := NewWatcher(set, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("after {{ .FeatureDescription }}"), 0644))

	assert.Eventually(t, func() bool {
		out, err := set.Render(Manual, ManualData{FeatureDescription: "x"})
		return err == nil && out == "after x"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manual.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("stable {{ .FeatureDescription }}"), 0644))

	set, err := New(dir, zerolog.Nop())
	require.NoError(t, err)

	w, err := NewWatcher(set, 10*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644))
	time.Sleep(100 * time.Millisecond)

	out, err := set.Render(Manual, ManualData{FeatureDescription: "x"})
	require.NoError(t, err)
	assert.Equal(t, "stable x", out)

	require.NoError(t, w.Stop())
}
