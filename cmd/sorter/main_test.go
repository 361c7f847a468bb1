package main

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/photo-sorter/internal/common"
	"github.com/Veraticus/photo-sorter/internal/organizer"
	"github.com/Veraticus/photo-sorter/internal/testutil"
)

type testEnv struct {
	configPath string
	library    string
	database   string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		configPath: filepath.Join(dir, "config.yaml"),
		library:    filepath.Join(dir, "library"),
		database:   filepath.Join(dir, "data", "sorter.db"),
	}
	cfg := fmt.Sprintf("library:\n  root: %s\ndatabase:\n  path: %s\nlogging:\n  level: error\n", env.library, env.database)
	require.NoError(t, os.WriteFile(env.configPath, []byte(cfg), 0o600))
	return env
}

// run executes the CLI with a fresh command tree and viper state.
func (e testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	cfgFile = ""
	t.Cleanup(viper.Reset)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", e.configPath}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommands(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	root := newRootCmd()

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"scan", "categories", "review", "history", "watch", "browse", "migrate", "version"} {
		assert.Contains(t, names, want)
	}

	for _, flag := range []string{"config", "library", "db", "log-level", "log-format"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestVersion(t *testing.T) {
	out, err := newTestEnv(t).run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "sorter dev\n", out)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := newTestEnv(t).run(t, "", "--log-level", "loud", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to setup logging")
}

func TestScan_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	inbox := t.TempDir()
	testutil.WriteSolid(t, inbox, "forest.png", 32, 32, color.RGBA{G: 160, B: 40, A: 255})
	testutil.WriteSolid(t, inbox, "page.png", 32, 32, color.RGBA{R: 250, G: 250, B: 250, A: 255})
	testutil.WriteSolid(t, inbox, "nested/face.png", 32, 32, color.RGBA{R: 224, G: 172, B: 105, A: 255})
	testutil.WriteFile(t, inbox, "broken.jpg", []byte("definitely not a jpeg"))

	out, err := env.run(t, "", "scan", "--no-progress", inbox)
	require.NoError(t, err)
	assert.Contains(t, out, "Scan Complete")
	assert.Contains(t, out, "Images found: 4")
	assert.Contains(t, out, "decode-failure")

	left, err := organizer.Enumerate(context.Background(), []string{inbox}, organizer.EnumerateOptions{})
	require.NoError(t, err)
	assert.Empty(t, left, "every image leaves the inbox")
	assert.FileExists(t, filepath.Join(env.library, "Other", "broken.jpg"))

	out, err = env.run(t, "", "categories")
	require.NoError(t, err)
	assert.Contains(t, out, "4 images in 5 categories")

	out, err = env.run(t, "", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "COMPLETED")

	// A second scan of the emptied inbox finds nothing.
	out, err = env.run(t, "", "scan", inbox)
	require.NoError(t, err)
	assert.Contains(t, out, "no images to classify")
}

func TestScan_CopyMode(t *testing.T) {
	env := newTestEnv(t)
	inbox := t.TempDir()
	src := testutil.WriteFile(t, inbox, "broken.png", []byte("nope"))

	_, err := env.run(t, "", "scan", "--no-progress", "--mode", "copy", inbox)
	require.NoError(t, err)

	assert.FileExists(t, src)
	assert.FileExists(t, filepath.Join(env.library, "Other", "broken.png"))
}

func TestScan_InvalidMode(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "", "scan", "--mode", "teleport", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestReview(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "review")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to review.")

	inbox := t.TempDir()
	src := testutil.WriteSolid(t, inbox, "shot.png", 16, 16, color.RGBA{R: 30, G: 30, B: 30, A: 255})

	out, err = env.run(t, "4\n", "review", src)
	require.NoError(t, err)
	assert.Contains(t, out, "Review Complete")
	assert.FileExists(t, filepath.Join(env.library, "Screenshots", "shot.png"))
	assert.NoFileExists(t, src)
}

func TestReview_QueueFromLatestScan(t *testing.T) {
	env := newTestEnv(t)
	inbox := t.TempDir()
	testutil.WriteFile(t, inbox, "broken.gif", []byte("GIF? no"))

	_, err := env.run(t, "", "scan", "--no-progress", inbox)
	require.NoError(t, err)

	out, err := env.run(t, "s\n", "review")
	require.NoError(t, err)
	assert.Contains(t, out, "broken.gif")
	assert.Contains(t, out, "Skipped: 1")
}

func TestMigrate(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "migrate", "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 0")
	assert.Contains(t, out, "Latest version: 3")

	out, err = env.run(t, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "from version 0 to 3")

	out, err = env.run(t, "", "migrate", "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 3")
}

func TestWatch_RequiresInbox(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "", "watch")
	require.Error(t, err)
}

func TestCategories_NoLibraryYet(t *testing.T) {
	_, err := newTestEnv(t).run(t, "", "categories")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrLibraryMissing)
	assert.Contains(t, err.Error(), "Run 'sorter scan <dir>' first.")
}
