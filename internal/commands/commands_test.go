package commands_test

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixpig/botpanel/internal/commands"
	"github.com/nixpig/botpanel/internal/jobrunner"
	"github.com/nixpig/botpanel/internal/project"
)

func testConfig() commands.Config {
	return commands.Config{
		RasaBin:    "rasa",
		DockerBin:  "docker",
		ServerPort: 5005,
	}
}

func newTestStore(t *testing.T, models ...string) *project.Store {
	t.Helper()

	root := t.TempDir()
	modelsDir := filepath.Join(root, "models")

	require.NoError(t, os.MkdirAll(modelsDir, 0o755))

	for i, name := range models {
		path := filepath.Join(modelsDir, name)
		require.NoError(t, os.WriteFile(path, []byte("model"), 0o644))

		// Spread modification times so "newest" is deterministic; later
		// entries are newer.
		mtime := time.Now().Add(time.Duration(i-len(models)) * time.Minute)
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}

	return project.NewStore(root, "")
}

func TestTrainingCommand(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	spec, err := commands.Training(testConfig(), store)(jobrunner.StartParams{})
	require.NoError(t, err)

	assert.Equal(t, "rasa", spec.Program)
	assert.Equal(t, store.Root(), spec.Dir)
	assert.Equal(t, "train", spec.Args[0])

	args := strings.Join(spec.Args, " ")
	assert.Contains(t, args, "--domain "+filepath.Join(store.Root(), "domain.yml"))
	assert.Contains(t, args, "--out "+store.ModelsDir())
	assert.Contains(t, args, "--fixed-model-name model_")
}

func TestRuntimeServerCommand(t *testing.T) {
	t.Parallel()

	t.Run("uses newest model by default", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t, "model_old.tar.gz", "model_new.tar.gz")

		spec, err := commands.RuntimeServer(testConfig(), store)(jobrunner.StartParams{})
		require.NoError(t, err)

		assert.Equal(t, "rasa", spec.Program)
		assert.Equal(t, "run", spec.Args[0])

		args := strings.Join(spec.Args, " ")
		assert.Contains(t, args, filepath.Join(store.ModelsDir(), "model_new.tar.gz"))
		assert.Contains(t, args, "--port 5005")
		assert.Contains(t, args, "--enable-api")
	})

	t.Run("honours a pinned model", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t, "model_old.tar.gz", "model_new.tar.gz")

		spec, err := commands.RuntimeServer(testConfig(), store)(
			jobrunner.StartParams{Model: "model_old.tar.gz"},
		)
		require.NoError(t, err)

		assert.Contains(
			t,
			strings.Join(spec.Args, " "),
			filepath.Join(store.ModelsDir(), "model_old.tar.gz"),
		)
	})

	t.Run("fails without a trained model", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)

		_, err := commands.RuntimeServer(testConfig(), store)(jobrunner.StartParams{})
		assert.ErrorIs(t, err, project.ErrNoModels)
	})
}

func TestImageBuildCommand(t *testing.T) {
	t.Parallel()

	params := jobrunner.StartParams{
		ImageName:     "assistant",
		Tag:           "v1",
		RegistryUser:  "nixpig",
		RegistryToken: "s3cret",
		Push:          true,
	}

	t.Run("build and push as a single shell child", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t, "model_a.tar.gz")

		spec, err := commands.ImageBuild(testConfig(), store)(params)
		require.NoError(t, err)

		assert.Equal(t, "/bin/sh", spec.Program)
		require.Len(t, spec.Args, 2)

		script := spec.Args[1]
		assert.Contains(t, script, "docker build -t nixpig/assistant:v1")
		assert.Contains(t, script, "docker login -u nixpig --password-stdin")
		assert.Contains(t, script, "docker push nixpig/assistant:v1")
		assert.NotContains(t, script, "s3cret", "token must not appear in argv")

		require.NotNil(t, spec.Stdin)
		stdin, err := io.ReadAll(spec.Stdin)
		require.NoError(t, err)
		assert.Equal(t, "s3cret\n", string(stdin))

		// The Dockerfile was generated for the newest model.
		dockerfile, err := os.ReadFile(
			filepath.Join(store.Root(), project.DockerfileName),
		)
		require.NoError(t, err)
		assert.Contains(t, string(dockerfile), "model_a.tar.gz")
	})

	t.Run("build without push", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t, "model_a.tar.gz")

		local := params
		local.Push = false
		local.RegistryUser = ""

		spec, err := commands.ImageBuild(testConfig(), store)(local)
		require.NoError(t, err)

		script := spec.Args[1]
		assert.Contains(t, script, "docker build -t assistant:v1")
		assert.NotContains(t, script, "login")
		assert.NotContains(t, script, "push")
		assert.Nil(t, spec.Stdin)
	})

	t.Run("defaults the tag to latest", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t, "model_a.tar.gz")

		local := params
		local.Tag = ""
		local.Push = false

		spec, err := commands.ImageBuild(testConfig(), store)(local)
		require.NoError(t, err)

		assert.Contains(t, spec.Args[1], "nixpig/assistant:latest")
	})

	t.Run("rejects bad parameters", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t, "model_a.tar.gz")
		build := commands.ImageBuild(testConfig(), store)

		_, err := build(jobrunner.StartParams{})
		assert.ErrorIs(t, err, commands.ErrImageNameRequired)

		_, err = build(jobrunner.StartParams{ImageName: "assistant", Push: true})
		assert.ErrorIs(t, err, commands.ErrRegistryUserRequired)

		_, err = build(jobrunner.StartParams{ImageName: "evil; rm -rf /"})
		assert.ErrorIs(t, err, commands.ErrInvalidImageRef)

		_, err = build(jobrunner.StartParams{ImageName: "assistant", Tag: "$(whoami)"})
		assert.ErrorIs(t, err, commands.ErrInvalidImageRef)
	})

	t.Run("fails without a trained model", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)

		local := params
		local.Push = false

		_, err := commands.ImageBuild(testConfig(), store)(local)
		assert.ErrorIs(t, err, project.ErrNoModels)
	})
}

func TestForCategories(t *testing.T) {
	t.Parallel()

	cmds := commands.ForCategories(testConfig(), newTestStore(t))

	for _, category := range jobrunner.Categories {
		_, exists := cmds[category]
		assert.True(t, exists, "expected a command builder for %s", category)
	}
}
