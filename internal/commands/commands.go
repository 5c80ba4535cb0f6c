// Package commands builds the external command lines for each job category
// from the panel configuration and the current state of the project.
package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nixpig/botpanel/internal/jobrunner"
	"github.com/nixpig/botpanel/internal/project"
)

// Config carries the locations of the external tools and the project the
// panel operates on.
type Config struct {
	RasaBin    string
	DockerBin  string
	ShellBin   string
	ServerPort int
	BaseImage  string
}

var (
	ErrImageNameRequired    = errors.New("image name is required")
	ErrRegistryUserRequired = errors.New("registry user is required to push")
	ErrInvalidImageRef      = errors.New("invalid image reference component")
)

// imageComponent restricts the operator-supplied pieces of the image
// reference, since the build job is executed through a shell.
var imageComponent = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._/-]*$`)

// Training builds the model training command. Each run writes a fresh,
// timestamped model archive into the models directory.
func Training(cfg Config, store *project.Store) jobrunner.CommandFunc {
	return func(jobrunner.StartParams) (jobrunner.CommandSpec, error) {
		root := store.Root()
		modelName := "model_" + time.Now().Format("20060102_150405")

		return jobrunner.CommandSpec{
			Program: cfg.RasaBin,
			Args: []string{
				"train",
				"--domain", filepath.Join(root, "domain.yml"),
				"--data", filepath.Join(root, "data"),
				"--config", filepath.Join(root, "config.yml"),
				"--out", store.ModelsDir(),
				"--fixed-model-name", modelName,
			},
			Dir: root,
		}, nil
	}
}

// RuntimeServer builds the assistant runtime server command. The model can
// be pinned via params; otherwise the newest trained model is used, and the
// start fails if no model exists yet.
func RuntimeServer(cfg Config, store *project.Store) jobrunner.CommandFunc {
	return func(params jobrunner.StartParams) (jobrunner.CommandSpec, error) {
		model := params.Model
		if model == "" {
			newest, err := store.NewestModel()
			if err != nil {
				return jobrunner.CommandSpec{}, err
			}

			model = newest.Name
		}

		root := store.Root()

		return jobrunner.CommandSpec{
			Program: cfg.RasaBin,
			Args: []string{
				"run",
				"--model", filepath.Join(store.ModelsDir(), model),
				"--enable-api",
				"--cors", "*",
				"--port", strconv.Itoa(cfg.ServerPort),
				"--endpoints", filepath.Join(root, "endpoints.yml"),
			},
			Dir: root,
		}, nil
	}
}

// ImageBuild builds the container image build command. The build, registry
// login and push stages are chained into a single shell child so the job
// remains one OS process; the registry token is fed over stdin and never
// appears in argv.
func ImageBuild(cfg Config, store *project.Store) jobrunner.CommandFunc {
	return func(params jobrunner.StartParams) (jobrunner.CommandSpec, error) {
		if params.ImageName == "" {
			return jobrunner.CommandSpec{}, ErrImageNameRequired
		}

		tag := params.Tag
		if tag == "" {
			tag = "latest"
		}

		for _, component := range []string{params.ImageName, tag, params.RegistryUser} {
			if component != "" && !imageComponent.MatchString(component) {
				return jobrunner.CommandSpec{}, fmt.Errorf(
					"%w: %q", ErrInvalidImageRef, component,
				)
			}
		}

		newest, err := store.NewestModel()
		if err != nil {
			return jobrunner.CommandSpec{}, err
		}

		dockerfile, err := store.WriteDockerfile(
			newest.Name,
			cfg.BaseImage,
			cfg.ServerPort,
		)
		if err != nil {
			return jobrunner.CommandSpec{}, err
		}

		image := params.ImageName + ":" + tag
		if params.RegistryUser != "" {
			image = params.RegistryUser + "/" + image
		}

		script := fmt.Sprintf(
			"%s build -t %s -f %s .",
			cfg.DockerBin, image, filepath.Base(dockerfile),
		)

		spec := jobrunner.CommandSpec{Dir: store.Root()}

		if params.Push {
			if params.RegistryUser == "" {
				return jobrunner.CommandSpec{}, ErrRegistryUserRequired
			}

			script = fmt.Sprintf(
				"%s && %s login -u %s --password-stdin && %s push %s",
				script, cfg.DockerBin, params.RegistryUser, cfg.DockerBin, image,
			)

			spec.Stdin = strings.NewReader(params.RegistryToken + "\n")
		}

		shell := cfg.ShellBin
		if shell == "" {
			shell = "/bin/sh"
		}

		spec.Program = shell
		spec.Args = []string{"-c", script}

		return spec, nil
	}
}

// ForCategories wires the three category command builders for a Set.
func ForCategories(cfg Config, store *project.Store) map[jobrunner.Category]jobrunner.CommandFunc {
	return map[jobrunner.Category]jobrunner.CommandFunc{
		jobrunner.CategoryTraining: Training(cfg, store),
		jobrunner.CategoryServer:   RuntimeServer(cfg, store),
		jobrunner.CategoryBuild:    ImageBuild(cfg, store),
	}
}
