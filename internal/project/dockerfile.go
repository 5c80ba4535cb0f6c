package project

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// DockerfileName is the generated Dockerfile written into the project root
// before each image build.
const DockerfileName = "Dockerfile.bot"

// The runtime image bundles the newest trained model with the project's
// configuration. Paths are relative to the project root, which is used as
// the build context.
var dockerfileTemplate = template.Must(template.New("dockerfile").Parse(
	`FROM {{.BaseImage}}

WORKDIR /app

USER root

COPY models/{{.Model}} /app/models/{{.Model}}

COPY domain.yml /app/domain.yml
COPY config.yml /app/config.yml
COPY endpoints.yml /app/endpoints.yml
COPY data /app/data

USER 1001

EXPOSE {{.Port}}

ENTRYPOINT ["rasa", "run", "--model", "/app/models/{{.Model}}", "--enable-api", "--cors", "*", "--port", "{{.Port}}"]
`))

// DefaultBaseImage is the runtime image the generated Dockerfile builds on.
const DefaultBaseImage = "rasa/rasa:3.6.20-full"

// WriteDockerfile renders the runtime Dockerfile for the named model into
// the project root and returns its path.
func (s *Store) WriteDockerfile(model, baseImage string, port int) (string, error) {
	if baseImage == "" {
		baseImage = DefaultBaseImage
	}

	var buf bytes.Buffer

	err := dockerfileTemplate.Execute(&buf, struct {
		BaseImage string
		Model     string
		Port      int
	}{baseImage, model, port})
	if err != nil {
		return "", fmt.Errorf("render dockerfile: %w", err)
	}

	path := filepath.Join(s.root, DockerfileName)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write dockerfile: %w", err)
	}

	return path, nil
}
