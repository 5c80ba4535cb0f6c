package jobrunner

import "fmt"

// Category identifies one class of long-running external operation managed
// by the panel.
type Category string

const (
	// CategoryTraining runs a model training job.
	CategoryTraining Category = "training"

	// CategoryServer runs the assistant runtime server used for chat tests.
	CategoryServer Category = "server"

	// CategoryBuild runs a container image build and optional publish.
	CategoryBuild Category = "build"
)

// Categories lists every known category in a stable order.
var Categories = []Category{CategoryTraining, CategoryServer, CategoryBuild}

// ParseCategory validates a category name from an external request.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}
