package main

import (
	"testing"

	"github.com/nixpig/botpanel/internal/jobrunner"
)

func validTestConfig(t *testing.T) *config {
	t.Helper()

	return &config{
		host:         "localhost",
		port:         8000,
		projectDir:   t.TempDir(),
		rasaBin:      "rasa",
		dockerBin:    "docker",
		runtimePort:  5005,
		logRetention: 4000,
		stopGrace:    jobrunner.DefaultStopGrace,
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	t.Run("Test valid config", func(t *testing.T) {
		t.Parallel()

		if err := validTestConfig(t).validate(); err != nil {
			t.Errorf("expected not to receive error: got '%v'", err)
		}
	})

	t.Run("Test invalid configs", func(t *testing.T) {
		t.Parallel()

		scenarios := map[string]func(*config){
			"Zero port":              func(c *config) { c.port = 0 },
			"Empty project dir":      func(c *config) { c.projectDir = "" },
			"Missing project dir":    func(c *config) { c.projectDir = "/nonexistent/project" },
			"Runtime port too large": func(c *config) { c.runtimePort = 70000 },
			"Runtime port zero":      func(c *config) { c.runtimePort = 0 },
			"TLS cert without key":   func(c *config) { c.certPath = "cert.pem" },
			"Missing TLS cert":       func(c *config) { c.certPath = "/nonexistent/cert"; c.keyPath = "/nonexistent/key" },
		}

		for scenario, mutate := range scenarios {
			t.Run(scenario, func(t *testing.T) {
				t.Parallel()

				cfg := validTestConfig(t)
				mutate(cfg)

				if err := cfg.validate(); err == nil {
					t.Error("expected to receive a validation error")
				}
			})
		}
	})
}

func TestStopGraceFlagDefault(t *testing.T) {
	t.Parallel()

	flag := rootCmd().Flags().Lookup("stop-grace")
	if flag == nil {
		t.Fatal("expected stop-grace flag to be registered")
	}

	if want := jobrunner.DefaultStopGrace.String(); flag.DefValue != want {
		t.Errorf("expected stop-grace default: got '%s', want '%s'", flag.DefValue, want)
	}
}

func TestConfigAddr(t *testing.T) {
	t.Parallel()

	cfg := validTestConfig(t)

	if got := cfg.addr(); got != "localhost:8000" {
		t.Errorf("expected addr: got '%s', want 'localhost:8000'", got)
	}
}
