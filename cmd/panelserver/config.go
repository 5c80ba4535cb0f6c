package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

type config struct {
	host string
	port uint16

	projectDir  string
	modelsDir   string
	frontendDir string

	rasaBin     string
	dockerBin   string
	baseImage   string
	runtimePort int

	logRetention int
	stopGrace    time.Duration

	certPath string
	keyPath  string

	debug bool
}

func configFromViper(v *viper.Viper) *config {
	return &config{
		host:         v.GetString("host"),
		port:         uint16(v.GetUint32("port")),
		projectDir:   v.GetString("project-dir"),
		modelsDir:    v.GetString("models-dir"),
		frontendDir:  v.GetString("frontend-dir"),
		rasaBin:      v.GetString("rasa-bin"),
		dockerBin:    v.GetString("docker-bin"),
		baseImage:    v.GetString("base-image"),
		runtimePort:  v.GetInt("runtime-port"),
		logRetention: v.GetInt("log-retention"),
		stopGrace:    v.GetDuration("stop-grace"),
		certPath:     v.GetString("tls-cert"),
		keyPath:      v.GetString("tls-key"),
		debug:        v.GetBool("debug"),
	}
}

func (c *config) validate() error {
	if c.port == 0 {
		return errors.New("port must be in valid range")
	}

	if c.projectDir == "" {
		return errors.New("project-dir cannot be empty")
	}

	if info, err := os.Stat(c.projectDir); err != nil {
		return fmt.Errorf("failed to stat project-dir: %w", err)
	} else if !info.IsDir() {
		return errors.New("project-dir is not a directory")
	}

	if c.runtimePort < 1 || c.runtimePort > 65535 {
		return errors.New("runtime-port must be in valid range")
	}

	if (c.certPath == "") != (c.keyPath == "") {
		return errors.New("tls-cert and tls-key must be set together")
	}

	if c.certPath != "" {
		if _, err := os.Stat(c.certPath); err != nil {
			return fmt.Errorf("failed to stat tls-cert: %w", err)
		}

		if _, err := os.Stat(c.keyPath); err != nil {
			return fmt.Errorf("failed to stat tls-key: %w", err)
		}
	}

	return nil
}

func (c *config) addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(int(c.port)))
}
