package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nixpig/botpanel/internal/jobrunner"
	"github.com/nixpig/botpanel/internal/jobrunner/logbuf"
)

func rootCmd() *cobra.Command {
	c := &cobra.Command{
		Use:          "panelserver",
		Short:        "Control panel server for an assistant project: edit configuration, train models, run the test server and publish images",
		Example:      "  panelserver --project-dir ./rasa_project --debug",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := bindConfig(cmd)
			if err != nil {
				return err
			}

			cfg := configFromViper(v)

			if err := cfg.validate(); err != nil {
				return err
			}

			return runServer(cfg)
		},
	}

	c.Flags().String("host", "localhost", "Host to bind")
	c.Flags().Uint16("port", 8000, "Port to listen on")

	c.Flags().String("project-dir", "rasa_project", "Path to the assistant project")
	c.Flags().String("models-dir", "", "Path to trained models (defaults to <project-dir>/models)")
	c.Flags().String("frontend-dir", "", "Path to the static frontend to serve at / (disabled when empty)")

	c.Flags().String("rasa-bin", "rasa", "Assistant binary used for training and the runtime server")
	c.Flags().String("docker-bin", "docker", "Container tool used for image builds")
	c.Flags().String("base-image", "", "Base image for the generated runtime Dockerfile")
	c.Flags().Int("runtime-port", 5005, "Port the runtime server listens on")

	c.Flags().Int("log-retention", logbuf.DefaultRetention, "Log lines retained per job")
	c.Flags().Duration("stop-grace", jobrunner.DefaultStopGrace, "Grace period before a stopped job is killed")

	c.Flags().String("tls-cert", "", "Path to TLS certificate (serve HTTPS when set)")
	c.Flags().String("tls-key", "", "Path to TLS private key")

	c.Flags().Bool("debug", false, "Enable debug logs")

	c.Flags().String("config", "", "Path to config file")

	return c
}

// bindConfig layers flag values under environment variables (BOTPANEL_*) and
// an optional config file.
func bindConfig(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()

	v.SetEnvPrefix("BOTPANEL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return v, nil
}
