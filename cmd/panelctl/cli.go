package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/spf13/cobra"
)

// TODO: Inject version at build time.
const version = "0.0.1"

type cli struct {
	serverURL string
	client    *retryablehttp.Client
}

func newCLI() *cli {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.Logger = nil

	return &cli{client: client}
}

func (c *cli) rootCmd() *cobra.Command {
	command := &cobra.Command{
		Use:          "panelctl",
		Short:        "CLI for interacting with the botpanel server",
		Version:      version,
		SilenceUsage: true,
	}

	command.AddCommand(
		c.startCmd(),
		c.stopCmd(),
		c.statusCmd(),
		c.logsCmd(),
		c.chatCmd(),
	)

	command.CompletionOptions.HiddenDefaultCmd = true

	command.PersistentFlags().StringVar(
		&c.serverURL,
		"server-url",
		"http://localhost:8000",
		"Base URL of the botpanel server",
	)

	return command
}

func (c *cli) startCmd() *cobra.Command {
	var params struct {
		Model         string `json:"model,omitempty"`
		ImageName     string `json:"image_name,omitempty"`
		Tag           string `json:"tag,omitempty"`
		RegistryUser  string `json:"registry_user,omitempty"`
		RegistryToken string `json:"registry_token,omitempty"`
		Push          bool   `json:"push,omitempty"`
	}

	command := &cobra.Command{
		Use:   "start [flags] CATEGORY",
		Short: "Start a job (training, server or build)",
		Example: "  panelctl start training\n" +
			"  panelctl start build --image-name assistant --registry-user nixpig --push",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := json.Marshal(params)
			if err != nil {
				return err
			}

			var resp struct {
				JobID string `json:"job_id"`
			}

			err = c.post(
				fmt.Sprintf("/api/jobs/%s/start", args[0]),
				body,
				&resp,
			)
			if err != nil {
				return err
			}

			cmd.OutOrStdout().Write([]byte(resp.JobID + "\n"))

			return nil
		},
	}

	command.Flags().StringVar(&params.Model, "model", "", "Model for the runtime server (newest when empty)")
	command.Flags().StringVar(&params.ImageName, "image-name", "", "Image name for build jobs")
	command.Flags().StringVar(&params.Tag, "tag", "", "Image tag for build jobs")
	command.Flags().StringVar(&params.RegistryUser, "registry-user", "", "Registry user for build jobs")
	command.Flags().StringVar(&params.RegistryToken, "registry-token", "", "Registry token for build jobs")
	command.Flags().BoolVar(&params.Push, "push", false, "Push the image after building")

	return command
}

func (c *cli) stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "stop CATEGORY",
		Short:   "Stop the running job for a category",
		Example: "  panelctl stop training",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.post(fmt.Sprintf("/api/jobs/%s/stop", args[0]), nil, nil)
		},
	}
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "status CATEGORY",
		Short:   "Show the status of a category's current job",
		Example: "  panelctl status server",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var status struct {
				JobID     string `json:"job_id"`
				State     string `json:"state"`
				StartedAt string `json:"started_at"`
				ExitCode  *int   `json:"exit_code"`
				LogLines  int    `json:"log_lines"`
			}

			err := c.get(fmt.Sprintf("/api/jobs/%s/status", args[0]), &status)
			if err != nil {
				return err
			}

			exitCode := "-"
			if status.ExitCode != nil {
				exitCode = fmt.Sprintf("%d", *status.ExitCode)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "STATE\tJOB ID\tSTARTED\tEXIT CODE\tLOG LINES\n")
			fmt.Fprintf(
				w,
				"%s\t%s\t%s\t%s\t%d\n",
				status.State,
				status.JobID,
				status.StartedAt,
				exitCode,
				status.LogLines,
			)

			return w.Flush()
		},
	}
}

func (c *cli) logsCmd() *cobra.Command {
	var tail bool

	command := &cobra.Command{
		Use:     "logs [flags] CATEGORY",
		Short:   "Stream the logs of a category's current job",
		Example: "  panelctl logs training",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := fmt.Sprintf("%s/api/jobs/%s/logs", c.serverURL, args[0])
			if tail {
				url += "?tail=true"
			}

			resp, err := c.client.Get(url)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return readError(resp)
			}

			return followStream(resp.Body, cmd.OutOrStdout())
		},
	}

	command.Flags().BoolVar(&tail, "tail", false, "Skip history and follow new lines only")

	return command
}

// followStream prints the log lines of a Server-Sent-Events stream until the
// terminal event arrives.
func followStream(body io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(body)

	for scanner.Scan() {
		line := scanner.Text()

		data, found := strings.CutPrefix(line, "data: ")
		if !found {
			continue
		}

		var event struct {
			Log       string `json:"log"`
			Truncated bool   `json:"truncated"`
			Done      bool   `json:"done"`
			State     string `json:"state"`
		}

		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}

		switch {
		case event.Done:
			fmt.Fprintf(out, "--- %s\n", event.State)
			return nil
		case event.Truncated:
			fmt.Fprintln(out, "--- output truncated")
		default:
			fmt.Fprintln(out, event.Log)
		}
	}

	return scanner.Err()
}

func (c *cli) chatCmd() *cobra.Command {
	var sender string

	command := &cobra.Command{
		Use:     "chat MESSAGE",
		Short:   "Send a chat message to the running assistant",
		Example: "  panelctl chat \"hello\"",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := json.Marshal(map[string]string{
				"message": args[0],
				"sender":  sender,
			})
			if err != nil {
				return err
			}

			var resp struct {
				Responses json.RawMessage `json:"responses"`
			}

			if err := c.post("/api/chat", body, &resp); err != nil {
				return err
			}

			cmd.OutOrStdout().Write(append(resp.Responses, '\n'))

			return nil
		},
	}

	command.Flags().StringVar(&sender, "sender", "user", "Sender ID for the conversation")

	return command
}

func (c *cli) post(path string, body []byte, out any) error {
	resp, err := c.client.Post(
		c.serverURL+path,
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func (c *cli) get(path string, out any) error {
	resp, err := c.client.Get(c.serverURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		return readError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// readError extracts the server's JSON error envelope into a plain error.
func readError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Error == "" {
		return fmt.Errorf("server returned %s", resp.Status)
	}

	return fmt.Errorf("%s", payload.Error)
}
