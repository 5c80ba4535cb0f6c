package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// chatRelay forwards chat messages to the runtime server's REST webhook.
// It is stateless; the runtime server owns the conversation state.
type chatRelay struct {
	webhookURL string
	client     *retryablehttp.Client
}

func newChatRelay(runtimePort int, logger zerolog.Logger) *chatRelay {
	client := retryablehttp.NewClient()

	// The runtime server takes a moment to load its model after a start; a
	// couple of quick retries papers over that window without making the
	// unreachable case slow.
	client.RetryMax = 2
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil

	return &chatRelay{
		webhookURL: fmt.Sprintf(
			"http://127.0.0.1:%d/webhooks/rest/webhook",
			runtimePort,
		),
		client: client,
	}
}

type chatMessage struct {
	Message string `json:"message"`
	Sender  string `json:"sender"`
}

func (c *chatRelay) send(msg chatMessage) (json.RawMessage, error) {
	if msg.Sender == "" {
		msg.Sender = "user"
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Post(
		c.webhookURL,
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("runtime server unreachable: %w", err)
	}
	defer resp.Body.Close()

	responses, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read runtime server response: %w", err)
	}

	return json.RawMessage(responses), nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var msg chatMessage

	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if msg.Message == "" {
		writeError(w, http.StatusBadRequest, "message cannot be empty")
		return
	}

	responses, err := s.chat.send(msg)
	if err != nil {
		writeError(
			w,
			http.StatusServiceUnavailable,
			err.Error()+"; start the runtime server first",
		)

		return
	}

	writeJSON(w, http.StatusOK, map[string]json.RawMessage{
		"responses": responses,
	})
}
