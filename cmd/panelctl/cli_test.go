package main

import (
	"strings"
	"testing"
)

func TestFollowStream(t *testing.T) {
	t.Parallel()

	t.Run("Test log lines and terminal event", func(t *testing.T) {
		t.Parallel()

		stream := strings.Join([]string{
			`data: {"log":"Epoch 1"}`,
			"",
			`data: {"log":"Epoch 2"}`,
			"",
			`data: {"done":true,"state":"Succeeded","exit_code":0}`,
			"",
		}, "\n")

		var out strings.Builder

		if err := followStream(strings.NewReader(stream), &out); err != nil {
			t.Fatalf("expected not to receive error: got '%v'", err)
		}

		want := "Epoch 1\nEpoch 2\n--- Succeeded\n"
		if out.String() != want {
			t.Errorf("expected output: got '%q', want '%q'", out.String(), want)
		}
	})

	t.Run("Test truncation marker", func(t *testing.T) {
		t.Parallel()

		stream := strings.Join([]string{
			`data: {"truncated":true}`,
			"",
			`data: {"log":"tail line"}`,
			"",
			`data: {"done":true,"state":"Stopped"}`,
			"",
		}, "\n")

		var out strings.Builder

		if err := followStream(strings.NewReader(stream), &out); err != nil {
			t.Fatalf("expected not to receive error: got '%v'", err)
		}

		want := "--- output truncated\ntail line\n--- Stopped\n"
		if out.String() != want {
			t.Errorf("expected output: got '%q', want '%q'", out.String(), want)
		}
	})

	t.Run("Test non-data lines are skipped", func(t *testing.T) {
		t.Parallel()

		stream := ": comment\nretry: 500\ndata: {\"done\":true,\"state\":\"Idle\"}\n\n"

		var out strings.Builder

		if err := followStream(strings.NewReader(stream), &out); err != nil {
			t.Fatalf("expected not to receive error: got '%v'", err)
		}

		if out.String() != "--- Idle\n" {
			t.Errorf("expected only the terminal marker: got '%q'", out.String())
		}
	})
}
