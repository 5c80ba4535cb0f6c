// Package jobrunner provides single-flight execution of the panel's
// long-running external operations.
//
// Each Category (training, runtime server, image build) is owned by one
// Controller, which holds at most one active Job at a time. A Job wraps a
// spawned process and drains its combined stdout/stderr into a logbuf.Buffer
// that any number of stream readers can consume concurrently.
package jobrunner
