package main

import (
	"bytes"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasirciogluhq/xtransform-server/pkg/wire"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{name: "defaults", wantHost: "localhost", wantPort: 6666},
		{name: "port only", args: []string{"7000"}, wantHost: "localhost", wantPort: 7000},
		{name: "port and host", args: []string{"7000", "10.0.0.5"}, wantHost: "10.0.0.5", wantPort: 7000},
		{name: "empty port keeps default", args: []string{"", "example.com"}, wantHost: "example.com", wantPort: 6666},
		{name: "bad port", args: []string{"http"}, wantErr: true},
		{name: "port out of range", args: []string{"70000"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, err := parseArgs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPort, port)
		})
	}
}

func TestPrintResponse(t *testing.T) {
	var out bytes.Buffer
	printResponse(&out, "line one\n\rline two")
	assert.Equal(t, "Server response:\n\tline one\tline two\n", out.String())

	out.Reset()
	printResponse(&out, "")
	assert.Equal(t, "Server response:\nNo response\n", out.String())
}

func TestMessagingLoop(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		for {
			req, err := wire.ReadMessage(server)
			if err != nil {
				return
			}
			if err := wire.WriteMessage(server, "You sent: '"+req+"'"); err != nil {
				return
			}
		}
	}()

	var out bytes.Buffer
	err := messagingLoop(client, strings.NewReader("ping\npong\n"), &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "\tYou sent: 'ping'\n")
	assert.Contains(t, out.String(), "\tYou sent: 'pong'\n")
	assert.Equal(t, 3, strings.Count(out.String(), "Enter request: "))
}

func TestMessagingLoopRejectsOversizedLine(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		for {
			req, err := wire.ReadMessage(server)
			if err != nil {
				return
			}
			if err := wire.WriteMessage(server, "You sent: '"+req+"'"); err != nil {
				return
			}
		}
	}()

	var out bytes.Buffer
	input := strings.Repeat("x", 70000) + "\nping\n"
	err := messagingLoop(client, strings.NewReader(input), &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Request rejected")
	assert.Contains(t, out.String(), "\tYou sent: 'ping'\n")
	assert.Equal(t, 3, strings.Count(out.String(), "Enter request: "))
}
