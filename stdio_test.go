package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStdioTransportRoundTrip(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, 0, nil)
	sessions := NewSessionManager(time.Hour, time.Second, nil)
	defer sessions.Stop()

	in := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-11-25"}}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"tools/list"}` + "\n",
	)
	var out bytes.Buffer

	transport := NewStdioTransport(d, sessions, in, &out, nil)
	err := transport.Run(context.Background())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var initResp MCPResponse
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &initResp))
	require.Nil(t, initResp.Error)

	var listResp MCPResponse
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &listResp))
	require.Nil(t, listResp.Error)
}

func TestStdioTransportParseErrorIsReported(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, 0, nil)
	sessions := NewSessionManager(time.Hour, time.Second, nil)
	defer sessions.Stop()

	in := strings.NewReader(`not json` + "\n")
	var out bytes.Buffer

	transport := NewStdioTransport(d, sessions, in, &out, nil)
	err := transport.Run(context.Background())
	require.NoError(t, err)

	var resp MCPResponse
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, ErrorCodeParseError, resp.Error.Code)
}

func TestStdioTransportBlankLinesIgnored(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, 0, nil)
	sessions := NewSessionManager(time.Hour, time.Second, nil)
	defer sessions.Stop()

	in := strings.NewReader("\n\n" + `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-11-25"}}` + "\n\n")
	var out bytes.Buffer

	transport := NewStdioTransport(d, sessions, in, &out, nil)
	err := transport.Run(context.Background())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)
}
