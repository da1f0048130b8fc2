package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *Session) {
	t.Helper()
	reg := NewRegistry()
	d := NewDispatcher(reg, 0, nil)
	sess := newSession()
	return d, sess
}

func initSession(t *testing.T, d *Dispatcher, sess *Session) {
	t.Helper()
	resp := d.Handle(context.Background(), sess, &MCPRequest{
		JSONRPC: "2.0", ID: 1, Method: "initialize",
		Params: map[string]interface{}{"protocolVersion": ProtocolVersionLatest, "clientInfo": map[string]interface{}{"name": "test", "version": "1.0"}},
	})
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
}

func TestHandleRejectsMethodBeforeInitialize(t *testing.T) {
	d, sess := newTestDispatcher(t)
	resp := d.Handle(context.Background(), sess, &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/list"})
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	require.Equal(t, ErrorCodeUnauthorized, resp.Error.Code)
	require.Equal(t, StateClosed, sess.State())
}

func TestInitializeNegotiatesSupportedVersion(t *testing.T) {
	d, sess := newTestDispatcher(t)
	resp := d.Handle(context.Background(), sess, &MCPRequest{
		JSONRPC: "2.0", ID: 1, Method: "initialize",
		Params: map[string]interface{}{"protocolVersion": "2024-11-05"},
	})
	require.Nil(t, resp.Error)
	require.Equal(t, StateReady, sess.State())
	require.Equal(t, "2024-11-05", sess.ProtocolVersion)
}

func TestInitializeFallsBackOnUnsupportedVersion(t *testing.T) {
	d, sess := newTestDispatcher(t)
	resp := d.Handle(context.Background(), sess, &MCPRequest{
		JSONRPC: "2.0", ID: 1, Method: "initialize",
		Params: map[string]interface{}{"protocolVersion": "1999-01-01"},
	})
	require.Nil(t, resp.Error)
	require.Equal(t, ProtocolVersionLatest, sess.ProtocolVersion)
}

func TestToolsCallMissingRequiredParam(t *testing.T) {
	d, sess := newTestDispatcher(t)
	initSession(t, d, sess)

	tool := NewTool("echo", "echoes text", String("text", "text to echo", Required()))
	d.Registry.RegisterTool(tool, func(ctx context.Context, req *ToolRequest) (*ToolResponse, error) {
		text, _ := req.String("text")
		return NewToolResponseText(text), nil
	})

	resp := d.Handle(context.Background(), sess, &MCPRequest{
		JSONRPC: "2.0", ID: 2, Method: "tools/call",
		Params: map[string]interface{}{"name": "echo", "arguments": map[string]interface{}{}},
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, ErrorCodeInvalidParams, resp.Error.Code)
}

func TestToolsCallStripsUnknownArgs(t *testing.T) {
	d, sess := newTestDispatcher(t)
	initSession(t, d, sess)

	var sawBogus bool
	tool := NewTool("echo", "echoes text", String("text", "text to echo", Required()))
	d.Registry.RegisterTool(tool, func(ctx context.Context, req *ToolRequest) (*ToolResponse, error) {
		if _, err := req.String("bogus"); err == nil {
			sawBogus = true
		}
		text, _ := req.String("text")
		return NewToolResponseText(text), nil
	})

	resp := d.Handle(context.Background(), sess, &MCPRequest{
		JSONRPC: "2.0", ID: 3, Method: "tools/call",
		Params: map[string]interface{}{"name": "echo", "arguments": map[string]interface{}{"text": "hi", "bogus": "nope"}},
	})
	require.Nil(t, resp.Error)
	require.False(t, sawBogus)
}

func TestToolsCallInBandErrorIsNotEnvelopeError(t *testing.T) {
	d, sess := newTestDispatcher(t)
	initSession(t, d, sess)

	tool := NewTool("fails", "always fails")
	d.Registry.RegisterTool(tool, func(ctx context.Context, req *ToolRequest) (*ToolResponse, error) {
		return nil, NewToolErrorInternal("boom")
	})

	resp := d.Handle(context.Background(), sess, &MCPRequest{
		JSONRPC: "2.0", ID: 4, Method: "tools/call",
		Params: map[string]interface{}{"name": "fails"},
	})
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(ToolResult)
	require.True(t, ok)
	require.True(t, result.IsError)
}

func TestToolsCallIndexUnavailableIsInBandError(t *testing.T) {
	d, sess := newTestDispatcher(t)
	initSession(t, d, sess)

	tool := NewTool("search", "search the index")
	d.Registry.RegisterTool(tool, func(ctx context.Context, req *ToolRequest) (*ToolResponse, error) {
		return nil, NewToolError(ErrorCodeIndexUnavailable, "index not ready", nil)
	})

	resp := d.Handle(context.Background(), sess, &MCPRequest{
		JSONRPC: "2.0", ID: 5, Method: "tools/call",
		Params: map[string]interface{}{"name": "search"},
	})
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(ToolResult)
	require.True(t, ok)
	require.True(t, result.IsError)
}

func TestToolsCallRateLimited(t *testing.T) {
	d, sess := newTestDispatcher(t)
	initSession(t, d, sess)
	d.RateLimiter = NewTokenBucket(1, 0)

	tool := NewTool("noop", "does nothing")
	d.Registry.RegisterTool(tool, func(ctx context.Context, req *ToolRequest) (*ToolResponse, error) {
		return NewToolResponseText("ok"), nil
	})

	call := func() *MCPResponse {
		return d.Handle(context.Background(), sess, &MCPRequest{
			JSONRPC: "2.0", ID: 6, Method: "tools/call",
			Params: map[string]interface{}{"name": "noop"},
		})
	}
	first := call()
	require.Nil(t, first.Error)

	second := call()
	require.NotNil(t, second.Error)
	require.Equal(t, ErrorCodeRateLimited, second.Error.Code)
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	d, sess := newTestDispatcher(t)
	initSession(t, d, sess)

	resp := d.Handle(context.Background(), sess, &MCPRequest{JSONRPC: "2.0", ID: 7, Method: "bogus/method"})
	require.NotNil(t, resp.Error)
	require.Equal(t, ErrorCodeMethodNotFound, resp.Error.Code)
}

func TestCancelRequestCancelsInFlightCall(t *testing.T) {
	d, sess := newTestDispatcher(t)
	initSession(t, d, sess)

	started := make(chan struct{})
	tool := NewTool("slow", "blocks until cancelled")
	d.Registry.RegisterTool(tool, func(ctx context.Context, req *ToolRequest) (*ToolResponse, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	resultCh := make(chan *MCPResponse, 1)
	go func() {
		resultCh <- d.Handle(context.Background(), sess, &MCPRequest{
			JSONRPC: "2.0", ID: float64(8), Method: "tools/call",
			Params: map[string]interface{}{"name": "slow"},
		})
	}()

	<-started
	d.Handle(context.Background(), sess, &MCPRequest{
		JSONRPC: "2.0", Method: "$/cancelRequest",
		Params: map[string]interface{}{"id": float64(8)},
	})

	resp := <-resultCh
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(ToolResult)
	require.True(t, ok)
	require.True(t, result.IsError)
}
