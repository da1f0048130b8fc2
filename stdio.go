package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
)

// StdioTransport frames one JSON-RPC object per line on an input/output
// stream pair. Exactly one session is hosted per process
// invocation; EOF on input moves that session to Closing.
type StdioTransport struct {
	Dispatcher *Dispatcher
	Sessions   *SessionManager
	Logger     *slog.Logger

	in  io.Reader
	out io.Writer
}

// NewStdioTransport builds a transport reading newline-delimited JSON from
// in and writing response frames to out.
func NewStdioTransport(d *Dispatcher, sessions *SessionManager, in io.Reader, out io.Writer, logger *slog.Logger) *StdioTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &StdioTransport{Dispatcher: d, Sessions: sessions, Logger: logger, in: in, out: out}
}

// Run hosts the single session for the process lifetime. It blocks until
// the input stream is exhausted or ctx is cancelled, draining any queued
// outbound responses to out as they arrive from concurrently running tool
// calls.
func (t *StdioTransport) Run(ctx context.Context) error {
	sess := t.Sessions.Create()
	defer t.Sessions.Delete(sess.ID)

	writeDone := make(chan struct{})
	enc := json.NewEncoder(t.out)
	go func() {
		defer close(writeDone)
		for resp := range sess.Outbound() {
			if err := enc.Encode(resp); err != nil {
				t.Logger.Error("stdio write failed", "error", err)
				return
			}
		}
	}()

	scanner := bufio.NewScanner(t.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			sess.Enqueue(&MCPResponse{
				JSONRPC: "2.0",
				Error:   &MCPError{Code: ErrorCodeParseError, Message: "parse error", Data: map[string]interface{}{"details": err.Error()}},
			})
			continue
		}

		reqCopy := req
		if req.IsNotification() {
			t.Dispatcher.Handle(ctx, sess, &reqCopy)
			continue
		}
		if req.Method == "initialize" {
			// Handled inline so later requests see a Ready session.
			if resp := t.Dispatcher.Handle(ctx, sess, &reqCopy); resp != nil {
				sess.Enqueue(resp)
			}
			continue
		}

		go func() {
			resp := t.Dispatcher.Handle(ctx, sess, &reqCopy)
			if resp != nil {
				sess.Enqueue(resp)
			}
		}()
	}

	_ = sess.Transition(StateClosing)
	t.Sessions.Close(sess)
	<-writeDone
	return scanner.Err()
}
