package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Protocol version constants. supportedProtocolVersions lists every version
// this server accepts at initialize; during negotiation the client's
// declared version is echoed back if supported, else the highest supported
// version is offered instead.
const (
	ProtocolVersionLatest = "2025-11-25"
)

var supportedProtocolVersions = []string{
	"2024-11-05",
	"2025-03-26",
	"2025-06-18",
	"2025-11-25",
}

func isSupportedProtocolVersion(version string) bool {
	version = strings.TrimSpace(version)
	for _, v := range supportedProtocolVersions {
		if v == version {
			return true
		}
	}
	return false
}

// DefaultToolTimeout is the soft per-tool execution timeout.
const DefaultToolTimeout = 30 * time.Second

// Dispatcher validates and routes JSON-RPC envelopes to the Registry,
// applying the session FSM and the envelope/in-band error-taxonomy split.
// It has no transport-specific code: stdio and HTTP/SSE both call Handle
// with an already-parsed envelope and an owning Session — one dispatch
// core shared by both transports.
type Dispatcher struct {
	Registry    *Registry
	ToolTimeout time.Duration
	Logger      *slog.Logger
	Tracer      trace.Tracer

	// RateLimiter gates tools/call only; nil disables limiting entirely.
	RateLimiter *TokenBucket

	schemaMu    sync.Mutex
	schemaCache map[string]*jsonschema.Schema
}

// NewDispatcher builds a Dispatcher over reg. toolTimeout defaults to
// DefaultToolTimeout if zero.
func NewDispatcher(reg *Registry, toolTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	if toolTimeout <= 0 {
		toolTimeout = DefaultToolTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		Registry:    reg,
		ToolTimeout: toolTimeout,
		Logger:      logger,
		Tracer:      otel.Tracer("mcp/dispatch"),
		schemaCache: make(map[string]*jsonschema.Schema),
	}
}

// Handle routes a single parsed envelope through the session FSM and the
// registry. It returns nil (no response frame) for $/cancelRequest, for the
// initialized notification, for a notification sent before initialize and
// for a notification with an unknown method. It does not check whether the
// session is Closing or Closed; such requests are dispatched as usual.
func (d *Dispatcher) Handle(ctx context.Context, sess *Session, req *MCPRequest) *MCPResponse {
	sess.Touch()

	if req.JSONRPC != "2.0" {
		return d.errorResponse(req.ID, ErrorCodeInvalidRequest, "jsonrpc field must be \"2.0\"", nil)
	}

	isNotification := req.IsNotification()

	if req.Method == "$/cancelRequest" {
		d.handleCancel(sess, req)
		return nil
	}

	state := sess.State()
	if state == StateNew && req.Method != "initialize" {
		_ = sess.Transition(StateClosed)
		if isNotification {
			return nil
		}
		return d.errorResponse(req.ID, ErrorCodeUnauthorized, "session must initialize before any other method", nil)
	}

	switch req.Method {
	case "initialize":
		return d.handleInitialize(ctx, sess, req)
	case "initialized":
		// Acknowledgement notification; no-op, session is already Ready.
		return nil
	case "ping":
		return d.respond(req.ID, map[string]interface{}{})
	case "tools/list":
		return d.handleToolsList(req)
	case "tools/call":
		return d.handleToolsCall(ctx, sess, req)
	case "prompts/list":
		return d.handlePromptsList(req)
	case "prompts/get":
		return d.handlePromptsGet(ctx, req)
	default:
		if isNotification {
			return nil
		}
		return d.errorResponse(req.ID, ErrorCodeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method), nil)
	}
}

func (d *Dispatcher) handleCancel(sess *Session, req *MCPRequest) {
	var params struct {
		ID interface{} `json:"id"`
	}
	if err := d.parseParams(req, &params); err != nil {
		return
	}
	sess.Cancel(params.ID)
}

func (d *Dispatcher) handleInitialize(ctx context.Context, sess *Session, req *MCPRequest) *MCPResponse {
	if err := sess.Transition(StateInitializing); err != nil {
		return d.errorResponse(req.ID, ErrorCodeInvalidRequest, "session already initialized", nil)
	}

	var params initializeParams
	if err := d.parseParams(req, &params); err != nil {
		_ = sess.Transition(StateClosed)
		return d.errorResponse(req.ID, ErrorCodeInvalidParams, "invalid initialize params", map[string]interface{}{"details": err.Error()})
	}

	protocolVersion := ProtocolVersionLatest
	if params.ProtocolVersion != "" {
		if isSupportedProtocolVersion(params.ProtocolVersion) {
			protocolVersion = params.ProtocolVersion
		} else {
			d.Logger.Warn("client offered unsupported protocol version, echoing server's highest",
				"requested", params.ProtocolVersion, "offered", protocolVersion)
		}
	}
	sess.ProtocolVersion = protocolVersion
	sess.ClientName = params.ClientInfo.Name
	sess.ClientVersion = params.ClientInfo.Version

	result := initializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    d.buildCapabilities(),
		ServerInfo: serverInfo{
			Name:    "strunz-mcp",
			Version: "1.0.0",
		},
	}

	if err := sess.Transition(StateReady); err != nil {
		return d.errorResponse(req.ID, ErrorCodeInternalError, "failed to mark session ready", nil)
	}

	return d.respond(req.ID, result)
}

func (d *Dispatcher) buildCapabilities() capabilities {
	return capabilities{
		Tools: map[string]interface{}{
			"listChanged": false,
		},
		Prompts: map[string]interface{}{
			"listChanged": false,
		},
	}
}

func (d *Dispatcher) handleToolsList(req *MCPRequest) *MCPResponse {
	return d.respond(req.ID, map[string]interface{}{
		"tools": d.Registry.ListTools(),
	})
}

func (d *Dispatcher) handlePromptsList(req *MCPRequest) *MCPResponse {
	return d.respond(req.ID, map[string]interface{}{
		"prompts": d.Registry.ListPrompts(),
	})
}

func (d *Dispatcher) handlePromptsGet(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params PromptGetParams
	if err := d.parseParams(req, &params); err != nil {
		return d.errorResponse(req.ID, ErrorCodeInvalidParams, "invalid params", map[string]interface{}{"details": err.Error()})
	}

	result, err := d.Registry.RenderPrompt(ctx, params.Name, params.Arguments)
	if err != nil {
		return d.errorResponse(req.ID, ErrorCodeMethodNotFound, fmt.Sprintf("unknown prompt %q", params.Name), nil)
	}
	return d.respond(req.ID, result)
}

// handleToolsCall implements the "tools/call" rules: strip unknown
// argument keys (logged, not rejected), reject a genuinely missing required
// field with -32602, run the handler under a cancellable, timed-out
// context, and wrap a handler failure as isError:true content. The one
// exception is a ToolError with code ErrorCodeUnauthorized or
// ErrorCodeRateLimited, which becomes a JSON-RPC envelope error.
func (d *Dispatcher) handleToolsCall(ctx context.Context, sess *Session, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := d.parseParams(req, &params); err != nil {
		return d.errorResponse(req.ID, ErrorCodeInvalidParams, "invalid params", map[string]interface{}{"details": err.Error()})
	}

	tool, ok := d.Registry.lookupTool(params.Name)
	if !ok {
		return d.errorResponse(req.ID, ErrorCodeMethodNotFound, fmt.Sprintf("unknown tool %q", params.Name), nil)
	}

	if d.RateLimiter != nil {
		key := sess.AuthTokenRef
		if key == "" {
			key = sess.ID
		}
		if !d.RateLimiter.Allow(key) {
			return d.errorResponse(req.ID, ErrorCodeRateLimited, "rate limit exceeded", nil)
		}
	}

	args, stripped := d.stripUnknownArgs(tool.Schema, params.Arguments)
	if len(stripped) > 0 {
		d.Logger.Debug("stripped unknown tool arguments", "tool", params.Name, "keys", stripped)
	}
	if args == nil {
		// An omitted "arguments" field is an empty argument object.
		args = map[string]interface{}{}
	}

	if missing := d.missingRequired(tool.Schema, args); len(missing) > 0 {
		return d.errorResponse(req.ID, ErrorCodeInvalidParams, "missing required parameter(s)", map[string]interface{}{"missing": missing})
	}

	if err := d.validateArgs(tool.Schema, args); err != nil {
		return d.errorResponse(req.ID, ErrorCodeInvalidParams, "arguments do not match schema", map[string]interface{}{"details": err.Error()})
	}

	callCtx, cancel := context.WithTimeout(ctx, d.ToolTimeout)
	defer cancel()
	if req.ID != nil {
		sess.RegisterCancel(req.ID, cancel)
		defer sess.ReleaseCancel(req.ID)
	}

	var span trace.Span
	callCtx, span = d.Tracer.Start(callCtx, "tools/call", trace.WithAttributes(attribute.String("mcp.tool.name", params.Name)))
	defer span.End()

	resp, err := tool.Handler(callCtx, NewToolRequest(args))
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return d.respond(req.ID, ToolResult{
				Content: []ToolContent{{Type: "text", Text: "tool timed out"}},
				IsError: true,
			})
		}
		// Unauthorized and RateLimited describe session state, not tool
		// business logic, so they escalate to envelope-level JSON-RPC errors.
		// Every other ToolError, IndexUnavailable included, stays in-band.
		if te, ok := err.(*ToolError); ok && isEnvelopeEscalatedCode(te.Code) {
			return d.errorResponse(req.ID, te.Code, te.Message, te.Data)
		}
		return d.respond(req.ID, ToolResult{
			Content: []ToolContent{{Type: "text", Text: err.Error()}},
			IsError: true,
		})
	}

	return d.respond(req.ID, ToolResult{
		Content:           resp.Content,
		StructuredContent: resp.StructuredContent,
		IsError:           false,
	})
}

// isEnvelopeEscalatedCode reports whether a tool error code is one of the
// two codes (Unauthorized, RateLimited) that surface as a JSON-RPC envelope
// error even though they originated inside a tool handler.
func isEnvelopeEscalatedCode(code int) bool {
	switch code {
	case ErrorCodeUnauthorized, ErrorCodeRateLimited:
		return true
	default:
		return false
	}
}

// stripUnknownArgs removes keys not declared in schema's "properties",
// returning the filtered map and the list of dropped keys.
func (d *Dispatcher) stripUnknownArgs(schema map[string]interface{}, args map[string]interface{}) (map[string]interface{}, []string) {
	props, _ := schema["properties"].(map[string]interface{})
	if props == nil || args == nil {
		return args, nil
	}
	out := make(map[string]interface{}, len(args))
	var dropped []string
	for k, v := range args {
		if _, declared := props[k]; declared {
			out[k] = v
		} else {
			dropped = append(dropped, k)
		}
	}
	return out, dropped
}

func (d *Dispatcher) missingRequired(schema map[string]interface{}, args map[string]interface{}) []string {
	required, _ := schema["required"].([]string)
	var missing []string
	for _, name := range required {
		if _, ok := args[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// validateArgs compiles (and caches) the tool's schema and validates the
// stripped argument map against it, catching type mismatches the dispatcher
// itself should reject before the tool ever runs.
func (d *Dispatcher) validateArgs(schema map[string]interface{}, args map[string]interface{}) error {
	compiled, err := d.compileSchema(schema)
	if err != nil {
		// A schema that doesn't compile is an implementation bug, not a
		// caller error; let the call through rather than fail every call.
		d.Logger.Error("tool schema failed to compile", "error", err)
		return nil
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return err
	}
	var decoded interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return err
	}
	return compiled.Validate(decoded)
}

func (d *Dispatcher) compileSchema(schema map[string]interface{}) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	key := string(raw)

	d.schemaMu.Lock()
	defer d.schemaMu.Unlock()
	if cached, ok := d.schemaCache[key]; ok {
		return cached, nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, err
	}
	d.schemaCache[key] = compiled
	return compiled, nil
}

func (d *Dispatcher) parseParams(req *MCPRequest, target interface{}) error {
	if req.Params == nil {
		return nil
	}
	raw, err := json.Marshal(req.Params)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}

func (d *Dispatcher) respond(id interface{}, result interface{}) *MCPResponse {
	return &MCPResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func (d *Dispatcher) errorResponse(id interface{}, code int, message string, data interface{}) *MCPResponse {
	return &MCPResponse{JSONRPC: "2.0", ID: id, Error: &MCPError{Code: code, Message: message, Data: data}}
}
