package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Yates-Labs/memctx/internal/search"
	"github.com/mark3labs/mcp-go/mcp"
)

const noAdminMessage = "this operation requires the memsearch backend"

// adminReply is the JSON body of reset and config results
type adminReply struct {
	OK      bool           `json:"ok"`
	Action  string         `json:"action,omitempty"`
	Key     string         `json:"key,omitempty"`
	Value   string         `json:"value,omitempty"`
	Config  map[string]any `json:"config,omitempty"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func adminError(err error) string {
	if errors.Is(err, search.ErrUnavailable) {
		return "memsearch CLI not found. Please install it with: pip install memsearch"
	}
	return err.Error()
}

// ResetTool handles the mem_reset MCP tool.
type ResetTool struct {
	admin Admin
}

// NewResetTool creates a ResetTool.
func NewResetTool(deps Deps) *ResetTool {
	return &ResetTool{admin: deps.Admin}
}

// Definition returns the MCP tool definition for mem_reset.
func (t *ResetTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_reset",
		mcp.WithDescription("Drop the whole memsearch index. Destructive; requires confirm=true."),
		mcp.WithBoolean("confirm",
			mcp.Required(),
			mcp.Description("Must be true to drop indexed data"),
		),
	)
}

// Handle processes the mem_reset tool call.
func (t *ResetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.admin == nil {
		return mcp.NewToolResultError(noAdminMessage), nil
	}
	if !req.GetBool("confirm", false) {
		return jsonResult(adminReply{Error: "Confirmation required. Pass confirm=true to drop indexed data. This is destructive."})
	}
	if err := t.admin.Reset(ctx); err != nil {
		return jsonResult(adminReply{Error: adminError(err)})
	}
	return jsonResult(adminReply{OK: true, Message: "Index reset successfully"})
}

// ConfigTool handles the mem_config MCP tool.
type ConfigTool struct {
	admin Admin
}

// NewConfigTool creates a ConfigTool.
func NewConfigTool(deps Deps) *ConfigTool {
	return &ConfigTool{admin: deps.Admin}
}

// Definition returns the MCP tool definition for mem_config.
func (t *ConfigTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_config",
		mcp.WithDescription("Get or set memsearch configuration values."),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Enum("get", "set"),
			mcp.Description("get or set"),
		),
		mcp.WithString("key",
			mcp.Description("Configuration key (required for set, optional for get)"),
		),
		mcp.WithString("value",
			mcp.Description("Value to set (required for set)"),
		),
	)
}

// Handle processes the mem_config tool call.
func (t *ConfigTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.admin == nil {
		return mcp.NewToolResultError(noAdminMessage), nil
	}
	action := req.GetString("action", "")
	key := req.GetString("key", "")

	switch action {
	case "get":
		conf, err := t.admin.ConfigGet(ctx, key)
		if err != nil {
			return jsonResult(adminReply{Action: action, Key: key, Error: adminError(err)})
		}
		return jsonResult(adminReply{OK: true, Action: action, Key: key, Config: conf})
	case "set":
		value, hasValue := req.GetArguments()["value"].(string)
		if key == "" || !hasValue {
			return jsonResult(adminReply{Action: action, Message: "key and value are required for action 'set'"})
		}
		if err := t.admin.ConfigSet(ctx, key, value); err != nil {
			return jsonResult(adminReply{Action: action, Key: key, Error: adminError(err)})
		}
		return jsonResult(adminReply{OK: true, Action: action, Key: key, Value: value})
	}
	return mcp.NewToolResultError(fmt.Sprintf("unknown action %q, expected get or set", action)), nil
}

// DoctorTool handles the mem_doctor MCP tool.
type DoctorTool struct {
	run DoctorFunc
}

// NewDoctorTool creates a DoctorTool.
func NewDoctorTool(deps Deps) *DoctorTool {
	return &DoctorTool{run: deps.Doctor}
}

// Definition returns the MCP tool definition for mem_doctor.
func (t *DoctorTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_doctor",
		mcp.WithDescription("Check the memsearch CLI, the embedding API key and the memory directory."),
	)
}

// Handle processes the mem_doctor tool call.
func (t *DoctorTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.run(ctx))
}
