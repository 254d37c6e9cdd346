// Package action defines the Action type system: a framework-agnostic
// representation of any agent tool invocation flowing through AgentGuard.
// Every raw payload, regardless of the originating agent framework, is
// normalized into an Action for uniform policy evaluation.
package action

import (
	"time"

	"github.com/google/uuid"
)

// Type categorizes the kind of action being performed.
type Type string

const (
	// TypeToolCall represents a generic tool invocation.
	TypeToolCall Type = "tool_call"
	// TypeShellCommand represents a shell or subprocess execution.
	TypeShellCommand Type = "shell_command"
	// TypeFileRead represents a file read operation.
	TypeFileRead Type = "file_read"
	// TypeFileWrite represents a file write/create/append operation.
	TypeFileWrite Type = "file_write"
	// TypeHTTPRequest represents an outbound HTTP request.
	TypeHTTPRequest Type = "http_request"
	// TypeMemoryWrite represents a write to the agent's persistent memory.
	TypeMemoryWrite Type = "memory_write"
	// TypeCredentialAccess represents access to credential material
	// (SSH keys, cloud credentials, .env files, certificates).
	TypeCredentialAccess Type = "credential_access"
	// TypeUnknown is the zero value for unclassifiable payloads.
	TypeUnknown Type = "unknown"
)

// String returns the string representation of the Type.
func (t Type) String() string {
	return string(t)
}

// Valid reports whether t is one of the defined action types.
func (t Type) Valid() bool {
	switch t {
	case TypeToolCall, TypeShellCommand, TypeFileRead, TypeFileWrite,
		TypeHTTPRequest, TypeMemoryWrite, TypeCredentialAccess, TypeUnknown:
		return true
	}
	return false
}

// Action is a single normalized tool invocation.
//
// Parameters holds the decoded arguments by name; RawPayload preserves the
// original payload verbatim for forensics. Actions are created at the
// pipeline entry and owned by exactly one Event afterwards.
type Action struct {
	// ID uniquely identifies this action.
	ID string `json:"action_id"`
	// Type categorizes the action (tool_call, shell_command, ...).
	Type Type `json:"type"`
	// ToolName is the name of the tool being invoked.
	ToolName string `json:"tool_name"`
	// Parameters are the decoded tool arguments.
	Parameters map[string]any `json:"parameters"`
	// RawPayload is the original payload, kept verbatim.
	RawPayload map[string]any `json:"raw_payload"`
	// CreatedAt is when the action entered the pipeline (UTC).
	CreatedAt time.Time `json:"timestamp"`
}

// New creates an Action with a fresh id and UTC timestamp.
func New(actionType Type, toolName string, parameters, rawPayload map[string]any) Action {
	if parameters == nil {
		parameters = map[string]any{}
	}
	if rawPayload == nil {
		rawPayload = map[string]any{}
	}
	return Action{
		ID:         uuid.NewString(),
		Type:       actionType,
		ToolName:   toolName,
		Parameters: parameters,
		RawPayload: rawPayload,
		CreatedAt:  time.Now().UTC(),
	}
}
