package action

import (
	"encoding/json"
)

// FromMap normalizes a generic map payload into an Action.
//
// Recognized keys: tool_name|name|tool for the tool, parameters|args|input
// for the arguments, and an optional action_type|type override. A declared
// type is trusted only when it names a valid Type; otherwise the type is
// inferred from the tool name and parameters.
func FromMap(payload map[string]any) Action {
	toolName := firstString(payload, "tool_name", "name", "tool")
	if toolName == "" {
		toolName = "unknown"
	}

	parameters := firstMap(payload, "parameters", "args", "input")
	if parameters == nil {
		// Non-map argument shapes are preserved under a single key.
		if v := firstValue(payload, "parameters", "args", "input"); v != nil {
			parameters = map[string]any{"value": v}
		} else {
			parameters = map[string]any{}
		}
	}

	actionType := TypeUnknown
	if declared := firstString(payload, "action_type", "type"); declared != "" && Type(declared).Valid() {
		actionType = Type(declared)
	} else {
		actionType = InferType(toolName, parameters)
	}

	return New(upgradeCredential(actionType, parameters), toolName, parameters, payload)
}

// FromOpenAIToolCall normalizes an OpenAI-style tool call envelope: a map
// with a nested "function" object whose "arguments" field is a JSON string.
// Invalid argument JSON never fails; it is preserved as {"raw": "<string>"}.
func FromOpenAIToolCall(toolCall map[string]any) Action {
	function := toolCall
	if fn, ok := toolCall["function"].(map[string]any); ok {
		function = fn
	}

	toolName := firstString(function, "name")
	if toolName == "" {
		toolName = "unknown"
	}

	var parameters map[string]any
	switch args := function["arguments"].(type) {
	case string:
		if err := json.Unmarshal([]byte(args), &parameters); err != nil || parameters == nil {
			parameters = map[string]any{"raw": args}
		}
	case map[string]any:
		parameters = args
	default:
		parameters = map[string]any{}
	}

	actionType := InferType(toolName, parameters)
	return New(upgradeCredential(actionType, parameters), toolName, parameters, toolCall)
}

// FrameworkMessage is the shape of a framework message carrying tool calls,
// as produced by LangChain/LangGraph-style runtimes: either a tool_calls
// list or a direct name+args pair.
type FrameworkMessage struct {
	ToolCalls []FrameworkToolCall
	Name      string
	Args      map[string]any
}

// FrameworkToolCall is one entry of a FrameworkMessage tool_calls list.
type FrameworkToolCall struct {
	Name string
	Args map[string]any
}

// FromFrameworkMessage normalizes a framework message into an Action. When
// the message carries multiple tool calls only the first is normalized;
// callers intercept each call individually.
func FromFrameworkMessage(msg FrameworkMessage) Action {
	toolName := "unknown"
	var parameters map[string]any

	switch {
	case len(msg.ToolCalls) > 0:
		tc := msg.ToolCalls[0]
		if tc.Name != "" {
			toolName = tc.Name
		}
		parameters = tc.Args
	case msg.Name != "":
		toolName = msg.Name
		parameters = msg.Args
	}
	if parameters == nil {
		parameters = map[string]any{}
	}

	raw := map[string]any{"tool_name": toolName, "parameters": parameters}
	actionType := InferType(toolName, parameters)
	return New(upgradeCredential(actionType, parameters), toolName, parameters, raw)
}

// upgradeCredential promotes file operations on credential paths to
// credential_access.
func upgradeCredential(t Type, parameters map[string]any) Type {
	if t == TypeFileRead || t == TypeFileWrite {
		if path := ExtractFilePath(parameters); path != "" && IsCredentialPath(path) {
			return TypeCredentialAccess
		}
	}
	return t
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func firstMap(m map[string]any, keys ...string) map[string]any {
	for _, key := range keys {
		if v, ok := m[key].(map[string]any); ok {
			return v
		}
	}
	return nil
}

func firstValue(m map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			return v
		}
	}
	return nil
}
