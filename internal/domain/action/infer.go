package action

import (
	"regexp"
	"strings"
)

// toolTypePattern maps a tool-name prefix pattern to an action type.
// Patterns are checked in order; write patterns come before read patterns so
// tools like "write_file" are not misclassified by the generic "read" rule.
type toolTypePattern struct {
	re       *regexp.Regexp
	toolType Type
}

// sep matches the end of a tool-name token: end of string or a
// non-alphanumeric separator. \b alone treats "_" as a word character and
// would miss names like "vault_lookup".
const sep = `(?:$|[^a-z0-9])`

var toolTypePatterns = []toolTypePattern{
	{regexp.MustCompile(`(?i)^(bash|shell|subprocess|exec|run_command|terminal|sh)` + sep), TypeShellCommand},
	{regexp.MustCompile(`(?i)^(file\.write|write_file|save_file|create_file|append_file)` + sep), TypeFileWrite},
	{regexp.MustCompile(`(?i)^(file\.read|read_file|open_file|cat|read)` + sep), TypeFileRead},
	{regexp.MustCompile(`(?i)^(http|requests?|curl|fetch|web_request|http_request|http_post|http_get)` + sep), TypeHTTPRequest},
	{regexp.MustCompile(`(?i)^(memory\.(write|set|update)|set_memory|update_memory)` + sep), TypeMemoryWrite},
	{regexp.MustCompile(`(?i)^(credential|secret|vault|keychain)` + sep), TypeCredentialAccess},
}

// commandKeys are the parameter names that imply a shell command.
var commandKeys = []string{"command", "cmd", "script"}

// writeKeywords distinguish file writes from reads when only a path
// parameter is available.
var writeKeywords = []string{"write", "save", "create", "append", "put"}

// InferType infers the action type from the tool name and parameters.
//
// Priority order: tool-name prefix patterns, then path-like parameters, then
// URL-like parameters, then command-like parameters. Any file operation whose
// path is credential material is upgraded to credential_access regardless of
// the tool's apparent intent.
func InferType(toolName string, parameters map[string]any) Type {
	for _, p := range toolTypePatterns {
		if p.re.MatchString(toolName) {
			if p.toolType == TypeFileWrite || p.toolType == TypeFileRead {
				if path := ExtractFilePath(parameters); path != "" && IsCredentialPath(path) {
					return TypeCredentialAccess
				}
			}
			return p.toolType
		}
	}

	if path := ExtractFilePath(parameters); path != "" {
		if IsCredentialPath(path) {
			return TypeCredentialAccess
		}
		lower := strings.ToLower(toolName)
		for _, kw := range writeKeywords {
			if strings.Contains(lower, kw) {
				return TypeFileWrite
			}
		}
		return TypeFileRead
	}

	if ExtractURLDomain(parameters) != "" {
		return TypeHTTPRequest
	}

	for _, key := range commandKeys {
		if v, ok := parameters[key]; ok && v != nil && v != "" {
			return TypeShellCommand
		}
	}

	return TypeToolCall
}
