package action

import (
	"net/url"
	"os"
	"path"
	"strings"
)

// credentialPatterns are sensitive filenames and path suffixes that always
// classify an action as credential access.
var credentialPatterns = []string{
	".ssh/id_rsa",
	".ssh/id_ed25519",
	".ssh/id_ecdsa",
	".ssh/id_dsa",
	".ssh/authorized_keys",
	".ssh/known_hosts",
	".aws/credentials",
	".aws/config",
	".env",
	".netrc",
	"/etc/passwd",
	"/etc/shadow",
	"/etc/sudoers",
	"credentials.json",
}

// credentialExtensions are certificate and key file extensions.
var credentialExtensions = map[string]struct{}{
	".pem": {},
	".key": {},
	".p12": {},
	".pfx": {},
	".crt": {},
	".cer": {},
}

// pathKeys are the parameter names inspected for file paths.
var pathKeys = []string{"path", "file", "filename", "filepath", "file_path"}

// urlKeys are the parameter names inspected for URLs.
var urlKeys = []string{"url", "endpoint", "uri", "href"}

// NormalizePath expands a leading ~ to the user's home directory and folds
// backslashes to forward slashes.
func NormalizePath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			p = home + p[1:]
		}
	}
	return strings.ReplaceAll(p, `\`, "/")
}

// IsCredentialPath reports whether the path points at credential material.
//
// The path is normalized (~ expansion, forward slashes, lowercased) and
// matched by extension, by suffix against the known sensitive paths, and by
// basename for .env variants.
func IsCredentialPath(p string) bool {
	normalized := strings.ToLower(NormalizePath(p))
	base := path.Base(normalized)

	if _, ok := credentialExtensions[path.Ext(normalized)]; ok {
		return true
	}

	for _, pattern := range credentialPatterns {
		if normalized == pattern || strings.HasSuffix(normalized, "/"+pattern) {
			return true
		}
		// Bare filename patterns also match on basename alone.
		if !strings.Contains(pattern, "/") && base == pattern {
			return true
		}
	}

	// Dotfile .env variants (".env", ".env.production", "prod.env").
	return base == ".env" || strings.HasPrefix(base, ".env.") || strings.HasSuffix(base, ".env")
}

// ExtractFilePath returns the first string value found under a known
// path-like parameter key, or "" if none is present.
func ExtractFilePath(parameters map[string]any) string {
	for _, key := range pathKeys {
		if v, ok := parameters[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// ExtractURLDomain returns the hostname (no port) of the first URL-like
// parameter value, or "" if none parses. A missing scheme defaults to https
// so bare hosts like "evil.ngrok.io/x" still resolve.
func ExtractURLDomain(parameters map[string]any) string {
	for _, key := range urlKeys {
		v, ok := parameters[key].(string)
		if !ok || v == "" {
			continue
		}
		raw := v
		if !strings.Contains(raw, "://") {
			raw = "https://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if host := u.Hostname(); host != "" {
			return host
		}
	}
	return ""
}
