package policy

import (
	"path"
	"regexp"
	"strings"

	"github.com/agentguard-ai/agentguard/internal/domain/action"
)

// compileToolPattern compiles a case-insensitive tool-name glob. Tool names
// are flat strings: "*" and "?" match any characters, including dots.
// Patterns are compiled once at policy load, not per evaluation.
func compileToolPattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// domainMatches matches a hostname against a domain pattern. A leading
// "*." wildcard matches the bare domain and any subdomain: "*.ngrok.io"
// matches both "ngrok.io" and "abc.ngrok.io".
func domainMatches(domain, pattern string) bool {
	if strings.HasPrefix(pattern, "*.") {
		return domain == pattern[2:] || strings.HasSuffix(domain, pattern[1:])
	}
	if domain == pattern {
		return true
	}
	matched, err := path.Match(pattern, domain)
	return err == nil && matched
}

// pathMatches matches a file path against a glob pattern with ** support.
//
// Both sides are ~-expanded and separator-normalized. Glob tokens:
// "**/" matches zero or more whole path segments, bare "**" matches
// anything, "*" matches within one segment, "?" matches one non-separator
// character. The match is anchored at both ends.
func pathMatches(filePath, pattern string) bool {
	expandedPath := strings.TrimRight(action.NormalizePath(filePath), "/")
	expandedPattern := strings.TrimRight(action.NormalizePath(pattern), "/")

	re, err := regexp.Compile("^" + globToRegex(expandedPattern) + "$")
	if err != nil {
		return false
	}
	return re.MatchString(expandedPath)
}

// globToRegex translates a glob pattern into a regular expression body.
func globToRegex(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); {
		switch {
		case strings.HasPrefix(pattern[i:], "**/"):
			b.WriteString("(?:.+/)?")
			i += 3
		case strings.HasPrefix(pattern[i:], "**"):
			b.WriteString(".*")
			i += 2
		case pattern[i] == '*':
			b.WriteString("[^/]*")
			i++
		case pattern[i] == '?':
			b.WriteString("[^/]")
			i++
		default:
			b.WriteString(regexp.QuoteMeta(string(pattern[i])))
			i++
		}
	}
	return b.String()
}
