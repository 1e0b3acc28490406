package config

import (
	"os"
	"regexp"
)

// envVarPattern matches ${VAR} and $VAR patterns
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_]+)\}|\$([A-Za-z0-9_]+)`)

// ExpandEnv replaces ${VAR} and $VAR with environment variables.
// Unset variables expand to the empty string.
// Example: "${MISTRAL_API_KEY}" → "sk-..."
func ExpandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		name := sub[1]
		if name == "" {
			name = sub[2]
		}
		return os.Getenv(name)
	})
}

// ExpandEnvMap expands all values in a map, used for MCP server environments
func ExpandEnvMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}

	expanded := make(map[string]string, len(m))
	for key, value := range m {
		expanded[key] = ExpandEnv(value)
	}
	return expanded
}
