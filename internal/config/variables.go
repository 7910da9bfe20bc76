package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultVarPrefix marks environment entries that become variables:
// YSV_VAR_batch=42 defines the variable "batch".
const DefaultVarPrefix = "YSV_VAR_"

// Variables are the named values available to {var: name} steps. They are
// built once before compilation and only read afterwards.
type Variables map[string]string

// Get returns the value of name, or "" when it is not defined.
func (v Variables) Get(name string) string { return v[name] }

// VariablesFromEnviron collects every KEY=VALUE entry whose key starts with
// prefix. The prefix is stripped; an empty prefix is replaced by
// DefaultVarPrefix. Later duplicates win, as with os.Getenv.
func VariablesFromEnviron(environ []string, prefix string) Variables {
	if prefix == "" {
		prefix = DefaultVarPrefix
	}
	vars := make(Variables)
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, prefix) {
			continue
		}
		name := strings.TrimPrefix(k, prefix)
		if name == "" {
			continue
		}
		vars[name] = v
	}
	return vars
}

// ReadEnvFile loads a dotenv file and returns its entries in KEY=VALUE form,
// ready to be placed in front of os.Environ() so the process environment
// wins on conflicts.
func ReadEnvFile(path string) ([]string, error) {
	m, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out, nil
}
