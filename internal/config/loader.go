package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// envExpr matches ${NAME} and ${NAME:-fallback}. A fallback may escape a
// closing brace as \}.
var envExpr = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads the YAML file at path, substitutes environment variables,
// decodes it, and fills in defaults. The result is not validated; call
// Validate separately.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("config: expand variables in %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// expandEnv substitutes every ${NAME} and ${NAME:-fallback} reference in
// raw. The environment wins over the fallback; a reference with neither
// is left in place, and all such names are reported in one joined error.
func expandEnv(raw []byte) ([]byte, error) {
	var out bytes.Buffer
	var missing []error

	last := 0
	for _, loc := range envExpr.FindAllSubmatchIndex(raw, -1) {
		out.Write(raw[last:loc[0]])
		last = loc[1]

		name := string(raw[loc[2]:loc[3]])
		if val, ok := os.LookupEnv(name); ok {
			out.WriteString(val)
			continue
		}
		if loc[4] >= 0 {
			out.Write(raw[loc[4]:loc[5]])
			continue
		}
		missing = append(missing, fmt.Errorf("unresolved variable: %s", name))
		out.Write(raw[loc[0]:loc[1]])
	}
	out.Write(raw[last:])

	return out.Bytes(), errors.Join(missing...)
}
