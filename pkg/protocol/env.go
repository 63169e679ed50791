package protocol

import "strings"

// EnvVar is one KEY=VALUE pair of an environment string.
type EnvVar struct {
	Key   string
	Value string
}

// ParseEnv splits a "KEY=VALUE,KEY2=VALUE2" string. Pairs without '=' are
// skipped; keys and values are trimmed.
func ParseEnv(s string) []EnvVar {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []EnvVar
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out = append(out, EnvVar{Key: k, Value: strings.TrimSpace(v)})
	}
	return out
}

// FormatEnv joins pairs back into an environment string. Pairs with an
// empty value are dropped.
func FormatEnv(vars []EnvVar) string {
	parts := make([]string, 0, len(vars))
	for _, v := range vars {
		if v.Key == "" || v.Value == "" {
			continue
		}
		parts = append(parts, v.Key+"="+v.Value)
	}
	return strings.Join(parts, ",")
}

// MergeEnv concatenates environment strings with a comma, skipping empty
// ones. Later pairs win when the transport applies them in order.
func MergeEnv(envs ...string) string {
	parts := make([]string, 0, len(envs))
	for _, e := range envs {
		if e = strings.TrimSpace(e); e != "" {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, ",")
}
