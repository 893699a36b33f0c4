package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/probekit/probekit/internal/common/apperrors"
)

// LoadDocument reads a TOML configuration document into an untyped tree
// suitable for merging.
func LoadDocument(filename string) (map[string]any, apperrors.Error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, ErrUnreadableConfig.MsgErr(fmt.Sprintf("reading %s", filename), err)
	}
	tree := map[string]any{}
	if _, err := toml.Decode(string(content), &tree); err != nil {
		return nil, ErrUnreadableConfig.MsgErr(fmt.Sprintf("parsing %s", filename), err)
	}
	return tree, nil
}

// Resolve deep-merges the base document with the environment overlay and
// applies environment variable overrides last. Overlay wins on conflicting
// scalar keys, nested tables merge recursively, arrays replace wholesale.
// A key whose overlay type is incompatible with the base type is fatal.
func Resolve(base, overlay map[string]any) (*EffectiveConfig, apperrors.Error) {
	merged, err := mergeTrees(base, overlay, "")
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(merged)
	cfg, derr := decode(merged)
	if derr != nil {
		return nil, ErrInvalidConfig.MsgErr("merged configuration is invalid", derr)
	}
	return cfg, nil
}

// mergeTrees merges overlay into a copy of base. path tracks the key chain
// for error reporting.
func mergeTrees(base, overlay map[string]any, path string) (map[string]any, apperrors.Error) {
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, ov := range overlay {
		keyPath := k
		if path != "" {
			keyPath = path + "." + k
		}
		bv, exists := out[k]
		if !exists {
			out[k] = ov
			continue
		}
		bm, baseIsMap := asTree(bv)
		om, overlayIsMap := asTree(ov)
		switch {
		case baseIsMap && overlayIsMap:
			sub, err := mergeTrees(bm, om, keyPath)
			if err != nil {
				return nil, err
			}
			out[k] = sub
		case baseIsMap != overlayIsMap:
			return nil, ErrTypeConflict.Msg(fmt.Sprintf("key %q: base is %T, overlay is %T", keyPath, bv, ov))
		default:
			if !scalarCompatible(bv, ov) {
				return nil, ErrTypeConflict.Msg(fmt.Sprintf("key %q: base is %T, overlay is %T", keyPath, bv, ov))
			}
			out[k] = ov
		}
	}
	return out, nil
}

func asTree(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// scalarCompatible reports whether an overlay value may replace a base value.
// Arrays replace arrays wholesale regardless of element type; scalars must
// share the same kind.
func scalarCompatible(base, overlay any) bool {
	switch base.(type) {
	case bool:
		_, ok := overlay.(bool)
		return ok
	case string:
		_, ok := overlay.(string)
		return ok
	case int64, int, float64:
		switch overlay.(type) {
		case int64, int, float64:
			return true
		}
		return false
	case []any:
		_, ok := overlay.([]any)
		return ok
	}
	return fmt.Sprintf("%T", base) == fmt.Sprintf("%T", overlay)
}

// Environment variables recognized as overrides. Environment wins over both
// base and overlay for these keys.
const (
	EnvMode             = "PROBEKIT_MODE" // stdio or http; read by main, not part of the tree
	EnvOutputDir        = "PROBEKIT_OUTPUT_DIR"
	EnvPort             = "PROBEKIT_PORT"
	EnvEnableFlagPrefix = "PROBEKIT_ENABLE_" // PROBEKIT_ENABLE_BROWSER_TOOLS etc.
)

var envFeatureFlags = map[string]string{
	EnvEnableFlagPrefix + "API_TOOLS":     FeatureAPITools,
	EnvEnableFlagPrefix + "BROWSER_TOOLS": FeatureBrowserTools,
	EnvEnableFlagPrefix + "FILE_TOOLS":    FeatureFileTools,
	EnvEnableFlagPrefix + "NETWORK_TOOLS": FeatureNetworkTools,
}

func applyEnvOverrides(tree map[string]any) {
	if dir := os.Getenv(EnvOutputDir); dir != "" {
		subtree(tree, "output")["dir"] = dir
	}
	if port := os.Getenv(EnvPort); port != "" {
		subtree(tree, "server")["port"] = port
	}
	for envVar, flag := range envFeatureFlags {
		raw := strings.TrimSpace(os.Getenv(envVar))
		if raw == "" {
			continue
		}
		if enabled, err := strconv.ParseBool(raw); err == nil {
			subtree(tree, "features")[flag] = enabled
		}
	}
}

func subtree(tree map[string]any, key string) map[string]any {
	if m, ok := tree[key].(map[string]any); ok {
		return m
	}
	m := map[string]any{}
	tree[key] = m
	return m
}
