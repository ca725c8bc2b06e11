package viperconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-devices/core"
	"github.com/spf13/viper"
)

const DefaultEnvPrefix = "DEVICES"

var (
	stringKeys = []string{"service_name"}
	intKeys    = []string{
		"claim.code_length",
		"claim.max_failed_attempts",
		"claim.attempt_window_seconds",
	}
)

type Option func(*Loader)

// WithConfigFile reads the given file (yaml, json, toml) before the
// environment. A missing path is an error.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.file = strings.TrimSpace(path)
	}
}

func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = strings.TrimSpace(prefix)
	}
}

// Loader reads core.Config keys from an optional file and DEVICES_* env
// vars, env winning. Only keys the service knows are returned.
type Loader struct {
	file      string
	envPrefix string
}

func New(opts ...Option) *Loader {
	loader := &Loader{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(loader)
		}
	}
	return loader
}

func (l *Loader) LoadRaw(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetEnvPrefix(l.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range append(append([]string{}, stringKeys...), intKeys...) {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("viperconfig: bind env %s: %w", key, err)
		}
	}

	if l.file != "" {
		v.SetConfigFile(l.file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("viperconfig: read %s: %w", l.file, err)
		}
	}

	out := map[string]any{}
	for _, key := range stringKeys {
		if v.IsSet(key) {
			setPath(out, key, v.GetString(key))
		}
	}
	for _, key := range intKeys {
		if v.IsSet(key) {
			setPath(out, key, v.GetInt(key))
		}
	}
	return out, nil
}

func setPath(out map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	node := out
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[part] = child
		}
		node = child
	}
	node[parts[len(parts)-1]] = value
}

var _ core.RawConfigLoader = (*Loader)(nil)
