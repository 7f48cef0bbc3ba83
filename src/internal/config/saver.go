// FILE: haystackauth/src/internal/config/saver.go
package config

import (
	"fmt"
	"strings"

	lconfig "github.com/lixenwraith/config"
)

// SaveToFile writes the configuration as TOML. The password is never
// persisted.
func (c *Config) SaveToFile(path string) error {
	if path == "" {
		return fmt.Errorf("cannot save config: path is empty")
	}

	out := *c
	out.Target.Password = ""

	lcfg, err := lconfig.NewBuilder().
		WithFile(path).
		WithTarget(&out).
		WithFileFormat("toml").
		Build()
	if err != nil && !strings.Contains(err.Error(), "not found") {
		return fmt.Errorf("failed to create config builder: %w", err)
	}

	if err := lcfg.Save(path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}
