package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// SaveConfig writes values into a config file.
type SaveConfig struct {
	// Path is the file to edit, DefaultSystemPath if empty.
	Path string

	// ValidKeys lists keys that can be set. If nil, all keys are valid.
	ValidKeys []string
}

func (c SaveConfig) path() string {
	if c.Path != "" {
		return c.Path
	}
	return DefaultSystemPath
}

// Save stores a key-value pair, keeping the other keys in the file.
// The file holds credentials, so it is written 0600.
func (c SaveConfig) Save(key, value string) error {
	if len(c.ValidKeys) > 0 && !contains(c.ValidKeys, key) {
		return fmt.Errorf("unknown config key: %s\n\nValid keys: %s",
			key, strings.Join(c.ValidKeys, ", "))
	}

	configPath := c.path()

	existing, err := readYAML(configPath)
	if err != nil {
		return err
	}
	existing[key] = parseValue(value)

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(existing)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0o600)
}

// Delete removes a key from the file. A missing file or key is not an error.
func (c SaveConfig) Delete(key string) error {
	configPath := c.path()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}
	existing, err := readYAML(configPath)
	if err != nil {
		return err
	}
	if _, ok := existing[key]; !ok {
		return nil
	}
	delete(existing, key)

	data, err := yaml.Marshal(existing)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0o600)
}

// readYAML loads a config file as a map. A missing file yields an empty map;
// a malformed one is an error so Save never discards what is there.
func readYAML(path string) (map[string]interface{}, error) {
	existing := make(map[string]interface{})
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return existing, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &existing); err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", path, err)
	}
	if existing == nil {
		existing = make(map[string]interface{})
	}
	return existing, nil
}

// parseValue converts string values to appropriate types for YAML.
func parseValue(value string) interface{} {
	lower := strings.ToLower(value)
	if lower == "true" {
		return true
	}
	if lower == "false" {
		return false
	}
	// Only canonical integers, so "0755" stays a string.
	if n, err := strconv.Atoi(value); err == nil && strconv.Itoa(n) == value {
		return n
	}
	return value
}
