package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func readConfig(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var m map[string]interface{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return m
}

func TestSaveConfig_Save(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "backupflow", "config.yaml")
	c := SaveConfig{Path: path, ValidKeys: Keys}

	if err := c.Save(KeyRetention, "14"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := c.Save(KeyCompress, "TRUE"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	m := readConfig(t, path)
	if m[KeyRetention] != "14" {
		t.Errorf("retention = %v", m[KeyRetention])
	}
	if m[KeyCompress] != true {
		t.Errorf("compress = %v, want bool true", m[KeyCompress])
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestSaveConfig_UnknownKey(t *testing.T) {
	c := SaveConfig{Path: filepath.Join(t.TempDir(), "c.yaml"), ValidKeys: Keys}
	err := c.Save("retension", "7")
	if err == nil || !strings.Contains(err.Error(), "unknown config key") {
		t.Errorf("Save = %v, want unknown key error", err)
	}
}

func TestSaveConfig_MalformedYAML(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "c.yaml"), "retention: [broken\n")
	c := SaveConfig{Path: path}

	if err := c.Save(KeyRetention, "3"); err == nil {
		t.Error("Save should refuse to overwrite an unparseable file")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "retention: [broken\n" {
		t.Error("malformed file should be left untouched")
	}
}

func TestSaveConfig_Delete(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "c.yaml"), "retention: 3\nsort_by: mtime\n")
	c := SaveConfig{Path: path}

	if err := c.Delete(KeySortBy); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	m := readConfig(t, path)
	if _, ok := m[KeySortBy]; ok {
		t.Error("sort_by should be removed")
	}
	if m[KeyRetention] != 3 {
		t.Errorf("retention = %v, want 3", m[KeyRetention])
	}

	if err := c.Delete("absent"); err != nil {
		t.Errorf("Delete(absent) = %v", err)
	}
	if err := (SaveConfig{Path: filepath.Join(t.TempDir(), "none.yaml")}).Delete(KeyRetention); err != nil {
		t.Errorf("Delete on missing file = %v", err)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want interface{}
	}{
		{"true", true},
		{"False", false},
		{"7", 7},
		{"-1", -1},
		{"0755", "0755"},
		{"+3", "+3"},
		{"/backup", "/backup"},
	}
	for _, tt := range tests {
		if got := parseValue(tt.in); got != tt.want {
			t.Errorf("parseValue(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
