package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromPath reads a rule-set document (YAML or JSON), validates and
// compiles it. Format is detected by extension or by content.
func LoadFromPath(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ruleset: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses a rule-set document from bytes. ext is the file extension
// (".yaml", ".json") as a format hint; empty = detect from content.
func Load(data []byte, ext string) (*RuleSet, error) {
	rs, err := decode(data, ext)
	if err != nil {
		return nil, err
	}
	if err := rs.Compile(); err != nil {
		return nil, err
	}
	return rs, nil
}

func decode(data []byte, ext string) (*RuleSet, error) {
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	switch ext {
	case ".yaml":
		return decodeYAML(data)
	case ".json":
		return decodeJSON(data)
	}
	if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		return decodeJSON(data)
	}
	return decodeYAML(data)
}

func decodeYAML(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse ruleset yaml: %w", err)
	}
	return &rs, nil
}

func decodeJSON(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse ruleset json: %w", err)
	}
	return &rs, nil
}

// Marshal renders the rule set as a YAML document, the persisted form.
func Marshal(rs *RuleSet) ([]byte, error) {
	data, err := yaml.Marshal(rs)
	if err != nil {
		return nil, fmt.Errorf("marshal ruleset: %w", err)
	}
	return data, nil
}
