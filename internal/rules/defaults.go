package rules

import (
	_ "embed"
	"fmt"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Default returns the factory rule set, compiled. Used when the store holds
// no rule-set document yet.
func Default() *RuleSet {
	rs, err := Load(defaultsYAML, ".yaml")
	if err != nil {
		panic(fmt.Sprintf("load defaults.yaml: %v", err))
	}
	return rs
}
