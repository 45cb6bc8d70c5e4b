package normalize

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var templateVar = regexp.MustCompile(`\{\{[^}]+\}\}`)

// LoadRules reads a YAML rules overlay and merges it after the defaults.
//
//	booking:
//	  totalPrice: [grand_total]
//	listing:
//	  rating: [stars]
func LoadRules(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("failed to read rules file: %w", err)
	}

	// Deployment templates ({{VAR}}) are not resolved here.
	data = templateVar.ReplaceAll(data, []byte(`""`))

	var overlay RuleSet
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return RuleSet{}, fmt.Errorf("failed to parse rules yaml: %w", err)
	}

	rules, err := DefaultRules().Merge(overlay)
	if err != nil {
		return RuleSet{}, err
	}
	return rules, nil
}
