package vault

import (
	"fmt"
	"strings"
)

// PolicyRule represents a single path block in a Vault policy
type PolicyRule struct {
	Path         string
	Capabilities []string
	Description  string
	Parameters   *PolicyParameters
}

// PolicyParameters represents parameter constraints for a policy rule
type PolicyParameters struct {
	Allowed  []string
	Denied   []string
	Required []string
}

// GeneratePolicyHCL renders a policy document from rules. The output is
// deterministic for the same input so that live and desired documents can be
// compared by content hash.
func GeneratePolicyHCL(rules []PolicyRule, name string) string {
	var builder strings.Builder

	builder.WriteString("# Vault policy managed by vault-config\n")
	fmt.Fprintf(&builder, "# Policy: %s\n", name)
	builder.WriteString("\n")

	for i, rule := range rules {
		path := SubstituteVariables(rule.Path, name)

		if rule.Description != "" {
			fmt.Fprintf(&builder, "# %s\n", rule.Description)
		}

		fmt.Fprintf(&builder, "path %q {\n", path)

		fmt.Fprintf(&builder, "  capabilities = [%s]\n", quoteAll(rule.Capabilities))

		if p := rule.Parameters; p != nil && (len(p.Allowed) > 0 || len(p.Denied) > 0 || len(p.Required) > 0) {
			builder.WriteString("\n")

			if len(p.Allowed) > 0 {
				fmt.Fprintf(&builder, "  allowed_parameters = {\n    \"*\" = [%s]\n  }\n", quoteAll(p.Allowed))
			}
			if len(p.Denied) > 0 {
				fmt.Fprintf(&builder, "  denied_parameters = {\n    \"*\" = [%s]\n  }\n", quoteAll(p.Denied))
			}
			if len(p.Required) > 0 {
				fmt.Fprintf(&builder, "  required_parameters = [%s]\n", quoteAll(p.Required))
			}
		}

		builder.WriteString("}\n")

		if i < len(rules)-1 {
			builder.WriteString("\n")
		}
	}

	return builder.String()
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ", ")
}

// SubstituteVariables replaces the {{name}} template variable in a path
func SubstituteVariables(path, name string) string {
	return strings.ReplaceAll(path, "{{name}}", name)
}

// ValidateCapabilities checks if all capabilities are valid
func ValidateCapabilities(capabilities []string) error {
	if len(capabilities) == 0 {
		return fmt.Errorf("at least one capability is required")
	}

	validCaps := map[string]bool{
		"create": true,
		"read":   true,
		"update": true,
		"patch":  true,
		"delete": true,
		"list":   true,
		"sudo":   true,
		"deny":   true,
	}

	hasDeny := false
	for _, cap := range capabilities {
		if !validCaps[cap] {
			return fmt.Errorf("invalid capability: %s", cap)
		}
		if cap == "deny" {
			hasDeny = true
		}
	}

	// deny cannot be combined with other capabilities
	if hasDeny && len(capabilities) > 1 {
		return fmt.Errorf("'deny' capability cannot be combined with other capabilities")
	}

	return nil
}

// ValidatePath checks if a path is valid
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	if strings.Contains(path, "..") {
		return fmt.Errorf("path cannot contain '..'")
	}

	return nil
}

// ValidateRules validates every rule of a policy
func ValidateRules(rules []PolicyRule) error {
	if len(rules) == 0 {
		return fmt.Errorf("policy must contain at least one path block")
	}
	seen := make(map[string]bool, len(rules))
	for _, rule := range rules {
		if err := ValidatePath(rule.Path); err != nil {
			return err
		}
		if seen[rule.Path] {
			return fmt.Errorf("duplicate path block %q", rule.Path)
		}
		seen[rule.Path] = true
		if err := ValidateCapabilities(rule.Capabilities); err != nil {
			return fmt.Errorf("path %q: %w", rule.Path, err)
		}
	}
	return nil
}
