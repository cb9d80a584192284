package vault

import (
	"strings"
	"testing"
)

func TestSubstituteVariables(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		resName string
		want    string
	}{
		{
			name:    "no variables",
			path:    "secret/data/app",
			resName: "my-app",
			want:    "secret/data/app",
		},
		{
			name:    "name variable",
			path:    "secret/data/apps/{{name}}",
			resName: "my-service",
			want:    "secret/data/apps/my-service",
		},
		{
			name:    "multiple occurrences",
			path:    "{{name}}/{{name}}/*",
			resName: "app",
			want:    "app/app/*",
		},
		{
			name:    "empty name",
			path:    "secret/data/apps/{{name}}",
			resName: "",
			want:    "secret/data/apps/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SubstituteVariables(tt.path, tt.resName)
			if got != tt.want {
				t.Errorf("SubstituteVariables() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateCapabilities(t *testing.T) {
	tests := []struct {
		name         string
		capabilities []string
		wantErr      bool
		errContains  string
	}{
		{
			name:         "valid single capability",
			capabilities: []string{"read"},
		},
		{
			name:         "valid multiple capabilities",
			capabilities: []string{"create", "read", "update", "patch", "delete", "list"},
		},
		{
			name:         "valid sudo capability",
			capabilities: []string{"read", "sudo"},
		},
		{
			name:         "valid deny alone",
			capabilities: []string{"deny"},
		},
		{
			name:         "invalid capability",
			capabilities: []string{"invalid"},
			wantErr:      true,
			errContains:  "invalid capability",
		},
		{
			name:         "deny combined with others",
			capabilities: []string{"deny", "read"},
			wantErr:      true,
			errContains:  "cannot be combined",
		},
		{
			name:         "empty capabilities",
			capabilities: nil,
			wantErr:      true,
			errContains:  "at least one",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCapabilities(tt.capabilities)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateCapabilities() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error %q should contain %q", err.Error(), tt.errContains)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"simple path", "secret/data/app", false},
		{"glob path", "secret/data/*", false},
		{"empty path", "", true},
		{"parent traversal", "secret/../sys", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidatePath(tt.path); (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRules(t *testing.T) {
	tests := []struct {
		name    string
		rules   []PolicyRule
		wantErr bool
	}{
		{
			name:  "valid rules",
			rules: []PolicyRule{{Path: "kv/data/*", Capabilities: []string{"read"}}},
		},
		{
			name:    "no rules",
			wantErr: true,
		},
		{
			name: "duplicate path",
			rules: []PolicyRule{
				{Path: "kv/data/*", Capabilities: []string{"read"}},
				{Path: "kv/data/*", Capabilities: []string{"list"}},
			},
			wantErr: true,
		},
		{
			name:    "bad capability",
			rules:   []PolicyRule{{Path: "kv/data/*", Capabilities: []string{"write"}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateRules(tt.rules); (err != nil) != tt.wantErr {
				t.Errorf("ValidateRules() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGeneratePolicyHCL(t *testing.T) {
	tests := []struct {
		name    string
		rules   []PolicyRule
		resName string
		want    []string
		notWant []string
	}{
		{
			name: "simple policy with one rule",
			rules: []PolicyRule{
				{Path: "secret/data/app", Capabilities: []string{"read"}},
			},
			resName: "my-app",
			want: []string{
				"# Vault policy managed by vault-config",
				"# Policy: my-app",
				`path "secret/data/app"`,
				`capabilities = ["read"]`,
			},
		},
		{
			name: "policy with variable substitution",
			rules: []PolicyRule{
				{Path: "kv/data/{{name}}/*", Capabilities: []string{"read", "list"}},
			},
			resName: "api-server",
			want: []string{
				`path "kv/data/api-server/*"`,
				`capabilities = ["read", "list"]`,
			},
			notWant: []string{"{{name}}"},
		},
		{
			name: "policy with description",
			rules: []PolicyRule{
				{Path: "secret/data/config", Capabilities: []string{"read"}, Description: "Read access to configuration"},
			},
			resName: "my-app",
			want:    []string{"# Read access to configuration"},
		},
		{
			name: "policy with parameters",
			rules: []PolicyRule{
				{
					Path:         "kv/data/app",
					Capabilities: []string{"create", "update"},
					Parameters: &PolicyParameters{
						Allowed:  []string{"a", "b"},
						Denied:   []string{"c"},
						Required: []string{"data"},
					},
				},
			},
			resName: "my-app",
			want: []string{
				`allowed_parameters = {`,
				`"*" = ["a", "b"]`,
				`denied_parameters = {`,
				`required_parameters = ["data"]`,
			},
		},
		{
			name: "empty parameters are omitted",
			rules: []PolicyRule{
				{Path: "kv/data/app", Capabilities: []string{"read"}, Parameters: &PolicyParameters{}},
			},
			resName: "my-app",
			notWant: []string{"allowed_parameters", "denied_parameters", "required_parameters"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GeneratePolicyHCL(tt.rules, tt.resName)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("output missing %q:\n%s", w, got)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(got, nw) {
					t.Errorf("output should not contain %q:\n%s", nw, got)
				}
			}
		})
	}
}

func TestGeneratePolicyHCLDeterministic(t *testing.T) {
	rules := []PolicyRule{
		{Path: "kv/data/*", Capabilities: []string{"read"}},
		{Path: "kv/metadata/*", Capabilities: []string{"list"}},
	}

	first := GeneratePolicyHCL(rules, "reader")
	second := GeneratePolicyHCL(rules, "reader")
	if first != second {
		t.Error("expected identical output for identical input")
	}

	trimmed := strings.TrimSpace(first)
	if !strings.HasSuffix(trimmed, "}") {
		t.Error("policy should end with closing brace")
	}
}
