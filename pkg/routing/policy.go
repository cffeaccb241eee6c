package routing

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/Covenant-Systems/pactum/pkg/contracts"
)

// Rule is one escalation in a routing policy. When its guard holds, the
// rule may raise the risk floor, add approver roles, or both. Rules can
// only extend the outcome: nothing in a policy removes a required
// signer or lowers a level.
type Rule struct {
	Name string `yaml:"name" json:"name"`

	// When is a CEL guard over the contract and risk variables. Empty
	// means the rule always applies.
	When string `yaml:"when,omitempty" json:"when,omitempty"`

	// FloorLevel raises the effective risk level to at least this.
	FloorLevel contracts.RiskLevel `yaml:"floor_level,omitempty" json:"floor_level,omitempty"`

	// AddRoles appends required signers to the chain.
	AddRoles []contracts.ApprovalRole `yaml:"add_roles,omitempty" json:"add_roles,omitempty"`
}

// Policy is a versioned set of escalation rules applied on top of the
// fixed risk-level chains.
type Policy struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
	Rules   []Rule `yaml:"rules" json:"rules"`
}

// Validate checks the policy is well-formed and every guard compiles.
// A policy that fails validation is never installed.
func (p *Policy) Validate(eval *Evaluator) error {
	if p.Name == "" {
		return fmt.Errorf("policy has no name")
	}
	if _, err := semver.NewVersion(p.Version); err != nil {
		return fmt.Errorf("policy %s: invalid version %q: %w", p.Name, p.Version, err)
	}
	for i, r := range p.Rules {
		if r.Name == "" {
			return fmt.Errorf("policy %s: rule %d has no name", p.Name, i)
		}
		if r.FloorLevel != "" && !r.FloorLevel.Valid() {
			return fmt.Errorf("policy %s: rule %s: unknown floor level %q", p.Name, r.Name, r.FloorLevel)
		}
		if r.FloorLevel == "" && len(r.AddRoles) == 0 {
			return fmt.Errorf("policy %s: rule %s does nothing", p.Name, r.Name)
		}
		for _, role := range r.AddRoles {
			if !role.Valid() {
				return fmt.Errorf("policy %s: rule %s: unknown role %q", p.Name, r.Name, role)
			}
			if role == contracts.RoleAuto {
				return fmt.Errorf("policy %s: rule %s: AUTO cannot be added by policy", p.Name, r.Name)
			}
		}
		if r.When != "" {
			if err := eval.Compile(r.When); err != nil {
				return fmt.Errorf("policy %s: rule %s: %w", p.Name, r.Name, err)
			}
		}
	}
	return nil
}

// semverOf returns the parsed policy version. Call after Validate.
func (p *Policy) semverOf() *semver.Version {
	v, err := semver.NewVersion(p.Version)
	if err != nil {
		return semver.MustParse("0.0.0")
	}
	return v
}

// DefaultPolicy is the built-in escalation policy: contract value and
// contract type raise the stakes beyond what clause risk alone says.
func DefaultPolicy() *Policy {
	return &Policy{
		Name:    "standard-escalation",
		Version: "1.0.0",
		Rules: []Rule{
			{
				Name:       "value-50k-floor-medium",
				When:       `contract.value_cents >= 5000000`,
				FloorLevel: contracts.RiskMedium,
			},
			{
				Name:     "value-250k-add-vp",
				When:     `contract.value_cents >= 25000000`,
				AddRoles: []contracts.ApprovalRole{contracts.RoleVP},
			},
			{
				Name:       "value-500k-floor-high",
				When:       `contract.value_cents >= 50000000`,
				FloorLevel: contracts.RiskHigh,
			},
			{
				Name:       "value-1m-floor-critical",
				When:       `contract.value_cents >= 100000000`,
				FloorLevel: contracts.RiskCritical,
			},
			{
				Name:     "employment-licensing-legal-review",
				When:     `contract.type in ["EMPLOYMENT", "LICENSING"]`,
				AddRoles: []contracts.ApprovalRole{contracts.RoleLegal},
			},
		},
	}
}

// LoadPolicyFile reads and validates a YAML policy.
func LoadPolicyFile(path string, eval *Evaluator) (*Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	return ParsePolicy(raw, eval)
}

// ParsePolicy decodes and validates YAML policy bytes.
func ParsePolicy(raw []byte, eval *Evaluator) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	if err := p.Validate(eval); err != nil {
		return nil, err
	}
	return &p, nil
}
