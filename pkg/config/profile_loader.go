package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Covenant-Systems/pactum/pkg/contracts"
)

// ReviewProfile is a per-department review configuration: which
// contract types it covers, how many negotiation rounds it tolerates,
// and which extra sign-offs it layers on top of the routing policy.
type ReviewProfile struct {
	Name        string `yaml:"name" json:"name"`
	Code        string `yaml:"code" json:"code"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// ContractTypes limits the profile's scope. Empty covers all types.
	ContractTypes []contracts.ContractType `yaml:"contract_types,omitempty" json:"contract_types,omitempty"`

	MaxNegotiationRounds int `yaml:"max_negotiation_rounds,omitempty" json:"max_negotiation_rounds,omitempty"`

	// RequiredClauses are flagged at intake review when a contract of
	// the profile's types is missing them.
	RequiredClauses []contracts.ClauseType `yaml:"required_clauses,omitempty" json:"required_clauses,omitempty"`

	Escalation EscalationConfig `yaml:"escalation" json:"escalation"`
	Retention  RetentionConfig  `yaml:"retention" json:"retention"`
}

// EscalationConfig adds department sign-offs on top of the base chain.
type EscalationConfig struct {
	// ExtraRoles maps a risk level name to roles appended to its chain.
	ExtraRoles map[string][]contracts.ApprovalRole `yaml:"extra_roles,omitempty" json:"extra_roles,omitempty"`
	// ValueFloorCents forces at least a MEDIUM review for contracts at
	// or above this value.
	ValueFloorCents int64 `yaml:"value_floor_cents,omitempty" json:"value_floor_cents,omitempty"`
}

// RetentionConfig controls evidence archiving for the department.
type RetentionConfig struct {
	ArchiveDays     int  `yaml:"archive_days,omitempty" json:"archive_days,omitempty"`
	ArchiveRequired bool `yaml:"archive_required,omitempty" json:"archive_required,omitempty"`
}

// Covers reports whether the profile applies to the contract type.
func (p *ReviewProfile) Covers(ct contracts.ContractType) bool {
	if len(p.ContractTypes) == 0 {
		return true
	}
	for _, t := range p.ContractTypes {
		if t == ct {
			return true
		}
	}
	return false
}

// ExtraRolesFor returns the department's additional sign-offs for a
// risk level.
func (p *ReviewProfile) ExtraRolesFor(level contracts.RiskLevel) []contracts.ApprovalRole {
	return p.Escalation.ExtraRoles[string(level)]
}

// MissingClauses lists required clause types absent from the extracted
// set.
func (p *ReviewProfile) MissingClauses(clauses []contracts.Clause) []contracts.ClauseType {
	present := make(map[contracts.ClauseType]bool, len(clauses))
	for _, c := range clauses {
		present[c.Type] = true
	}
	var missing []contracts.ClauseType
	for _, required := range p.RequiredClauses {
		if !present[required] {
			missing = append(missing, required)
		}
	}
	return missing
}

// LoadProfile loads one review profile by department code. Profiles
// live at <dir>/profile_<code>.yaml.
func LoadProfile(profilesDir, code string) (*ReviewProfile, error) {
	code = strings.ToLower(code)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", code))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", code, err)
	}
	profile, err := parseProfile(data)
	if err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", code, err)
	}
	if profile.Code == "" {
		profile.Code = code
	}
	return profile, nil
}

// LoadAllProfiles loads every profile_*.yaml in the directory, keyed
// by department code.
func LoadAllProfiles(profilesDir string) (map[string]*ReviewProfile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*ReviewProfile, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		profile, err := parseProfile(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if profile.Code == "" {
			base := filepath.Base(path)
			profile.Code = strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
		}
		profiles[profile.Code] = profile
	}
	return profiles, nil
}

func parseProfile(data []byte) (*ReviewProfile, error) {
	var profile ReviewProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, err
	}
	for level := range profile.Escalation.ExtraRoles {
		if !contracts.RiskLevel(level).Valid() {
			return nil, fmt.Errorf("unknown risk level %q in extra_roles", level)
		}
	}
	return &profile, nil
}
