package isolation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIsolationDisabled  = errors.New("row level security disabled")
	ErrIsolationNotForced = errors.New("row level security not forced for table owner")
	ErrNoPolicy           = errors.New("no isolation policy")
	ErrTableMissing       = errors.New("scoped table missing")
	ErrRoleBypass         = errors.New("connected role bypasses row level security")
)

// PolicyPredicate is the only row filter an isolation policy may use. Audit
// compares policy expressions against it after normalization.
const PolicyPredicate = "organization_id = NULLIF(current_setting('" + SettingOrganizationID + "', true), '')::uuid"

// ScopedTables are the tables whose rows belong to exactly one organization.
var ScopedTables = []string{"roles", "role_permissions", "memberships", "machines", "issues"}

// TableState mirrors pg_class row security flags.
type TableState struct {
	Name       string
	RLSEnabled bool
	RLSForced  bool
}

// Policy mirrors a pg_policies row. Empty expressions are NULL.
type Policy struct {
	Table     string
	Name      string
	Command   string // ALL, SELECT, INSERT, UPDATE, DELETE
	Using     string
	WithCheck string
	// Restrictive policies are ANDed with the others and can only narrow
	// what permissive policies admit.
	Restrictive bool
}

// RoleState mirrors the pg_roles flags of the connected role.
type RoleState struct {
	Name      string
	Superuser bool
	BypassRLS bool
}

// Finding is one isolation defect.
type Finding struct {
	Table  string
	Policy string
	Role   string
	Err    error
}

func (f Finding) Error() string {
	if f.Role != "" {
		return fmt.Sprintf("role %s: %v", f.Role, f.Err)
	}
	if f.Policy != "" {
		return fmt.Sprintf("%s.%s: %v", f.Table, f.Policy, f.Err)
	}
	return fmt.Sprintf("%s: %v", f.Table, f.Err)
}

func (f Finding) Unwrap() error { return f.Err }

// Report is the result of Audit.
type Report struct {
	Findings []Finding
}

// OK reports whether no defects were found.
func (r Report) OK() bool { return len(r.Findings) == 0 }

// Err joins all findings, or returns nil.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, len(r.Findings))
	for i, f := range r.Findings {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Audit checks that every required table has row security enabled and
// forced and exactly one permissive policy whose expressions are
// PolicyPredicate. Postgres ORs permissive policies, so any other
// permissive policy voids isolation for its table.
func Audit(required []string, tables []TableState, policies []Policy) Report {
	var report Report

	byName := make(map[string]TableState, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}
	byTable := make(map[string][]Policy)
	for _, p := range policies {
		if p.Restrictive {
			continue
		}
		byTable[p.Table] = append(byTable[p.Table], p)
	}

	for _, name := range required {
		t, ok := byName[name]
		if !ok {
			report.Findings = append(report.Findings, Finding{Table: name, Err: ErrTableMissing})
			continue
		}
		if !t.RLSEnabled {
			report.Findings = append(report.Findings, Finding{Table: name, Err: ErrIsolationDisabled})
		}
		if !t.RLSForced {
			report.Findings = append(report.Findings, Finding{Table: name, Err: ErrIsolationNotForced})
		}
		permissive := byTable[name]
		switch {
		case len(permissive) == 0:
			report.Findings = append(report.Findings, Finding{Table: name, Err: ErrNoPolicy})
		case len(permissive) > 1:
			report.Findings = append(report.Findings, Finding{Table: name,
				Err: fmt.Errorf("%w: %d permissive policies, want 1", ErrPermissivePolicy, len(permissive))})
		}
		for _, p := range permissive {
			if err := checkPolicy(p); err != nil {
				report.Findings = append(report.Findings, Finding{Table: name, Policy: p.Name, Err: err})
			}
		}
	}
	return report
}

// AuditRole reports a connected role that skips every policy.
func AuditRole(role RoleState) []Finding {
	if !role.Superuser && !role.BypassRLS {
		return nil
	}
	attr := "BYPASSRLS"
	if role.Superuser {
		attr = "SUPERUSER"
	}
	return []Finding{{Role: role.Name, Err: fmt.Errorf("%w: %s", ErrRoleBypass, attr)}}
}

// checkPolicy requires an ALL policy filtering reads and writes on
// PolicyPredicate. A NULL WITH CHECK reuses USING.
func checkPolicy(p Policy) error {
	if cmd := strings.ToUpper(p.Command); cmd != "ALL" {
		return fmt.Errorf("%w: command %s, want ALL", ErrPermissivePolicy, cmd)
	}
	check := p.WithCheck
	if strings.TrimSpace(check) == "" {
		check = p.Using
	}
	for _, e := range []string{p.Using, check} {
		if normalize(e) != canonical {
			return fmt.Errorf("%w: %q", ErrPermissivePolicy, e)
		}
	}
	return nil
}

var canonical = normalize(PolicyPredicate)

var normalizer = strings.NewReplacer("(", "", ")", "", " ", "", "\n", "", "\t", "", "::text", "")

// normalize folds the deparsed form Postgres stores in pg_policies onto the
// form written in the migration: no grouping parentheses, whitespace or text
// casts.
func normalize(expr string) string {
	return normalizer.Replace(strings.ToLower(expr))
}
