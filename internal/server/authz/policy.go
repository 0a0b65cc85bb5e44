package authz

// Rule is the access rule of a method or route.
type Rule int

const (
	// RuleAuthenticated admits any valid, unrevoked token of a live subject.
	RuleAuthenticated Rule = iota
	// RulePublic skips authentication entirely.
	RulePublic
	// RuleSelfOrAdmin admits the subject named by the request or a
	// privileged caller.
	RuleSelfOrAdmin
	// RuleAdminOnly admits privileged callers only.
	RuleAdminOnly
	// RuleRegistration admits anonymous callers unless they request a
	// privileged role, which requires a privileged bearer.
	RuleRegistration
)

var ruleNames = map[Rule]string{
	RuleAuthenticated: "authenticated",
	RulePublic:        "public",
	RuleSelfOrAdmin:   "self_or_admin",
	RuleAdminOnly:     "admin_only",
	RuleRegistration:  "registration",
}

func (r Rule) String() string {
	if n, ok := ruleNames[r]; ok {
		return n
	}
	return "unknown"
}

// Policy assigns rules to full gRPC method names or route names.
type Policy map[string]Rule

// RuleFor returns the rule of method. Methods missing from the table
// require authentication.
func (p Policy) RuleFor(method string) Rule {
	if r, ok := p[method]; ok {
		return r
	}
	return RuleAuthenticated
}
