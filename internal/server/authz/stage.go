package authz

// Stage is the step of the authorization pipeline a call has reached.
type Stage int

const (
	StageUnauthenticated Stage = iota
	StageTokenPresented
	StageTokenValidated
	StageIdentityResolved
	StageAuthorized
	StageDenied
)

func (s Stage) String() string {
	switch s {
	case StageUnauthenticated:
		return "unauthenticated"
	case StageTokenPresented:
		return "token_presented"
	case StageTokenValidated:
		return "token_validated"
	case StageIdentityResolved:
		return "identity_resolved"
	case StageAuthorized:
		return "authorized"
	case StageDenied:
		return "denied"
	}
	return "unknown"
}
