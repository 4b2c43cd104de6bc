package domain

// VerifyOutcome tags why a candidate domain did or did not verify.
type VerifyOutcome int

const (
	// OutcomeDNSFailure: the name did not resolve (or was not a valid host).
	OutcomeDNSFailure VerifyOutcome = iota
	// OutcomeTimeout: resolution did not finish within the DNS timeout.
	OutcomeTimeout
	// OutcomeUnreachable: resolved, but neither http nor https answered.
	OutcomeUnreachable
	// OutcomeResolved: resolved and answered on http or https.
	OutcomeResolved
)

// Verified collapses the outcome to the public boolean. Resolution is the
// binding criterion; reachability is advisory.
func (o VerifyOutcome) Verified() bool {
	return o == OutcomeResolved || o == OutcomeUnreachable
}

func (o VerifyOutcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeUnreachable:
		return "unreachable"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "dns_failure"
	}
}

// ParseVerifyOutcome is the inverse of String; unknown input maps to
// OutcomeDNSFailure.
func ParseVerifyOutcome(s string) VerifyOutcome {
	switch s {
	case "resolved":
		return OutcomeResolved
	case "unreachable":
		return OutcomeUnreachable
	case "timeout":
		return OutcomeTimeout
	default:
		return OutcomeDNSFailure
	}
}
