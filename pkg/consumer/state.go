package consumer

// State is a step of token validation. Every call starts in StateReceived
// and ends in StateAccepted or StateError.
type State string

const (
	// StateReceived is the entry state: a raw token has been handed to the
	// engine and nothing has been checked yet.
	StateReceived State = "received"

	// StateParsed means the token was split and its header and claims
	// decoded.
	StateParsed State = "parsed"

	// StateKeyResolved means verification key material was found for the
	// consumer's algorithm.
	StateKeyResolved State = "key_resolved"

	// StateSignatureChecked means the signature verified, or a peer had
	// already verified it through the mirror.
	StateSignatureChecked State = "signature_checked"

	// StateClaimsValidated means every claim validator passed.
	StateClaimsValidated State = "claims_validated"

	// StateAccepted is terminal: the claims are returned to the caller.
	StateAccepted State = "accepted"

	// StateError is terminal and reachable from every non-terminal state.
	StateError State = "error"
)

// String implements fmt.Stringer.
func (s State) String() string {
	return string(s)
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateReceived, StateParsed, StateKeyResolved, StateSignatureChecked,
		StateClaimsValidated, StateAccepted, StateError:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s ends a validation call.
func (s State) IsTerminal() bool {
	return s == StateAccepted || s == StateError
}

// validTransitions is the validation state machine.
//
//	Received         → Parsed, Accepted (cache hit), Error
//	Parsed           → KeyResolved, Error
//	KeyResolved      → SignatureChecked, Error
//	SignatureChecked → ClaimsValidated, Error
//	ClaimsValidated  → Accepted, Error
var validTransitions = map[State][]State{
	StateReceived:         {StateParsed, StateAccepted, StateError},
	StateParsed:           {StateKeyResolved, StateError},
	StateKeyResolved:      {StateSignatureChecked, StateError},
	StateSignatureChecked: {StateClaimsValidated, StateError},
	StateClaimsValidated:  {StateAccepted, StateError},
}

// ValidTransition reports whether from may move to to. Same-state and
// outgoing terminal transitions are rejected.
func ValidTransition(from, to State) bool {
	if from == to {
		return false
	}
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
