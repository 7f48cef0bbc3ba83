// FILE: haystackauth/src/internal/auth/state.go
package auth

// State tracks one login attempt.
//
//	Init → HelloSent → (Redirected → HelloSent)? → Challenged → ProofSent → Authenticated | Failed
type State int32

const (
	StateInit State = iota
	StateHelloSent
	StateRedirected
	StateChallenged
	StateProofSent
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateHelloSent:
		return "hello_sent"
	case StateRedirected:
		return "redirected"
	case StateChallenged:
		return "challenged"
	case StateProofSent:
		return "proof_sent"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
