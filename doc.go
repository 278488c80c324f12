// Package auth provides account authentication for the mess feedback
// service: password login with brute-force lockout, HS256 session tokens,
// request gating by role and a security audit trail.
//
// Login:
//   - Auther.Login looks up the active account scoped to a role, checks the
//     lockout window, verifies the bcrypt hash, then records the outcome
//     through the CredentialStore before signing a token. Unknown accounts
//     and wrong passwords share ErrInvalidCredentials; a locked account gets
//     ErrAccountLocked carrying locked_until.
//
// Lockout:
//   - Five consecutive failures lock an account for thirty minutes. Stores
//     apply a LockoutUpdate in a single atomic statement so concurrent
//     failures are all counted. Only a successful login resets the counter.
//
// Sessions:
//   - Protect accepts a token from the Authorization header or the session
//     cookie (header first) and returns the AccountView of a still active
//     account. Every rejection is ErrUnauthenticated.
//
// Activity sinks:
//   - ActivitySink receives login, lockout, token and authorization events.
//     Sinks run best-effort (errors and panics are logged) so they can
//     forward to a database or queue without blocking authentication. See
//     the audit package for the asynchronous database writer.
package auth
