// Package accounts implements the identity and relationship core of a
// chat backend: account registration and verification, login gating,
// single-use password-recovery codes, and the pairwise friend-request
// state machine.
//
// The package is transport agnostic. HTTP routing, upload plumbing and
// the concrete mail/image backends live behind the Mailer, ImageStore
// and store contracts; callers invoke the LifecycleManager and
// RelationshipManager operations directly.
package accounts
