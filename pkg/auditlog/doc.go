// Package auditlog records feature-flag mutations for traceability: who
// toggled which action, when, and what the flag looked like before and after.
//
// Audit writes are observability, not a transactional participant: the flag
// store records entries best-effort and a failed write never blocks or rolls
// back the mutation it describes.
package auditlog
