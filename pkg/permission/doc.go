// Package permission implements the layered authorization engine: given a
// session identity and a point-in-time snapshot of tenant flags, user
// overrides and role defaults, it answers "can this user perform this action,
// optionally against this resource" through a strict precedence chain.
//
// # Precedence
//
// Exactly one layer determines every outcome, checked in order:
//
//  1. User override - an explicit per-user flag is authoritative, full stop.
//  2. Tenant flag - exclusion lists deny first, then user targeting, then
//     role targeting with expiry enforcement. A flag whose targeting does
//     not reach the session falls through.
//  3. Role default - the tenant-configured table, or the hardcoded
//     roles.Defaults() table when none is configured. Grant-only.
//  4. Context rule - resource-scoped predicates (ownership checks) consulted
//     only when a context was supplied. Rules may allow, deny, or abstain.
//  5. Default deny.
//
// # Failure semantics
//
// The evaluation surface (Can, CanContext, CanEach, Evaluate, AllPermissions)
// never returns errors and never panics: malformed contexts make rules
// abstain, and any internal failure resolves to deny. The only fail-open path
// is the designated fallback to role defaults when tenant configuration is
// absent.
//
// # Lifecycle
//
// Evaluators are immutable over their snapshot: the flag store constructs a
// fresh Evaluator on every backing document update, so overlapping listener
// callbacks can never expose half-updated state. The decision cache is
// private to each instance, 5 minutes TTL by default, and serves stale
// results until the TTL lapses or ClearCache is called.
package permission
