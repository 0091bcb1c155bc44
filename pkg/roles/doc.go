// Package roles defines the tenant membership roles and the hardcoded
// role-default permission table used as the last-resort grant source when a
// tenant has no configured defaults or its configuration is unreadable.
//
// The defaults form a privilege chain: every action granted to client is
// granted to team_member, every team_member action to manager, and every
// manager action to owner. The chain is maintained by construction and
// asserted in tests; it is a product convention, not a structural requirement
// of the evaluation engine.
package roles
