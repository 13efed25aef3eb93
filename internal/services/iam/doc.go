// Package iam resolves who is calling and decides what they may do.
//
// Request flow:
//
//	Authorization header → Resolver.Resolve() → Principal (immutable)
//	       ↓
//	   Handler/service → Evaluator.Authorize(principal, request) → Decision
//
// Role precedence, highest first: global developer, global admin, the
// principal's approved membership role in the requested society, member.
//
// Scope resolution for a (society, role, scope) triple walks three tiers and
// stops at the first hit: the society's ScopeRecord, the system ScopeRecord
// (society_id NULL), then the built-in default table.
//
// A few rules sit outside the scope tables: societies.create and
// scopes.manage belong to developers only; deleting issues, assets, AMCs and
// users needs an admin or developer; an issue's author may always edit or
// delete it; nobody deletes their own account; only developers delete developers.
package iam
