// Package authz carries the authenticated caller and the controlled
// enforcement-bypass mechanism.
//
// Core concepts:
//
//   - Identity: a single authenticated identity per request
//     (System/User/APIKey). Set via WithIdentity with set-once semantics,
//     so a request can never swap identities mid-flight.
//
//   - Bypass: scope enforcement can be suspended for internal operations
//     via RunWithBypass (closure, preferred) or WithBypassEnforcement
//     (explicit context). Only System or Test identities may bypass, and
//     every bypass is audited.
//
// Usage rules:
//
//  1. Prefer RunWithBypass closures to limit how far a bypass context spreads.
//  2. When using WithBypassEnforcement, assign to bypassCtx, never ctx.
//  3. All bypass reasons must be stable strings for audit aggregation.
//  4. Background tasks must declare a System identity via NewSystemContext.
package authz
