// Package iam provides identity and access management services for the portal API.
//
// The IAM service owns every decision that turns an IdP identity into local
// permissions. It provides:
//
//   - Idempotent account provisioning on first sign-in (EnsureAccount)
//   - First-user bootstrap: the first account ever created becomes an approved super administrator
//   - Role resolution from the append-only role assignment log
//   - The role change request workflow (submit, review, list)
//   - Administrative role and approval changes
//
// Architecture:
//
//   - Service interface: Facade for all IAM operations
//   - Principal struct: Resolved account, role and write gate for one request
//   - Role: Fixed ordinal scale (1 default_user .. 4 super_admin)
//   - repository.Store: Transaction boundary; every multi-row write runs in one RunInTx
//
// Request Flow:
//
//	IdP ticket → auth.AdaptClaims → EnsureAccount (provision, self-heal, touch login)
//
//	Session → ResolvePrincipal (fresh store read) → Principal.HasRole / CanWrite
//
// Roles are never cached. Every ResolvePrincipal call reads the account and its
// newest role assignment so that a review or an administrative change applies
// to the very next request.
package iam
