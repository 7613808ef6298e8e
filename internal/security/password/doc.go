// Package password hashes and verifies account passwords with bcrypt.
//
// Hashes embed their own random salt and cost, so a stored hash is all
// Verify needs. A malformed stored hash never panics; it simply fails
// verification.
package password
