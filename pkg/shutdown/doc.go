// Package shutdown stops the server in tiers: a primary mechanism, a
// liveness probe to confirm it worked, and a fallback mechanism when it did
// not. A tier that fails outright counts as "still running", so the fallback
// always gets its chance.
package shutdown
