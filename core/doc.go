// Package core contains canonical approval domain contracts, entities, and
// orchestration logic. Lower-level adapters must depend on this package; core
// must not depend on dialect-specific or transport-specific adapters.
package core
