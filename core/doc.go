// Package core contains the canonical dispatch domain contracts, entities,
// and orchestration logic: the service-request lifecycle state machine, the
// offer arbitration engine, verification codes, payment choreography, and the
// location broadcast channel. Lower-level adapters must depend on this
// package; core must not depend on store or transport adapters.
package core
