// Package incident provides the business boundary for Beacon's correlation
// engine. It defines the Service (idempotent ingestion, correlation,
// post-commit fan-out), the Store interface (persistence), the Incident
// aggregate and its state machine, and the derived rollup and query views.
package incident
