// Package billing holds the provider-neutral entitlement model: tiers, the plan
// catalog, per-tier limits, the entitlement resolver and the event shapes the
// webhook processor consumes.
//
// Nothing in this package performs I/O. Catalog and LimitTable are built once
// at startup and injected wherever they are needed.
package billing
