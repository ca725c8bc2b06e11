// Package core contains the device ownership domain: entities, store
// contracts, error mapping and the Service that orchestrates claims.
// Storage and transport adapters depend on core; core depends on neither.
package core
