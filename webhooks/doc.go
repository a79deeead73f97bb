// Package webhooks receives payment gateway callbacks, deduplicates
// deliveries, and feeds authorization confirmations into the dispatch core.
package webhooks
