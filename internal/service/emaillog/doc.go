// Package emaillog records one immutable attempt row per recipient per send
// and applies provider-driven status upgrades.
//
// Rows are append-only. The only mutation is a forward status upgrade
// (SENT < DELIVERED < OPENED < CLICKED, with BOUNCED final and reachable
// from SENT or DELIVERED) applied as a compare-and-set on the previous
// status. Per-status totals are maintained alongside every write so
// reporting never rescans the log table.
package emaillog
