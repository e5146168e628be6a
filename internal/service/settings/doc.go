// Package settings owns the process-wide AdminEmailSettings record.
//
// Exactly one record is authoritative. Get creates the default record on
// first read; Update replaces it wholesale and stamps the editor. Dispatch
// takes one snapshot per operation and threads it through every policy
// decision, so a mid-dispatch edit never splits a batch.
package settings
