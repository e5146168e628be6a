// Package preference manages per-recipient consent records.
//
// Records are created lazily: the first read through Get upserts the
// opt-in defaults, and user signup calls EnsureDefaults with the address
// already verified. The dispatch path uses Lookup, which never writes and
// returns nil for a recipient with no record.
package preference
