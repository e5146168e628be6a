// Package campaign implements the campaign lifecycle state machine.
//
// States: DRAFT -> SCHEDULED (optional) -> SENDING -> SENT | FAILED, and
// DRAFT/SCHEDULED -> CANCELLED. Every transition is a single conditional
// update in the repository ("set status to X only if current status is in
// S"); a zero-row result is mapped back to a typed error by re-reading the
// campaign. Two concurrent send triggers therefore cannot both enter
// SENDING.
//
// The service layer depends on the Repository interface defined in this
// package and never imports net/http or database/sql. Implementations live
// in repository/postgres/ and repository/memory/.
package campaign
