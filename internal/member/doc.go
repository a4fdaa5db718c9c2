// Package member provides gym member types and persistence.
//
// Members hold at most one locker assignment, kept bidirectionally
// consistent with the locker side by the engine. RFID tags are unique
// across members whenever present, enforced both by a repository
// pre-check (typed ErrTagConflict) and a partial unique index.
package member
