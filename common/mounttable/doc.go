// Package mounttable enumerates the mounted file systems known to the kernel by
// reading an mtab formatted mount table, by default the live table at
// /proc/self/mounts.
//
// Enumeration is deliberately best-effort: mount information is diagnostic, not
// safety critical, so a table that becomes unreadable part way through yields
// the entries decoded so far instead of an error. Callers that need to know the
// table could not be opened at all can check for an empty result. The table may
// also change between the internal sizing pass and the decode pass, in which
// case the result reflects some mix of the two states.
package mounttable
