// Package filesystem is the Linux adapter used when working with a locally
// mounted file system. It provides a common Provider interface so operations
// can use paths relative to a mount point and so tests can swap in an
// in-memory mock, plus the pieces that need real kernel support: mounted file
// system enumeration (via common/mounttable), tiered bulk content copying (via
// common/filecopy), file store statistics, and the negotiated set of metadata
// views (owner, posix, dos, user extended attributes) usable on the running
// kernel.
//
// The New* functions initialize a Provider from a path. The resulting Provider
// can be used directly or set as a process-wide singleton by the application.
package filesystem
