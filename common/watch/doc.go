// Package watch delivers file system change notifications for paths under a
// mount point. On Linux the inotify family is always available, so there is a
// single implementation backed by fsnotify with no runtime selection.
//
// Events are buffered in a fixed-size ring. When a consumer falls behind the
// oldest events are overwritten rather than blocking the kernel event stream.
package watch
