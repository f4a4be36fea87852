// Package watcher reloads configuration when its file changes.
//
// Watcher is a registry component: Start adds an fsnotify watch on the
// file's directory and Stop removes it. Bursts of writes are collapsed into a
// single OnChange call after the debounce delay.
package watcher
