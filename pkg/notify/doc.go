// Package notify provides a minimal in-process broadcaster used to push
// "state changed" signals from the flag store to UI-facing subscribers.
// Publishing never blocks; slow consumers miss signals instead of stalling
// flag refreshes.
package notify
