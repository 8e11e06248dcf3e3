// Package procutil prepares child processes launched by hotkey bindings.
// Detach hides console windows on Windows and moves the child into its own
// process group so it outlives hotkeyd and ignores its console signals.
package procutil
