package main

import "golang.design/x/mainthread"

// runOnMainThread hands the main thread to the Cocoa event loop, which
// the darwin hotkey backend requires, and runs fn on another goroutine.
func runOnMainThread(fn func()) {
	mainthread.Init(fn)
}
