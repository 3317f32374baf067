//go:build !linux

package tui

import (
	"sync"

	"golang.design/x/clipboard"
)

// clipboardMethod describes how copies reach the clipboard on this platform.
const clipboardMethod = "system"

var (
	clipboardOnce    sync.Once
	clipboardInitErr error
)

// writeToClipboard writes text to the system clipboard.
func writeToClipboard(text string) error {
	clipboardOnce.Do(func() {
		clipboardInitErr = clipboard.Init()
	})
	if clipboardInitErr != nil {
		return clipboardInitErr
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}
