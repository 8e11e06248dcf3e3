//go:build darwin

package hotkeys

import "golang.design/x/hotkey"

const altModifier = hotkey.ModOption

// hotkey.KeyDelete is kVK_Delete (Backspace); VK_DELETE is forward delete.
const deleteKey = hotkey.Key(0x75)
