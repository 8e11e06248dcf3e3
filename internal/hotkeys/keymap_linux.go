//go:build linux

package hotkeys

import "golang.design/x/hotkey"

// Alt is Mod1 on X11.
const altModifier = hotkey.Mod1

// XK_Delete.
const deleteKey = hotkey.KeyDelete
