// Package keymap translates key presses into actions. Map is a pure
// function of (mode, key) so bindings can be tested without a terminal.
package keymap

type Mode int

const (
	ModeNormal Mode = iota
	ModeTagInput
	ModeFeedInput
	ModeOpmlImportInput
	ModeOpmlExportInput
	ModeHelp
)

// IsTextInput reports whether the mode collects free-form text.
func (m Mode) IsTextInput() bool {
	switch m {
	case ModeTagInput, ModeFeedInput, ModeOpmlImportInput, ModeOpmlExportInput:
		return true
	}
	return false
}

type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionMoveUp
	ActionMoveDown
	ActionMoveToTop
	ActionMoveToBottom
	ActionSelectArticle
	ActionRefreshFeeds
	ActionToggleRead
	ActionToggleStarred
	ActionOpenInBrowser
	ActionEmailArticle
	ActionSaveBookmark
	ActionCycleFilter
	ActionRegenerateSummary
	ActionDeleteArticle
	ActionDeleteFeed
	ActionUndeleteArticle
	ActionAddFeed
	ActionImportOpml
	ActionExportOpml
	ActionShowHelp
	ActionHideHelp
	ActionInputChar
	ActionInputBackspace
	ActionInputConfirm
	ActionInputCancel
)

// Map resolves one key press. The key is the bubbletea string form of the
// press ("q", "ctrl+c", "enter", ...).
func Map(mode Mode, key string) Action {
	if key == "ctrl+c" {
		return ActionQuit
	}
	if mode == ModeHelp {
		// Any key dismisses the help overlay.
		return ActionHideHelp
	}
	if mode.IsTextInput() {
		return mapTextInput(key)
	}
	return mapNormal(key)
}

func mapNormal(key string) Action {
	switch key {
	case "q":
		return ActionQuit
	case "j", "down":
		return ActionMoveDown
	case "k", "up":
		return ActionMoveUp
	case "<", "home":
		return ActionMoveToTop
	case ">", "end":
		return ActionMoveToBottom
	case "enter":
		return ActionSelectArticle
	case "r":
		return ActionRefreshFeeds
	case "m":
		return ActionToggleRead
	case "s":
		return ActionToggleStarred
	case "o":
		return ActionOpenInBrowser
	case "e":
		return ActionEmailArticle
	case "b":
		return ActionSaveBookmark
	case "f":
		return ActionCycleFilter
	case "g":
		return ActionRegenerateSummary
	case "d":
		return ActionDeleteArticle
	case "D":
		return ActionDeleteFeed
	case "u":
		return ActionUndeleteArticle
	case "a":
		return ActionAddFeed
	case "i":
		return ActionImportOpml
	case "w":
		return ActionExportOpml
	case "?":
		return ActionShowHelp
	}
	return ActionNone
}

func mapTextInput(key string) Action {
	switch key {
	case "enter":
		return ActionInputConfirm
	case "esc":
		return ActionInputCancel
	case "backspace":
		return ActionInputBackspace
	}
	if isPrintable(key) {
		return ActionInputChar
	}
	return ActionNone
}

// isPrintable accepts single-rune keys and the space key; everything else
// ("tab", "left", "ctrl+a", ...) arrives as a multi-rune name.
func isPrintable(key string) bool {
	if key == " " {
		return true
	}
	runes := []rune(key)
	return len(runes) == 1
}
