package bus

// Event types published inside the client.
const (
	// SelectionChanged carries a selection.Change.
	SelectionChanged = "selection.changed"
	// OutlinesToggled carries the new global state as a bool.
	OutlinesToggled = "outlines.toggled"
	// PermissionChanged carries the server verdict as a bool.
	PermissionChanged = "permission.changed"
	// SelectionReloaded is published after an external edit of the selection
	// file has been applied.
	SelectionReloaded = "selection.reloaded"
)
