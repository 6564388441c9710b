//go:build !darwin

package tray

// The tray is macOS-only; elsewhere the process runs headless next to the
// terminal UI. Init still hands back the quit channel so Quit works.
func Init() <-chan struct{} { return quitCh }

func updateActivityIcon(Activity)  {}
func updateTooltip(string)         {}
func addUpdateItem(string, string) {}
func enableProviderMenu()          {}
func disableProviderMenu()         {}
