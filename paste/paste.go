// Package paste synthesizes the paste chord in the focused application:
// Cmd+V on macOS, Ctrl+V elsewhere. On linux the chord goes through a
// uinput virtual keyboard so it lands on X11 and Wayland alike.
package paste
