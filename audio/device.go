package audio

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// SelectDevice presents an interactive capture-device picker. The first
// entry switches back to the system default (empty ID). current preselects
// the cursor (matched by ID, then by name substring) so re-running setup
// starts from the saved choice. Returns nil without error when the user
// backs out with Esc, q or Ctrl+C.
func SelectDevice(ctx Context, current string) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no capture devices found")
	}

	entries := make([]DeviceInfo, 0, len(devices)+1)
	entries = append(entries, DeviceInfo{Name: "system default"})
	entries = append(entries, devices...)

	cursor := 0
	if current != "" {
		lowCur := strings.ToLower(current)
		for i, d := range entries[1:] {
			if d.ID == current || strings.Contains(strings.ToLower(d.Name), lowCur) {
				cursor = i + 1
				break
			}
		}
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	label := func(d DeviceInfo) string {
		if IsBluetooth(d.Name) {
			return d.Name + " \x1b[33m[BT: lower audio quality]\x1b[0m"
		}
		return d.Name
	}

	renderList := func() {
		fmt.Print("\r\x1b[J")
		fmt.Print("Select input device (↑/↓, Enter to confirm, Esc to keep current):\r\n\r\n")
		for i, d := range entries {
			if i == cursor {
				fmt.Printf("  \x1b[1;36m▶ %s\x1b[0m\r\n", label(d))
			} else {
				fmt.Printf("    %s\r\n", label(d))
			}
		}
	}
	renderList()

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}

		if n == 1 {
			switch buf[0] {
			case 13: // Enter
				fmt.Print("\r\n")
				return &entries[cursor], nil
			case 3, 27, 'q': // Ctrl+C, bare Esc, q: leave the device alone
				fmt.Print("\r\n")
				return nil, nil
			case 'j':
				if cursor < len(entries)-1 {
					cursor++
				}
			case 'k':
				if cursor > 0 {
					cursor--
				}
			}
		} else if n == 3 && buf[0] == 0x1b && buf[1] == '[' {
			switch buf[2] {
			case 'A':
				if cursor > 0 {
					cursor--
				}
			case 'B':
				if cursor < len(entries)-1 {
					cursor++
				}
			}
		}

		lines := len(entries) + 2
		fmt.Printf("\x1b[%dA", lines)
		renderList()
	}
}
