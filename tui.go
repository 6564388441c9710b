package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sotto/log"
	"sotto/session"
	"sotto/vad"
)

// TUI message types
type StateMsg struct{ State session.State }
type LevelMsg struct {
	Level  float64
	Speech vad.State
}
type PartialMsg struct{ Text string }
type TranscriptMsg struct{ Text string }
type ResultMsg struct {
	Metrics   []string
	NoSpeech  bool
	RateLimit string
}
type NoticeMsg struct{ Text string }
type FailureMsg struct{ Text string }
type ModeLineMsg struct{ Text string }
type DeviceLineMsg struct{ Text string }
type UpdateMsg struct{ Version string }
type HybridHelpMsg struct{ Enabled bool }
type tickMsg time.Time

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

// Styles used every frame, computed once.
var (
	styleListen   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleProcess  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	styleInject   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	styleIdle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleMeterOn  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleMeterLow = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleMeterSil = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	stylePartial  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	styleText     = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleNoSpeech = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleMetrics  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	styleNotice   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleFailure  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleFaint    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleHelp     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleHelpBold = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	styleTitle    = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
)

const noticeTTL = 5 * time.Second

type tuiModel struct {
	state       session.State
	listenStart time.Time
	elapsed     float64
	level       float64
	peak        float64
	speech      vad.State
	frame       int

	partial     string
	lastText    string
	lastMetrics []string
	noSpeech    bool
	rateLimit   string
	msgCount    int

	notice   string
	noticeAt time.Time
	failure  string

	modeLine   string
	deviceLine string
	updateLine string
	hybridHelp bool

	width, height int
}

func startTUI() {
	tuiMu.Lock()
	tuiProgram = tea.NewProgram(tuiModel{}, tea.WithAltScreen())
	p := tuiProgram
	tuiMu.Unlock()

	go func() {
		if _, err := p.Run(); err != nil {
			log.Errorf("TUI error: %v", err)
		}
		gracefulShutdown()
	}()
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func tuiQuit() {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Quit()
	}
}

// tuiRelease and tuiRestore bracket the raw-terminal device picker.
func tuiRelease() {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.ReleaseTerminal()
	}
}

func tuiRestore() {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.RestoreTerminal()
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "esc":
			engine.Cancel()
		case "ctrl+g":
			select {
			case deviceSelectChan <- struct{}{}:
			default:
			}
		}

	case tickMsg:
		m.frame++
		if m.state == session.StateListening {
			m.elapsed = time.Since(m.listenStart).Seconds()
		}
		if m.notice != "" && time.Since(m.noticeAt) > noticeTTL {
			m.notice = ""
		}
		return m, tuiTick()

	case StateMsg:
		m.state = msg.State
		switch msg.State {
		case session.StateListening:
			m.listenStart = time.Now()
			m.elapsed = 0
			m.level = 0
			m.peak = 0
			m.speech = vad.StateWaiting
			m.partial = ""
			m.failure = ""
		case session.StateIdle:
			m.level = 0
			m.partial = ""
		}

	case LevelMsg:
		if m.state == session.StateListening {
			m.level = m.level*0.6 + msg.Level*0.4
			if msg.Level > m.peak {
				m.peak = msg.Level
			}
			m.speech = msg.Speech
		}

	case PartialMsg:
		m.partial = msg.Text

	case TranscriptMsg:
		m.msgCount++
		m.lastText = msg.Text
		m.noSpeech = false
		m.partial = ""

	case ResultMsg:
		m.lastMetrics = msg.Metrics
		m.rateLimit = msg.RateLimit
		if msg.NoSpeech {
			m.msgCount++
			m.lastText = "(no speech detected)"
			m.noSpeech = true
		}

	case NoticeMsg:
		m.notice = msg.Text
		m.noticeAt = time.Now()

	case FailureMsg:
		m.failure = msg.Text

	case ModeLineMsg:
		m.modeLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text

	case UpdateMsg:
		m.updateLine = "update available: " + msg.Version + " (run: sotto update)"

	case HybridHelpMsg:
		m.hybridHelp = msg.Enabled
	}
	return m, nil
}

var processingFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func (m tuiModel) statusLine() string {
	switch m.state {
	case session.StateListening:
		return styleListen.Render(fmt.Sprintf("● LISTENING %.1fs", m.elapsed))
	case session.StateProcessing:
		spin := processingFrames[m.frame%len(processingFrames)]
		return styleProcess.Render(spin + " transcribing...")
	case session.StateInjecting:
		return styleInject.Render("→ injecting")
	}
	return styleIdle.Render("○ STANDBY")
}

func (m tuiModel) meterLine() string {
	const cells = 28
	filled := int(m.level * cells)
	if filled > cells {
		filled = cells
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", cells-filled)

	style := styleMeterLow
	label := "waiting"
	switch m.speech {
	case vad.StateSpeech:
		style = styleMeterOn
		label = "speech"
	case vad.StateSilence:
		style = styleMeterSil
		label = "silence"
	}
	return style.Render(bar) + " " + styleFaint.Render(label)
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var lines []string
	lines = append(lines, "")
	lines = append(lines, " "+m.statusLine())

	if m.state == session.StateListening {
		lines = append(lines, " "+m.meterLine())
	} else {
		lines = append(lines, "")
	}

	if m.partial != "" {
		for _, l := range wrapText(m.partial, m.width-4) {
			lines = append(lines, "   "+stylePartial.Render(l))
		}
	}

	lines = append(lines, "")
	if m.lastText != "" {
		lines = append(lines, " "+styleTitle.Render(fmt.Sprintf("Last transcription (#%d)", m.msgCount)))
		textStyle := styleText
		if m.noSpeech {
			textStyle = styleNoSpeech
		}
		for _, l := range wrapText(m.lastText, m.width-4) {
			lines = append(lines, "   "+textStyle.Render(l))
		}
		for _, metric := range m.lastMetrics {
			lines = append(lines, "   "+styleMetrics.Render(metric))
		}
		if m.rateLimit != "" {
			lines = append(lines, "   "+styleFaint.Render(m.rateLimit))
		}
	} else {
		lines = append(lines, " "+styleFaint.Render("No transcriptions yet"))
	}

	if m.failure != "" {
		lines = append(lines, "")
		lines = append(lines, " "+styleFailure.Render("✗ "+m.failure))
	}
	if m.notice != "" {
		lines = append(lines, "")
		lines = append(lines, " "+styleNotice.Render(m.notice))
	}

	// Pin the info block to the bottom.
	info := m.infoLines()
	for len(lines) < m.height-len(info) {
		lines = append(lines, "")
	}
	lines = append(lines, info...)

	if len(lines) > m.height {
		lines = lines[:m.height]
	}
	return strings.Join(lines, "\n")
}

func (m tuiModel) infoLines() []string {
	var info []string
	if m.modeLine != "" {
		info = append(info, " "+styleFaint.Render(m.modeLine))
	}
	if m.deviceLine != "" {
		info = append(info, " "+styleFaint.Render(m.deviceLine))
	}
	if m.updateLine != "" {
		info = append(info, " "+styleNotice.Render(m.updateLine))
	}
	help := styleHelpBold.Render("Ctrl+Shift+Space") + styleHelp.Render(" to dictate")
	if m.hybridHelp {
		help += styleHelp.Render("  (tap toggles, hold talks)")
	}
	help += styleHelp.Render("  esc cancels")
	info = append(info, " "+help)
	info = append(info, " "+styleHelp.Render("sotto "+version))
	return info
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
