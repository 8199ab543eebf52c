package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mavryk-network/mvsign/apdu"
	"github.com/mavryk-network/mvsign/review"
	"github.com/mavryk-network/mvsign/settings"
	"github.com/mavryk-network/mvsign/wallet"
)

var (
	// adaptive colors look good in light/dark terminals
	borderColor = lipgloss.AdaptiveColor{Light: "#6C6CFF", Dark: "#6C6CFF"}
	chipColor   = lipgloss.AdaptiveColor{Light: "#000000", Dark: "#FFFFFF"}
	okColor     = lipgloss.AdaptiveColor{Light: "#006400", Dark: "#9FF29A"}
	warnColor   = lipgloss.AdaptiveColor{Light: "#8B5A00", Dark: "#FFD27A"}
	errColor    = lipgloss.AdaptiveColor{Light: "#8B0000", Dark: "#FF6B6B"}

	baseCell     = lipgloss.NewStyle().Padding(0, 1)
	chipStyle    = baseCell.MarginRight(1).Border(lipgloss.RoundedBorder()).BorderForeground(borderColor).Bold(true).Foreground(chipColor)
	chipOnStyle  = chipStyle.Foreground(okColor)
	chipOffStyle = chipStyle.Foreground(errColor)

	titleStyle  = lipgloss.NewStyle().Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(warnColor).Bold(true)
	screenStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(1, 2).
			Align(lipgloss.Center)
	helpStyle   = lipgloss.NewStyle().Faint(true)
	statusStyle = lipgloss.NewStyle().Faint(true)
)

// screenWidth matches the page width of the button profile so bodies
// render exactly as they paginate.
const screenWidth = 34

// refreshMsg is sent by the device notify hook whenever the pending
// prompt changes.
type refreshMsg struct{}

// exchangeMsg reports one completed wire exchange for the status line.
type exchangeMsg struct {
	Ins    string
	Status string
}

type model struct {
	dev    *wallet.Device
	store  *settings.Store
	listen string

	width    int
	last     string
	quitting bool
}

func newModel(dev *wallet.Device, store *settings.Store, listen string) model {
	return model{dev: dev, store: store, listen: listen, width: 80}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case refreshMsg, exchangeMsg:
		if ex, ok := msg.(exchangeMsg); ok {
			m.last = fmt.Sprintf("%s → %s", ex.Ins, ex.Status)
		}
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case "enter", "y":
			m.do(review.ActionConfirm)
		case "x", "n":
			m.do(review.ActionReject)
		case "right", "l", " ":
			m.do(review.ActionAdvance)
		case "s":
			m.do(review.ActionSkip)
		case "e":
			m.toggle(review.ActionToggleExpert)
		case "b":
			m.toggle(review.ActionToggleBlindsign)
		}
	}
	return m, nil
}

// do forwards one action to the pending prompt. With nothing pending
// there is nothing to act on.
func (m *model) do(a review.Action) {
	if err := m.dev.Do(a); err != nil {
		m.last = err.Error()
	}
}

// toggle flips a setting. Mid session the session owns the toggle so
// it can replan its screens, idle it goes straight to the store.
func (m *model) toggle(a review.Action) {
	if m.dev.Prompt() != nil {
		m.do(a)
		return
	}
	var err error
	if a == review.ActionToggleExpert {
		err = m.store.SetExpertMode(!m.store.ExpertMode())
	} else {
		err = m.store.SetBlindsign(!m.store.Blindsign())
	}
	if err != nil {
		m.last = err.Error()
	}
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("mvsign simulator"))
	b.WriteString("\n\n")
	b.WriteString(m.chips())
	b.WriteString("\n")
	b.WriteString(m.screen())
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(m.statusLine()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter accept • x reject • →/space next • s skip • e expert • b blind • q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m model) chips() string {
	snap := m.store.Snapshot()

	chip := func(label string, on bool) string {
		if on {
			return chipOnStyle.Render(label)
		}
		return chipOffStyle.Render(label)
	}
	row := []string{
		chip("expert", snap.ExpertMode),
		chip("blind", snap.Blindsign),
		chipStyle.Render(snap.Profile),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, row...)
}

// screen renders the device display: the pending prompt, or the idle
// face when no request is in flight.
func (m model) screen() string {
	style := screenStyle.Width(screenWidth + 4)

	p := m.dev.Prompt()
	if p == nil {
		return style.Render(titleStyle.Render("Mavryk") + "\n" + "ready")
	}

	title := titleStyle.Render(p.Title)
	if p.Kind == review.PromptWarning || p.Kind == review.PromptRisk {
		title = warnStyle.Render(p.Title)
	}
	body := p.Body
	if body == "" {
		body = " "
	}
	return style.Render(title + "\n" + body)
}

func (m model) statusLine() string {
	line := "listening on " + m.listen
	if m.last != "" {
		line += " • " + m.last
	}
	return line
}

// statusText is the short name an exchange gets on the status line.
func statusText(cmd apdu.Command, rsp apdu.Response) exchangeMsg {
	return exchangeMsg{Ins: cmd.Ins.String(), Status: rsp.Status.String()}
}
