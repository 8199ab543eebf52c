// The simulator hosts the signing device in a terminal: the screen and
// buttons render as a TUI while a TCP listener takes command frames,
// one hex line per frame. It is the loopback bridge with a human in
// the loop.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"
	"github.com/urfave/cli/v3"

	"github.com/mavryk-network/mvsign/apdu"
	"github.com/mavryk-network/mvsign/audit"
	"github.com/mavryk-network/mvsign/keychain"
	"github.com/mavryk-network/mvsign/logging"
	"github.com/mavryk-network/mvsign/review"
	"github.com/mavryk-network/mvsign/settings"
	"github.com/mavryk-network/mvsign/wallet"
)

const envMnemonic = "MVSIGN_MNEMONIC"

func main() {
	root := &cli.Command{
		Name:  "mvsign-simulator",
		Usage: "run the signing device as a TUI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Value: "127.0.0.1:9999", Usage: "TCP address for command frames"},
			&cli.StringFlag{Name: "settings", Value: "mvsign-settings.toml", Usage: "settings file"},
			&cli.StringFlag{Name: "audit", Value: "mvsign-audit.db", Usage: "audit trail database"},
			&cli.StringFlag{Name: "passphrase", Usage: "optional seed passphrase"},
		},
		Action: runSimulator,
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		slog.Error("simulator failed", "error", err.Error())
		os.Exit(1)
	}
}

func runSimulator(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mnemonic, err := obtainMnemonic()
	if err != nil {
		return err
	}

	// The TUI owns the terminal, so logs go to a file or nowhere.
	var log *slog.Logger
	if os.Getenv(logging.EnvFile) != "" {
		var envErr error
		if log, envErr = logging.NewFromEnv(); envErr != nil {
			log.Warn("logging environment", "error", envErr.Error())
		}
	} else {
		log = logging.New(logging.WithWriter(io.Discard))
	}
	log = log.With("component", "simulator")

	store, err := settings.Open(cmd.String("settings"), settings.WithLogger(log))
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Watch(); err != nil {
		return err
	}

	trail, err := audit.Open(cmd.String("audit"), audit.WithLogger(log))
	if err != nil {
		return err
	}
	defer trail.Close()

	profile := review.ProfileButton
	if store.Profile() == settings.ProfileTouch {
		profile = review.ProfileTouch
	}

	ln, err := net.Listen("tcp", cmd.String("listen"))
	if err != nil {
		return fmt.Errorf("simulator: listen: %w", err)
	}
	defer ln.Close()

	var prog *tea.Program
	dev := wallet.New(keychain.New(mnemonic, cmd.String("passphrase")),
		wallet.WithLogger(log),
		wallet.WithProfile(profile),
		wallet.WithSettings(store),
		wallet.WithRecorder(trail.Hook()),
		wallet.WithNotify(func() {
			if prog != nil {
				prog.Send(refreshMsg{})
			}
		}),
	)

	prog = tea.NewProgram(newModel(dev, store, ln.Addr().String()), tea.WithAltScreen())

	go serveAPDU(ln, dev, log, func(cmd apdu.Command, rsp apdu.Response) {
		prog.Send(statusText(cmd, rsp))
	})
	go func() {
		<-ctx.Done()
		prog.Quit()
	}()

	_, err = prog.Run()
	return err
}

// --- masked mnemonic prompt ---

type passModel struct {
	ti      textinput.Model
	done    bool
	aborted bool
}

func newPassModel(prompt string) passModel {
	ti := textinput.New()
	ti.Prompt = prompt + ": "
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.Focus()
	return passModel{ti: ti}
}

func (m passModel) Init() tea.Cmd { return textinput.Blink }

func (m passModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.aborted = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.ti, cmd = m.ti.Update(msg)
	return m, cmd
}

func (m passModel) View() string {
	if m.done || m.aborted {
		return ""
	}
	return "\n" + m.ti.View() + "\n"
}

func isTTY(f *os.File) bool {
	return term.IsTerminal(f.Fd())
}

// obtainMnemonic takes the seed phrase from the environment, falling
// back to a masked prompt on a terminal.
func obtainMnemonic() (string, error) {
	if v := strings.TrimSpace(os.Getenv(envMnemonic)); v != "" {
		return v, nil
	}

	if !isTTY(os.Stdout) || !isTTY(os.Stdin) {
		return "", fmt.Errorf("simulator: set %s or run on a terminal", envMnemonic)
	}

	res, err := tea.NewProgram(newPassModel("Mnemonic")).Run()
	if err != nil {
		return "", err
	}
	pm := res.(passModel)
	if pm.aborted {
		return "", errors.New("simulator: aborted")
	}
	v := strings.TrimSpace(pm.ti.Value())
	if v == "" {
		return "", errors.New("simulator: empty mnemonic")
	}
	return v, nil
}
