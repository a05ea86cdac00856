// ABOUTME: Interactive operator shell for the control node
// ABOUTME: Parses stdin commands into gateway operations and renders the results

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/coven-control/internal/agent"
	"github.com/2389/coven-control/internal/config"
	"github.com/2389/coven-control/internal/gateway"
	"github.com/2389/coven-control/internal/keys"
	"github.com/2389/coven-control/internal/store"
)

// operator is the slice of *gateway.Gateway the shell drives.
type operator interface {
	ListAgents() []agent.Info
	SetFocus(name string) bool
	Focus() (string, bool)
	Rename(oldName, newName string) bool
	SendPing(name string) bool
	Pongs() int64
	Exchange(ctx context.Context, text string) (string, error)
	Port() int
	SetPort(port int)
	RSABitLength() int
	SetRSABitLength(bits int)
	Restart() bool
	PublicKey() keys.PublicKey
	History(ctx context.Context, limit int) ([]*store.Event, error)
}

var _ operator = (*gateway.Gateway)(nil)

const defaultReplyTimeout = 30 * time.Second

type shell struct {
	op           operator
	in           io.Reader
	out          io.Writer
	replyTimeout time.Duration
}

func newShell(op operator, in io.Reader, out io.Writer) *shell {
	return &shell{op: op, in: in, out: out, replyTimeout: defaultReplyTimeout}
}

// run reads commands until exit, EOF or ctx is cancelled. It returns nil
// after exit or cancellation and io.EOF when the input runs out.
func (s *shell) run(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		scanner := bufio.NewScanner(s.in)
		scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	s.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-scanErr:
			if err == nil {
				return io.EOF
			}
			return err
		case line := <-lines:
			if s.execute(ctx, line) {
				return nil
			}
			s.prompt()
		}
	}
}

func (s *shell) prompt() {
	cyan := color.New(color.FgCyan)
	if name, ok := s.op.Focus(); ok {
		cyan.Fprintf(s.out, "%s> ", name)
		return
	}
	cyan.Fprint(s.out, "> ")
}

// execute runs one input line and reports whether the shell should exit.
func (s *shell) execute(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	fields := strings.Fields(line)
	args := fields[1:]

	switch fields[0] {
	case "exit", "quit":
		return true
	case "help":
		s.printHelp()
	case "list", "ls":
		s.list()
	case "focus":
		s.focus(args)
	case "rename":
		s.rename(args)
	case "ping":
		s.ping(args)
	case "port":
		s.port(args)
	case "bits":
		s.bits(args)
	case "restart":
		s.restart()
	case "key":
		s.key()
	case "history":
		s.history(ctx, args)
	default:
		s.exchange(ctx, line)
	}
	return false
}

func (s *shell) printHelp() {
	fmt.Fprintln(s.out, "Commands:")
	fmt.Fprintln(s.out, "  list                 List connected agents")
	fmt.Fprintln(s.out, "  focus [name]         Focus an agent, or clear the focus")
	fmt.Fprintln(s.out, "  rename OLD NEW       Rename an agent")
	fmt.Fprintln(s.out, "  ping NAME            Send a ping")
	fmt.Fprintln(s.out, "  port [n]             Show or set the listen port (applied on restart)")
	fmt.Fprintln(s.out, "  bits [n]             Show or set the server key size (applied on restart)")
	fmt.Fprintln(s.out, "  restart              Restart the listener")
	fmt.Fprintln(s.out, "  key                  Show the server public key")
	fmt.Fprintln(s.out, "  history [n]          Show recent journal events")
	fmt.Fprintln(s.out, "  exit                 Stop the control node")
	fmt.Fprintln(s.out, "Any other text is sent to the focused agent.")
}

func (s *shell) list() {
	agents := s.op.ListAgents()
	if len(agents) == 0 {
		color.New(color.FgYellow).Fprintln(s.out, "No agents connected")
		return
	}

	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  NAME\tADDRESS\tBITS\tFINGERPRINT\tCONNECTED")
	fmt.Fprintln(w, "  ----\t-------\t----\t-----------\t---------")
	for _, a := range agents {
		marker := " "
		if a.Focused {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s\t%s\t%d\t%s\t%s\n",
			marker, a.Name, a.RemoteAddr, a.KeyBits, a.Fingerprint, a.ConnectedAt.Format("Jan 02 15:04:05"))
	}
	w.Flush()
}

func (s *shell) focus(args []string) {
	if len(args) == 0 {
		s.op.SetFocus("")
		fmt.Fprintln(s.out, "Focus cleared")
		return
	}
	s.op.SetFocus(args[0])
	if name, ok := s.op.Focus(); ok {
		color.New(color.FgGreen).Fprintf(s.out, "Focused %s\n", name)
		return
	}
	color.New(color.FgYellow).Fprintf(s.out, "No agent named %s, focus cleared\n", args[0])
}

func (s *shell) rename(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.out, "Usage: rename OLD NEW")
		return
	}
	if !s.op.Rename(args[0], args[1]) {
		color.New(color.FgRed).Fprintf(s.out, "Cannot rename %s to %s\n", args[0], args[1])
		return
	}
	color.New(color.FgGreen).Fprintf(s.out, "Renamed %s to %s\n", args[0], args[1])
}

func (s *shell) ping(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: ping NAME")
		return
	}
	if !s.op.SendPing(args[0]) {
		color.New(color.FgRed).Fprintf(s.out, "Cannot ping %s\n", args[0])
		return
	}
	fmt.Fprintf(s.out, "Ping sent to %s (%d pongs so far)\n", args[0], s.op.Pongs())
}

func (s *shell) port(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(s.out, "Port: %d\n", s.op.Port())
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 || n > 65535 {
		color.New(color.FgRed).Fprintf(s.out, "Invalid port %q\n", args[0])
		return
	}
	s.op.SetPort(n)
	fmt.Fprintf(s.out, "Port set to %d, restart to apply\n", n)
}

func (s *shell) bits(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(s.out, "Server key bits: %d\n", s.op.RSABitLength())
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < config.MinKeyBits {
		color.New(color.FgRed).Fprintf(s.out, "Invalid bit length %q\n", args[0])
		return
	}
	s.op.SetRSABitLength(n)
	fmt.Fprintf(s.out, "Server key bits set to %d, restart to apply\n", n)
}

func (s *shell) restart() {
	if !s.op.Restart() {
		color.New(color.FgRed).Fprintln(s.out, "Restart failed")
		return
	}
	color.New(color.FgGreen).Fprintf(s.out, "Listening on port %d\n", s.op.Port())
}

func (s *shell) key() {
	pub := s.op.PublicKey()
	fmt.Fprintf(s.out, "Bits:        %d\n", pub.Bits())
	fmt.Fprintf(s.out, "Fingerprint: %s\n", pub.Fingerprint())
	fmt.Fprintf(s.out, "e:           %s\n", pub.E)
	fmt.Fprintf(s.out, "n:           %s\n", pub.N)
}

func (s *shell) history(ctx context.Context, args []string) {
	limit := 20
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			color.New(color.FgRed).Fprintf(s.out, "Invalid limit %q\n", args[0])
			return
		}
		limit = n
	}

	events, err := s.op.History(ctx, limit)
	if errors.Is(err, gateway.ErrNoJournal) {
		color.New(color.FgYellow).Fprintln(s.out, "Journal disabled (set database.path)")
		return
	}
	if err != nil {
		color.New(color.FgRed).Fprintf(s.out, "Reading history: %v\n", err)
		return
	}
	if len(events) == 0 {
		fmt.Fprintln(s.out, "No events")
		return
	}

	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  TIME\tAGENT\tKIND\tTEXT")
	fmt.Fprintln(w, "  ----\t-----\t----\t----")
	for _, e := range events {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", e.Timestamp.Local().Format("15:04:05"), e.AgentName, e.Kind, truncate(e.Text, 48))
	}
	w.Flush()
}

func (s *shell) exchange(ctx context.Context, text string) {
	ctx, cancel := context.WithTimeout(ctx, s.replyTimeout)
	defer cancel()

	reply, err := s.op.Exchange(ctx, text)
	switch {
	case errors.Is(err, gateway.ErrNoFocus):
		color.New(color.FgYellow).Fprintln(s.out, "No agent focused; try 'focus NAME' or 'help'")
	case errors.Is(err, context.DeadlineExceeded):
		color.New(color.FgYellow).Fprintln(s.out, "No reply yet")
	case err != nil:
		color.New(color.FgRed).Fprintf(s.out, "Error: %v\n", err)
	default:
		fmt.Fprintln(s.out, reply)
	}
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
