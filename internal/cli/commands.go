// Package cli implements the interactive console.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/streamtap-project/streamtap/internal/db"
	"github.com/streamtap-project/streamtap/internal/events"
	"github.com/streamtap-project/streamtap/internal/live"
)

const defaultRecent = 10

// Controller is the connection the console drives.
type Controller interface {
	State() live.State
	Stats() map[events.EventType]uint64
	Connect(ctx context.Context, roomID string) (live.State, error)
	Disconnect()
}

// RecentStore serves recorded events.
type RecentStore interface {
	Recent(kind string, limit int) ([]db.Record, error)
}

// CLI provides an interactive command-line interface.
type CLI struct {
	conn     Controller
	store    RecentStore
	eventBus *events.EventBus

	in  io.Reader
	out io.Writer
}

// NewCLI creates a console on stdin and stdout. store may be nil.
func NewCLI(conn Controller, store RecentStore, eventBus *events.EventBus) *CLI {
	return &CLI{
		conn:     conn,
		store:    store,
		eventBus: eventBus,
		in:       os.Stdin,
		out:      os.Stdout,
	}
}

// SetIO replaces the console input and output.
func (c *CLI) SetIO(in io.Reader, out io.Writer) {
	c.in = in
	c.out = out
}

// Start runs the command loop until ctx is done, input ends, or quit.
func (c *CLI) Start(ctx context.Context) {
	fmt.Fprintln(c.out, "\nstreamtap console ready. Type 'help' for available commands.")

	lines := make(chan string)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
	}()

	for {
		fmt.Fprint(c.out, "streamtap> ")
		var line string
		select {
		case <-ctx.Done():
			return
		case l, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		if cmd == "quit" || cmd == "exit" || cmd == "q" {
			fmt.Fprintln(c.out, "Shutting down...")
			c.eventBus.Emit(ctx, events.Event{Type: events.EventShutdown, Source: "cli"})
			return
		}
		if err := c.execute(ctx, cmd, parts[1:]); err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
		}
	}
}

// execute processes a single console command.
func (c *CLI) execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		c.printStatus()
	case "stats":
		c.printStats()
	case "recent", "r":
		return c.printRecent(args)
	case "connect":
		return c.cmdConnect(ctx, args)
	case "disconnect":
		c.conn.Disconnect()
		fmt.Fprintln(c.out, "Disconnected.")
	default:
		fmt.Fprintf(c.out, "Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

func (c *CLI) printHelp() {
	fmt.Fprintln(c.out, `
  status               Show the connection state
  stats                Show signal counters
  recent [n] [type]    Show the newest recorded events
  connect [room_id]    Connect, resolving the room unless given
  disconnect           Close the connection
  quit                 Shut down
  help                 Show this help message`)
}

func (c *CLI) printStatus() {
	state := c.conn.State()

	tw := c.table([]string{"Field", "Value"})
	tw.Append([]string{"Status", state.Status.String()})
	tw.Append([]string{"Unique ID", dash(state.UniqueID)})
	tw.Append([]string{"Room ID", dash(state.RoomID)})
	tw.Append([]string{"Transport", dash(state.Transport)})
	tw.Append([]string{"Websocket", strconv.FormatBool(state.UpgradedToWebsocket)})
	uptime := "-"
	if state.ConnectedAt != nil {
		uptime = time.Since(*state.ConnectedAt).Round(time.Second).String()
	}
	tw.Append([]string{"Uptime", uptime})
	tw.Append([]string{"Gifts", strconv.Itoa(len(state.AvailableGifts))})
	tw.Render()
}

func (c *CLI) printStats() {
	stats := c.conn.Stats()
	types := make([]string, 0, len(stats))
	for t := range stats {
		types = append(types, string(t))
	}
	sort.Strings(types)

	tw := c.table([]string{"Signal", "Count"})
	for _, t := range types {
		tw.Append([]string{t, strconv.FormatUint(stats[events.EventType(t)], 10)})
	}
	tw.Render()
}

func (c *CLI) printRecent(args []string) error {
	if c.store == nil {
		return fmt.Errorf("event recording is disabled")
	}
	limit := defaultRecent
	kind := ""
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid count %q", args[0])
		}
		limit = n
	}
	if len(args) > 1 {
		kind = args[1]
	}

	records, err := c.store.Recent(kind, limit)
	if err != nil {
		return err
	}

	tw := c.table([]string{"ID", "Time", "Type", "Room", "Body"})
	for _, r := range records {
		tw.Append([]string{
			strconv.FormatInt(r.ID, 10),
			r.CreatedAt.Format("15:04:05"),
			r.Type,
			dash(r.RoomID),
			truncate(string(r.Body), 60),
		})
	}
	tw.Render()
	return nil
}

func (c *CLI) cmdConnect(ctx context.Context, args []string) error {
	roomID := ""
	if len(args) > 0 {
		roomID = args[0]
	}
	state, err := c.conn.Connect(ctx, roomID)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Connected to room %s over %s.\n", state.RoomID, state.Transport)
	return nil
}

func (c *CLI) table(header []string) *tablewriter.Table {
	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader(header)
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	return tw
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
