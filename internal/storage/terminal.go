package storage

import (
	"fmt"
	"io"
)

// Terminal is for displaying data on terminal.
type Terminal struct {
	out io.Writer
}

var terminal Terminal

// TerminalTimestamp is used as a format to display only the time.
const TerminalTimestamp = "15:04:05.999"

// InitTerminal initializes terminal display.
// Output writer is always os.Stdout except in case of testing where file will be set as output terminal.
func InitTerminal(out io.Writer) *Terminal {
	if terminal.out == nil {
		terminal = Terminal{
			out: out,
		}
	}
	return &terminal
}

// GetTerminal returns already prepared terminal instance.
func GetTerminal() *Terminal {
	return &terminal
}

// CommitBars batch outputs input bar data to terminal.
func (t *Terminal) CommitBars(data []BarRow) {
	for _, bar := range data {
		fmt.Fprintf(t.out, "%-5s%-30s%15f%15f%15f%15f%10d%15s\n\n", "Bar", bar.Key, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, bar.Timestamp.Local().Format(TerminalTimestamp))
	}
}

// CommitTicks batch outputs input tick data to terminal.
func (t *Terminal) CommitTicks(data []TickRow) {
	for _, tick := range data {
		fmt.Fprintf(t.out, "%-5s%-30s%15f%15f%15s\n\n", "Tick", tick.Key, tick.Bid, tick.Ask, tick.Timestamp.Local().Format(TerminalTimestamp))
	}
}
