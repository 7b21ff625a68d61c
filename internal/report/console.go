package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
)

// Console writes log lines through zerolog and tables/progress to out.
type Console struct {
	log      zerolog.Logger
	out      io.Writer
	verbose  bool
	total    int
	done     int
	lastDraw int
}

func NewConsole(logger zerolog.Logger, out io.Writer, verbose bool) *Console {
	return &Console{log: logger, out: out, verbose: verbose}
}

func (c *Console) Info(msg string) {
	c.log.Info().Msg(msg)
}

func (c *Console) Warning(msg string) {
	c.log.Warn().Msg(msg)
}

// Record lines are per-row detail and only shown in verbose mode.
func (c *Console) Record(msg string) {
	if c.verbose {
		c.log.Info().Msg(msg)
		return
	}
	c.log.Debug().Msg(msg)
}

func (c *Console) Table(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
}

func (c *Console) ProgressStart(total int) {
	c.total, c.done, c.lastDraw = total, 0, -1
	c.draw()
}

func (c *Console) ProgressAdvance() {
	c.done++
	c.draw()
}

func (c *Console) ProgressFinish() {
	if c.total == 0 {
		return
	}
	c.done = c.total
	c.lastDraw = -1
	c.draw()
	fmt.Fprintln(c.out)
	c.total = 0
}

const barWidth = 30

// draw repaints only when the whole percentage changes.
func (c *Console) draw() {
	if c.total <= 0 {
		return
	}
	done := min(c.done, c.total)
	pct := done * 100 / c.total
	if pct == c.lastDraw {
		return
	}
	c.lastDraw = pct

	filled := done * barWidth / c.total
	fmt.Fprintf(c.out, "\r[%s%s] %3d%% %d/%d",
		strings.Repeat("=", filled), strings.Repeat(" ", barWidth-filled), pct, done, c.total)
}
