package report_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/vasiliy-maslov/order-maintenance/internal/report"
)

func TestConsole_Table(t *testing.T) {
	var out bytes.Buffer
	c := report.NewConsole(zerolog.Nop(), &out, false)

	c.Table([]string{"Status", "Orders"}, [][]string{{"pending", "3"}, {"delivering", "12"}})

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"Status      Orders",
		"pending     3",
		"delivering  12",
	}, lines)
}

func TestConsole_Progress(t *testing.T) {
	var out bytes.Buffer
	c := report.NewConsole(zerolog.Nop(), &out, false)

	c.ProgressStart(4)
	for range 4 {
		c.ProgressAdvance()
	}
	c.ProgressFinish()

	assert.Contains(t, out.String(), "  0% 0/4")
	assert.Contains(t, out.String(), " 50% 2/4")
	assert.True(t, strings.HasSuffix(out.String(), "100% 4/4\n"))
}

func TestConsole_LogLines(t *testing.T) {
	var logs, out bytes.Buffer
	logger := zerolog.New(&logs).Level(zerolog.InfoLevel)

	report.NewConsole(logger, &out, false).Record("hidden detail")
	assert.Empty(t, logs.String())

	c := report.NewConsole(logger, &out, true)
	c.Record("order changed")
	c.Warning("odd status")
	c.Info("done")

	assert.Contains(t, logs.String(), `"level":"info","message":"order changed"`)
	assert.Contains(t, logs.String(), `"level":"warn","message":"odd status"`)
	assert.Contains(t, logs.String(), `"message":"done"`)
	assert.Empty(t, out.String())
}
