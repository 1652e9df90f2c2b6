package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/breadwatch/internal/control"
)

func TestPrintLedger(t *testing.T) {
	var buf bytes.Buffer
	printLedger(&buf, control.LedgerView{Entries: []control.EntryView{
		{BlockNumber: 120, Time: "2024-03-01 10:00:00", Formatted: "1.5", TxHash: "0xbb"},
		{BlockNumber: 90, Time: "unknown time", Formatted: "2", TxHash: "0xaa"},
	}}, "BGBRD")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "AMOUNT (BGBRD)")
	assert.True(t, strings.HasPrefix(lines[1], "120"))
	assert.Contains(t, lines[1], "0xbb")
	assert.Contains(t, lines[2], "unknown time")
}

func TestPrintLedgerEmpty(t *testing.T) {
	var buf bytes.Buffer
	printLedger(&buf, control.LedgerView{}, "BGBRD")
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"balance", "events"} {
		cmd, _, err := rootCmd.Find([]string{name, "0x0"})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}
