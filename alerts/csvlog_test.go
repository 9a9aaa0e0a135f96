package alerts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestCSVLogCreatesHeader(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "alerts_log.csv")
	_, err := NewCSVLog(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Timestamp,Type,Message"}, readLines(t, path))
}

func TestCSVLogAppendRows(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "alerts_log.csv")
	log, err := NewCSVLog(path)
	require.NoError(t, err)

	ts := time.Date(2024, 3, 1, 9, 5, 7, 0, time.Local)
	session := uuid.New()
	require.NoError(t, log.Append(newEvent(session, ts, KindEntry, "Entry detected", 0)))
	require.NoError(t, log.Append(newEvent(session, ts, KindBurstAlert, "BURST ALERT: 5 entries in last 10s", 5)))
	require.NoError(t, log.Close())

	assert.Equal(t, []string{
		"Timestamp,Type,Message",
		"2024-03-01 09:05:07,ENTRY,Entry detected",
		"2024-03-01 09:05:07,ALERT,BURST ALERT: 5 entries in last 10s",
	}, readLines(t, path))
}

func TestCSVLogNeverTruncates(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "alerts_log.csv")
	first, err := NewCSVLog(path)
	require.NoError(t, err)
	require.NoError(t, first.Append(newEvent(uuid.New(), time.Now(), KindExit, "Exit detected", 0)))

	// Second session reuses the file without a second header
	second, err := NewCSVLog(path)
	require.NoError(t, err)
	require.NoError(t, second.Append(newEvent(uuid.New(), time.Now(), KindEntry, "Entry detected", 0)))

	lines := readLines(t, path)
	require.Len(t, lines, 3)
	assert.Equal(t, "Timestamp,Type,Message", lines[0])
	assert.Contains(t, lines[1], ",EXIT,")
	assert.Contains(t, lines[2], ",ENTRY,")
}

func TestCSVLogWriteFailure(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "alerts_log.csv")
	log, err := NewCSVLog(path)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))
	err = log.Append(newEvent(uuid.New(), time.Now(), KindEntry, "Entry detected", 0))
	assert.Error(t, err)
}

func TestMultiLogAttemptsEverySink(t *testing.T) {
	t.Parallel()
	broken := &memoryLog{fail: os.ErrPermission}
	healthy := &memoryLog{}
	multi := NewMultiLog(broken, nil, healthy)
	err := multi.Append(newEvent(uuid.New(), time.Now(), KindEntry, "Entry detected", 0))
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, []Kind{KindEntry}, healthy.kinds())
	assert.NoError(t, multi.Close())
}

func TestParseKind(t *testing.T) {
	t.Parallel()
	for _, kind := range []Kind{KindEntry, KindExit, KindBurstAlert, KindOccupancyAlert} {
		parsed, err := ParseKind(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}
	_, err := ParseKind("nope")
	assert.Error(t, err)
	assert.Equal(t, "ALERT", KindOccupancyAlert.LogType())
	assert.True(t, KindBurstAlert.IsAlert())
	assert.False(t, KindExit.IsAlert())
}
