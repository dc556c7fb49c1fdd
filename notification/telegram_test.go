package notification

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pivotbot/tools/log"
)

func digestFixture(t *testing.T) (*telegram, string, string) {
	t.Helper()
	dir := t.TempDir()
	now := time.Date(2026, time.August, 24, 9, 0, 0, 0, time.UTC)
	bot := &telegram{
		logDir:  dir,
		logName: "adt",
		now:     func() time.Time { return now },
	}
	return bot, dir, "2026-08-23"
}

func writeLog(t *testing.T, dir, yesterday string, lines []string) {
	t.Helper()
	path := log.DailyFile(dir, "adt", yesterday)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

func TestDigestMissingLog(t *testing.T) {
	bot, _, _ := digestFixture(t)
	assert.Contains(t, bot.digest(), "No log for 2026-08-23")
}

func TestDigestHeartbeat(t *testing.T) {
	bot, dir, yesterday := digestFixture(t)
	writeLog(t, dir, yesterday, []string{
		`time="2026-08-23T10:00:00Z" level=info msg="balance snapshot"`,
		`time="2026-08-23T11:00:00Z" level=warning msg="rate limited"`,
	})

	assert.Contains(t, bot.digest(), "no errors logged")
}

func TestDigestForwardsErrors(t *testing.T) {
	bot, dir, yesterday := digestFixture(t)
	writeLog(t, dir, yesterday, []string{
		`time="2026-08-23T10:00:00Z" level=info msg="ok"`,
		`time="2026-08-23T11:00:00Z" level=error msg="manage XRP/USDT: order error"`,
		`time="2026-08-23T12:00:00Z" level=error msg="entry DOGE/USDT: insufficient funds"`,
	})

	digest := bot.digest()
	assert.Contains(t, digest, "2 error(s)")
	assert.Contains(t, digest, "XRP/USDT")
	assert.Contains(t, digest, "DOGE/USDT")
}

func TestDigestCapsErrorLines(t *testing.T) {
	bot, dir, yesterday := digestFixture(t)
	lines := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		lines = append(lines, `level=error msg="boom"`)
	}
	writeLog(t, dir, yesterday, lines)

	digest := bot.digest()
	assert.Contains(t, digest, "10 error(s)")
	assert.Equal(t, digestErrorLimit, strings.Count(digest, "boom"))
}
