// Package telemetry appends balance snapshots to per-strategy CSV
// history files.
package telemetry

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"pivotbot/tools/log"
)

// Recorder appends rows to
// <root>/<exchange>/<strategy>/bot_data_history.csv. The file gains a
// header on creation and is otherwise append-only.
type Recorder struct {
	path         string
	withLeverage bool
	now          func() time.Time
}

func NewRecorder(root, exchangeName, strategyName string, withLeverage bool) *Recorder {
	return &Recorder{
		path:         filepath.Join(root, exchangeName, strategyName, "bot_data_history.csv"),
		withLeverage: withLeverage,
		now:          time.Now,
	}
}

// Path returns the history file location.
func (r *Recorder) Path() string {
	return r.path
}

// Snapshot appends one balance row. Leverage is recorded only for
// futures strategies.
func (r *Recorder) Snapshot(btcBalance, usdtBalance float64, leverage int) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}

	_, statErr := os.Stat(r.path)
	fresh := os.IsNotExist(statErr)

	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if fresh {
		header := []string{"timestamp", "time", "btc_balance", "usdt_balance"}
		if r.withLeverage {
			header = append(header, "leverage")
		}
		if err := w.Write(header); err != nil {
			return err
		}
	}

	now := r.now().UTC()
	row := []string{
		strconv.FormatInt(now.Unix(), 10),
		now.Format(time.RFC3339),
		fmt.Sprintf("%.8f", btcBalance),
		fmt.Sprintf("%.8f", usdtBalance),
	}
	if r.withLeverage {
		row = append(row, strconv.Itoa(leverage))
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	log.Infof("balance snapshot: %.8f BTC / %.2f USDT", btcBalance, usdtBalance)
	return nil
}
