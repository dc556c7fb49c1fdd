package control

import (
	"bufio"
	"context"
	"os"
	"strings"
	"time"

	"pivotbot/tools/log"
)

// KillSwitch polls a text file for an operator stop request. Lines of
// the form "switch : <0|1>" not starting with '#' set the state; the
// last such line wins. Polarity: 1 engages the switch and stops the
// daemon. A missing file leaves the daemon running.
type KillSwitch struct {
	Path string
}

// Engaged reports whether the file currently requests a stop.
func (k KillSwitch) Engaged() (bool, error) {
	file, err := os.Open(k.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer file.Close()

	engaged := false
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) != "switch" {
			continue
		}
		engaged = strings.TrimSpace(parts[1]) == "1"
	}
	return engaged, scanner.Err()
}

// Write sets the switch state, replacing the file.
func (k KillSwitch) Write(engaged bool) error {
	state := "0"
	if engaged {
		state = "1"
	}
	content := "# 1 stops the trading daemon, 0 lets it run\nswitch : " + state + "\n"
	return os.WriteFile(k.Path, []byte(content), 0o644)
}

// Watch polls every second and closes the returned channel once the
// switch engages or ctx is done.
func (k KillSwitch) Watch(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				engaged, err := k.Engaged()
				if err != nil {
					log.Errorf("kill switch %s: %v", k.Path, err)
					continue
				}
				if engaged {
					log.Warnf("kill switch engaged (%s)", k.Path)
					return
				}
			}
		}
	}()
	return done
}
