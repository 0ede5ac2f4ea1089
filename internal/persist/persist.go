// Package persist reads and writes the subscription registry to the
// line-oriented file format chaosc.py's __save_subscriptions and
// __load_subscriptions use: one "host=H;port=P;label=L\n" line per
// subscriber, UTF-8, no header, no escaping.
package persist

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/renameio/v2"

	"github.com/oschub/chaosc/internal/registry"
)

// Subscription is a single parsed line: the original host/port a subscriber
// registered with, and its label.
type Subscription struct {
	Host  string
	Port  int
	Label string
}

// DefaultPath returns the fallback subscription file path used when the
// hub's configuration does not name one explicitly: a date-suffixed file
// under the user's chaosc config directory, matching the original's
// "~/.chaosc/targets-YYYYMMDD.conf" default.
func DefaultPath(now time.Time) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("persist: resolving home directory: %w", err)
	}
	return filepath.Join(home, ".chaosc", fmt.Sprintf("targets-%s.conf", now.Format("20060102"))), nil
}

// Save writes every entry in snapshot to path, one line per subscriber,
// replacing any existing file contents. It writes through a temporary file
// and renames atomically (github.com/google/renameio/v2), with an advisory
// file lock (github.com/gofrs/flock) held for the duration so a concurrent
// reader never observes a half-written file and two writers cannot
// interleave.
func Save(path string, snapshot []registry.Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("persist: creating directory for %s: %w", path, err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("persist: locking %s: %w", path, err)
	}
	defer lock.Unlock()

	t, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("persist: creating temp file for %s: %w", path, err)
	}
	defer t.Cleanup()

	w := bufio.NewWriter(t)
	for _, e := range snapshot {
		if _, err := fmt.Fprintf(w, "host=%s;port=%d;label=%s\n", e.Record.OriginalHost, e.Record.OriginalPort, e.Record.Label); err != nil {
			return fmt.Errorf("persist: writing %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("persist: flushing %s: %w", path, err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("persist: replacing %s: %w", path, err)
	}
	return nil
}

// Load reads path line by line and returns the parsed subscriptions. A
// missing file is not an error; it yields a nil slice. Lines that fail to
// parse are reported via onError and skipped, rather than aborting the
// whole load, matching the original's per-line log-and-skip behavior.
func Load(path string, onError func(line string, err error)) ([]Subscription, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persist: opening %s: %w", path, err)
	}
	defer f.Close()

	var subs []Subscription
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		sub, err := parseLine(line)
		if err != nil {
			if onError != nil {
				onError(line, err)
			}
			continue
		}
		subs = append(subs, sub)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("persist: reading %s: %w", path, err)
	}
	return subs, nil
}

// parseLine parses one "host=H;port=P;label=L" line into a Subscription.
func parseLine(line string) (Subscription, error) {
	fields := strings.Split(line, ";")
	var sub Subscription
	var haveHost, havePort, haveLabel bool

	for _, f := range fields {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			return Subscription{}, fmt.Errorf("persist: malformed field %q", f)
		}
		switch key {
		case "host":
			sub.Host, haveHost = value, true
		case "port":
			port, err := strconv.Atoi(value)
			if err != nil {
				return Subscription{}, fmt.Errorf("persist: malformed port %q: %w", value, err)
			}
			sub.Port, havePort = port, true
		case "label":
			sub.Label, haveLabel = value, true
		default:
			return Subscription{}, fmt.Errorf("persist: unknown field %q", key)
		}
	}
	if !haveHost || !havePort || !haveLabel {
		return Subscription{}, fmt.Errorf("persist: line missing required field: %q", line)
	}
	return sub, nil
}
