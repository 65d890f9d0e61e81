package gamelog

import (
	"bufio"
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Reader tails the newest VRChat output log file and appends classified
// lines to the history database. The game recreates the file on every
// launch, so the watcher also picks up newly created logs and switches
// over to them.
type Reader struct {
	dir string
	db  *DB
}

func NewReader(dir string, db *DB) *Reader {
	return &Reader{dir: dir, db: db}
}

// classify maps a raw game log line to a history entry type. Lines that
// don't match any known prefix are skipped.
func classify(line string) (string, bool) {
	switch {
	case strings.Contains(line, "[Behaviour] OnPlayerJoined"):
		return "OnPlayerJoined", true
	case strings.Contains(line, "[Behaviour] OnPlayerLeft"):
		return "OnPlayerLeft", true
	case strings.Contains(line, "[Video Playback] ERROR:"):
		return "Error", true
	}
	return "", false
}

// newestLog returns the most recently modified output_log file in dir.
func newestLog(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "output_log_*.txt"))
	if err != nil || len(matches) == 0 {
		return "", err
	}
	sort.Slice(matches, func(i, j int) bool {
		fi, errI := os.Stat(matches[i])
		fj, errJ := os.Stat(matches[j])
		if errI != nil || errJ != nil {
			return matches[i] < matches[j]
		}
		return fi.ModTime().After(fj.ModTime())
	})
	return matches[0], nil
}

// Run watches the log directory until ctx is cancelled. Tailing starts at
// the end of the current file; only lines written while we run are logged.
func (r *Reader) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return err
	}

	current, err := newestLog(r.dir)
	if err != nil {
		log.Printf("GAMELOG: no log file yet: %v", err)
	}

	var file *os.File
	var offset int64
	open := func(path string, fromStart bool) {
		if file != nil {
			file.Close()
			file = nil
		}
		if path == "" {
			return
		}
		f, err := os.Open(path)
		if err != nil {
			log.Printf("GAMELOG: open %s: %v", path, err)
			return
		}
		offset = 0
		if !fromStart {
			if end, err := f.Seek(0, io.SeekEnd); err == nil {
				offset = end
			}
		}
		file = f
		current = path
		log.Printf("GAMELOG: tailing %s", path)
	}

	open(current, false)
	defer func() {
		if file != nil {
			file.Close()
		}
	}()

	drain := func() {
		if file != nil {
			offset = r.drainFrom(file, offset)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(evt.Name)
			if !strings.HasPrefix(name, "output_log_") {
				continue
			}
			switch {
			case evt.Has(fsnotify.Create):
				// Game restarted with a fresh log; read it from the top.
				open(evt.Name, true)
				drain()
			case evt.Has(fsnotify.Write) && evt.Name == current:
				drain()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("GAMELOG: watch error: %v", err)
		}
	}
}

// drainFrom reads appended lines starting at offset and appends classified
// entries to the history log. Returns the new offset.
func (r *Reader) drainFrom(f *os.File, offset int64) int64 {
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		offset += int64(len(sc.Bytes())) + 1
		entryType, ok := classify(line)
		if !ok {
			continue
		}
		if err := r.db.Append(entryType, line, "", ""); err != nil {
			log.Printf("GAMELOG: append failed: %v", err)
		}
	}
	return offset
}
