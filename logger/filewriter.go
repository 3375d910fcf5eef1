package logger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// DailyFileWriter is an io.Writer that writes to a log file that rotates
// daily. File names are {service}_{date}.log. Rotation happens on the first
// write of a new day; a background goroutine also checks hourly. Safe for
// concurrent use.
type DailyFileWriter struct {
	service    string
	dir        string
	mu         sync.RWMutex
	file       *os.File
	currDate   string
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	closed     int32
	lastRotate time.Time
}

// NewDailyFileWriter creates a DailyFileWriter that writes to the given
// directory with files named {service}_{date}.log. The directory must
// already exist.
//
// Parameters:
//   - service: Service name used in log file names
//   - logDir: Directory path for log files
//
// Returns:
//   - The new DailyFileWriter, or an error if the initial file could not be opened
func NewDailyFileWriter(service string, logDir string) (*DailyFileWriter, error) {
	ctx, cancel := context.WithCancel(context.Background())
	w := &DailyFileWriter{
		service: service,
		dir:     logDir,
		ctx:     ctx,
		cancel:  cancel,
	}

	if err := w.rotate(); err != nil {
		cancel()
		return nil, fmt.Errorf("initial rotation failed: %w", err)
	}

	w.wg.Add(1)
	go w.autoRotate()
	return w, nil
}

// Close stops the background rotator and closes the current log file.
// Subsequent writes return an error. It is safe to call multiple times.
func (w *DailyFileWriter) Close() error {
	if !atomic.CompareAndSwapInt32(&w.closed, 0, 1) {
		return nil
	}

	w.cancel()
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		return err
	}

	return nil
}

// autoRotate runs in a goroutine and performs hourly rotation checks.
func (w *DailyFileWriter) autoRotate() {
	defer w.wg.Done()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if atomic.LoadInt32(&w.closed) == 1 {
				return
			}

			w.mu.Lock()
			_ = w.rotateInternal()
			w.mu.Unlock()
		}
	}
}

// rotate switches to a new log file if the date has changed.
func (w *DailyFileWriter) rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rotateInternal()
}

// rotateInternal performs the actual file rotation; caller must hold w.mu.
func (w *DailyFileWriter) rotateInternal() error {
	if atomic.LoadInt32(&w.closed) == 1 {
		return fmt.Errorf("writer is closed")
	}

	now := time.Now()
	date := now.Format("2006-01-02")

	if date == w.currDate && w.file != nil &&
		now.Sub(w.lastRotate) < time.Minute {
		return nil
	}

	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}

	filename := filepath.Join(w.dir, fmt.Sprintf("%s_%s.log", w.service, date))
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", filename, err)
	}

	w.file = file
	w.currDate = date
	w.lastRotate = now
	return nil
}

// Write implements io.Writer. It rotates to a new file when the date changes
// and writes p to the current log file.
func (w *DailyFileWriter) Write(p []byte) (int, error) {
	if atomic.LoadInt32(&w.closed) == 1 {
		return 0, fmt.Errorf("writer is closed")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.needsRotation() {
		if err := w.rotateInternal(); err != nil {
			return 0, fmt.Errorf("rotation failed: %w", err)
		}
	}

	if w.file == nil {
		return 0, fmt.Errorf("log file is not open")
	}

	return w.file.Write(p)
}

// needsRotation reports whether the log file should be rotated; caller must
// hold w.mu.
func (w *DailyFileWriter) needsRotation() bool {
	if w.file == nil {
		return true
	}

	return time.Now().Format("2006-01-02") != w.currDate
}

// CurrentLogFile returns the full path of the log file currently being
// written to, or an empty string if no file is open.
func (w *DailyFileWriter) CurrentLogFile() string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.file == nil {
		return ""
	}

	return filepath.Join(w.dir, fmt.Sprintf("%s_%s.log", w.service, w.currDate))
}
