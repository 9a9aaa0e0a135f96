package alerts

import (
	"encoding/csv"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// CSVTimeLayout is timestamp format of the audit log
const CSVTimeLayout = "2006-01-02 15:04:05"

var csvHeader = []string{"Timestamp", "Type", "Message"}

// CSVLog is append-only audit log with columns Timestamp,Type,Message.
//
// File is opened per write in append mode and is never truncated. Each row is flushed
// and synced to disk before Append returns.
type CSVLog struct {
	mu   sync.Mutex
	path string
}

// NewCSVLog creates log at path. Header is written immediately if file is absent or empty.
func NewCSVLog(path string) (*CSVLog, error) {
	log := &CSVLog{path: path}
	if err := log.Ensure(); err != nil {
		return nil, err
	}
	return log, nil
}

// Path returns file path
func (log *CSVLog) Path() string {
	return log.path
}

// Ensure creates file with header if it is absent or empty
func (log *CSVLog) Ensure() error {
	log.mu.Lock()
	defer log.mu.Unlock()
	return log.write(nil)
}

// Append writes a single row
func (log *CSVLog) Append(event Event) error {
	log.mu.Lock()
	defer log.mu.Unlock()
	row := []string{
		event.Timestamp.Local().Format(CSVTimeLayout),
		event.Kind.LogType(),
		event.Message,
	}
	return log.write(row)
}

// Close is no-op since file is not held open between writes
func (log *CSVLog) Close() error {
	return nil
}

func (log *CSVLog) write(row []string) error {
	file, err := os.OpenFile(log.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "Can't open event log '%s'", log.path)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return errors.Wrapf(err, "Can't stat event log '%s'", log.path)
	}
	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := writer.Write(csvHeader); err != nil {
			file.Close()
			return errors.Wrap(err, "Can't write header")
		}
	}
	if row != nil {
		if err := writer.Write(row); err != nil {
			file.Close()
			return errors.Wrap(err, "Can't write row")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return errors.Wrap(err, "Can't flush event log")
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return errors.Wrap(err, "Can't sync event log")
	}
	return errors.Wrap(file.Close(), "Can't close event log")
}
