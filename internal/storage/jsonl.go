package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"hookScope/internal/model"
)

// JsonlStorage writes log records to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutLogBatch appends a batch of log records as JSON lines.
func (s *JsonlStorage) PutLogBatch(logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendLines(s.path, len(logs), func(i int) (interface{}, error) {
		return logs[i], nil
	})
}

// JsonlOutcomeStorage writes hook outcome records to a JSONL file.
type JsonlOutcomeStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlOutcomeStorage(path string) *JsonlOutcomeStorage {
	return &JsonlOutcomeStorage{path: path}
}

// PutOutcomeBatch appends a batch of outcome records as JSON lines.
func (s *JsonlOutcomeStorage) PutOutcomeBatch(outcomes []model.OutcomeRecord) error {
	if len(outcomes) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendLines(s.path, len(outcomes), func(i int) (interface{}, error) {
		return outcomes[i], nil
	})
}

func appendLines(path string, n int, at func(int) (interface{}, error)) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for i := 0; i < n; i++ {
		record, err := at(i)
		if err != nil {
			return err
		}
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
