package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"swapRouter/internal/model"
)

// JsonlStore persists pools to a JSONL file. Appends are cheap; reads
// deduplicate by address keeping the latest record, so re-discovery simply
// appends updated state.
type JsonlStore struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStore(path string) *JsonlStore {
	return &JsonlStore{path: path}
}

// SavePools appends a batch of pool records as JSON lines.
func (s *JsonlStore) SavePools(_ context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open pool file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, pool := range pools {
		line, err := json.Marshal(pool)
		if err != nil {
			return fmt.Errorf("marshal pool: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write pool: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush pool file: %w", err)
	}

	return nil
}

// LoadPools reads all pool records, deduplicated by normalized address with
// the last record winning.
func (s *JsonlStore) LoadPools(_ context.Context) ([]model.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open pool file: %w", err)
	}
	defer file.Close()

	byAddress := make(map[string]model.Pool)
	order := make([]string, 0)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var pool model.Pool
		if err := json.Unmarshal(line, &pool); err != nil {
			return nil, fmt.Errorf("parse pool line: %w", err)
		}
		key := model.NormalizeAddress(pool.Address)
		if _, ok := byAddress[key]; !ok {
			order = append(order, key)
		}
		byAddress[key] = pool
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read pool file: %w", err)
	}

	pools := make([]model.Pool, 0, len(order))
	for _, key := range order {
		pools = append(pools, byAddress[key])
	}
	return pools, nil
}

// LoadPoolsForTokens filters LoadPools down to pools touching any of the
// given token addresses.
func (s *JsonlStore) LoadPoolsForTokens(ctx context.Context, tokens []string) ([]model.Pool, error) {
	pools, err := s.LoadPools(ctx)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		wanted[model.NormalizeAddress(token)] = struct{}{}
	}

	out := make([]model.Pool, 0)
	for _, pool := range pools {
		_, ok0 := wanted[model.NormalizeAddress(pool.Token0)]
		_, ok1 := wanted[model.NormalizeAddress(pool.Token1)]
		if ok0 || ok1 {
			out = append(out, pool)
		}
	}
	return out, nil
}
