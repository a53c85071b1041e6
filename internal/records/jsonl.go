// Package records holds the canonical Store implementations: an append-only
// JSONL file store for DRY_RUN and a postgres store for LIVE.
package records

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tradepulse/internal/interfaces"
	"tradepulse/internal/types"
)

// FileStore appends records as JSON lines under dir, one file per day.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

var _ interfaces.Store = (*FileStore)(nil)

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) AppendTradeRecord(ctx context.Context, rec types.TradeRecord) error {
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	return s.appendLine(filepath.Join(s.dir, "trades", dailyName(rec.Time)), rec)
}

func (s *FileStore) AppendLearningSample(ctx context.Context, sample types.LearningSample) error {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	return s.appendLine(filepath.Join(s.dir, "samples", dailyName(sample.Timestamp)), sample)
}

func (s *FileStore) appendLine(path string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

func (s *FileStore) LoadStrategyAggregate(ctx context.Context, strategyID string) (*types.StrategyPerformance, error) {
	aggs, err := s.LoadAllAggregates(ctx)
	if err != nil {
		return nil, err
	}
	for i := range aggs {
		if aggs[i].StrategyID == strategyID {
			return &aggs[i], nil
		}
	}
	return nil, nil
}

// LoadAllAggregates recomputes strategy aggregates from the sample files.
// Samples are append-only and the aggregation is commutative, so file order
// does not matter.
func (s *FileStore) LoadAllAggregates(ctx context.Context) ([]types.StrategyPerformance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byStrategy := map[string]*types.StrategyPerformance{}
	root := filepath.Join(s.dir, "samples")

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			// No samples written yet is not an error.
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".jsonl" {
			return nil
		}
		return s.foldSampleFile(path, byStrategy)
	})
	if err != nil {
		return nil, err
	}

	out := make([]types.StrategyPerformance, 0, len(byStrategy))
	for _, agg := range byStrategy {
		out = append(out, *agg)
	}
	return out, nil
}

func (s *FileStore) foldSampleFile(path string, byStrategy map[string]*types.StrategyPerformance) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var sample types.LearningSample
		if err := json.Unmarshal(scanner.Bytes(), &sample); err != nil {
			continue
		}
		agg := byStrategy[sample.StrategyID]
		if agg == nil {
			agg = &types.StrategyPerformance{StrategyID: sample.StrategyID}
			byStrategy[sample.StrategyID] = agg
		}
		n := float64(agg.TotalSignals)
		agg.TotalSignals++
		if sample.ExecutionSuccess {
			agg.SuccessfulSignals++
		}
		agg.Accuracy = float64(agg.SuccessfulSignals) / float64(agg.TotalSignals)
		agg.AvgConfidence = (agg.AvgConfidence*n + sample.SignalConfidence) / (n + 1)
		agg.AvgPnL = (agg.AvgPnL*n + sample.PnL) / (n + 1)
	}
	return scanner.Err()
}

// CompressOlder gzips daily files older than retentionDays.
func (s *FileStore) CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(s.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".jsonl" {
			return nil
		}
		info, err := os.Stat(p)
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		return compressFile(p)
	})
}

func compressFile(p string) error {
	gz := p + ".gz"
	if _, err := os.Stat(gz); err == nil {
		return os.Remove(p)
	}

	in, err := os.Open(p)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(gz, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(p)
}

func dailyName(t time.Time) string {
	return t.UTC().Format("2006-01-02") + ".jsonl"
}
