package journal

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"
)

var csvHeader = []string{"id", "time", "source", "pair", "atr", "tp_percent", "tp_pips"}

// CSV appends records to a single file. It is safe for concurrent use.
type CSV struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *csv.Writer
}

func NewCSV(path string) (*CSV, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	w := csv.NewWriter(f)
	if st.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			_ = f.Close()
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	return &CSV{path: path, f: f, w: w}, nil
}

func (j *CSV) Record(_ context.Context, r Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.w.Write([]string{
		r.ID,
		r.Time.UTC().Format(time.RFC3339Nano),
		r.Source,
		r.Pair,
		ff(r.ATR),
		ff(r.TPPercent),
		ff(r.TPPips),
	})
	if err != nil {
		return err
	}
	j.w.Flush()
	return j.w.Error()
}

// List re-reads the file; rows are appended in time order so the
// newest are at the end.
func (j *CSV) List(_ context.Context, limit int) ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = len(csvHeader)

	var all []Record
	for line := 0; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 0 {
			continue
		}
		r, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", j.path, line+1, err)
		}
		all = append(all, r)
	}

	out := make([]Record, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, all[i])
	}
	return out, nil
}

func (j *CSV) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.w.Flush()
	if err := j.w.Error(); err != nil {
		return err
	}
	return j.f.Close()
}

func parseRow(row []string) (Record, error) {
	t, err := time.Parse(time.RFC3339Nano, row[1])
	if err != nil {
		return Record{}, err
	}
	var nums [3]float64
	for i, s := range row[4:7] {
		if nums[i], err = strconv.ParseFloat(s, 64); err != nil {
			return Record{}, err
		}
	}
	return Record{
		ID:        row[0],
		Time:      t,
		Source:    row[2],
		Pair:      row[3],
		ATR:       nums[0],
		TPPercent: nums[1],
		TPPips:    nums[2],
	}, nil
}

func ff(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
