package core

import (
	"bufio"
	"context"
	"embed"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/mapengine/kb"
)

//go:embed data/countries.csv data/adjacencies.csv
var defaultData embed.FS

const (
	defaultCountriesFile   = "data/countries.csv"
	defaultAdjacenciesFile = "data/adjacencies.csv"

	// MaxRecordSize bounds a single record line.
	MaxRecordSize = 1 << 20
)

// Dataset holds the raw records of the two input files, already split into
// lines. Parsing happens in kb.KnowledgeBase.Load.
type Dataset struct {
	Countries   []string
	Adjacencies []string
}

// DatasetSummary is a small summary of what was loaded.
// It's mainly useful for logging from main().
type DatasetSummary struct {
	Source    string
	Countries int
	Borders   int
}

// ReadRecords reads one record per line from r. Blank lines and lines
// starting with '#' are skipped; a leading UTF-8 BOM and trailing CR are
// stripped. A line longer than MaxRecordSize fails with bufio.ErrTooLong.
func ReadRecords(r io.Reader) ([]string, error) {
	var records []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxRecordSize)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		records = append(records, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ReadRecords: after record %d: %w", len(records), err)
	}
	return records, nil
}

// LoadDatasetFiles reads the countries and adjacencies files concurrently.
func LoadDatasetFiles(ctx context.Context, countriesPath, adjacenciesPath string) (Dataset, error) {
	var ds Dataset
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := readRecordsFile(ctx, countriesPath)
		ds.Countries = recs
		return err
	})
	g.Go(func() error {
		recs, err := readRecordsFile(ctx, adjacenciesPath)
		ds.Adjacencies = recs
		return err
	})
	if err := g.Wait(); err != nil {
		return Dataset{}, err
	}
	return ds, nil
}

// DefaultDataset returns the bundled world map.
func DefaultDataset() (Dataset, error) {
	var ds Dataset
	for _, item := range []struct {
		path string
		dst  *[]string
	}{
		{defaultCountriesFile, &ds.Countries},
		{defaultAdjacenciesFile, &ds.Adjacencies},
	} {
		f, err := defaultData.Open(item.path)
		if err != nil {
			return Dataset{}, fmt.Errorf("DefaultDataset: %w", err)
		}
		recs, err := ReadRecords(f)
		f.Close()
		if err != nil {
			return Dataset{}, fmt.Errorf("DefaultDataset: %s: %w", item.path, err)
		}
		*item.dst = recs
	}
	return ds, nil
}

// LoadDataset installs ds into store and returns a summary of what was
// loaded. Any load error is returned unchanged so callers can classify it
// with errors.Is against the kb sentinels.
func LoadDataset(store *kb.KnowledgeBase, source string, ds Dataset) (*DatasetSummary, error) {
	if store == nil {
		return nil, fmt.Errorf("LoadDataset: store is nil")
	}
	if err := store.Load(ds.Countries, ds.Adjacencies); err != nil {
		return nil, err
	}
	st := store.Stats()
	return &DatasetSummary{
		Source:    source,
		Countries: st.Countries,
		Borders:   st.Borders,
	}, nil
}

func readRecordsFile(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %q: %w", path, err)
	}
	defer f.Close()

	recs, err := ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("read dataset %q: %w", path, err)
	}
	return recs, nil
}
