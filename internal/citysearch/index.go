package citysearch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Entry is one gazetteer city.
type Entry struct {
	Name       string `json:"name"`
	Country    string `json:"country"`
	Population int64  `json:"-"`
}

// Index answers city autocomplete queries from an in-memory gazetteer. It is
// built once at startup and never mutated, so lookups need no locking.
type Index struct {
	global    []Entry
	byCountry map[string][]Entry
}

var ErrEmptyQuery = errors.New("empty_query")

const DefaultLimit = 10

// LoadCSV builds the index from a gazetteer CSV with name,country,population
// columns. A header row is skipped when present.
func LoadCSV(path string, log *zap.Logger) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gazetteer: %w", err)
	}
	defer f.Close()

	index, err := parseCSV(f)
	if err != nil {
		return nil, err
	}
	log.Info("city autocomplete index built",
		zap.String("path", path),
		zap.Int("cities", len(index.global)),
	)
	return index, nil
}

func parseCSV(r io.Reader) (*Index, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	entries := make([]Entry, 0, 32768)
	first := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read gazetteer: %w", err)
		}
		if len(record) < 2 {
			continue
		}
		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(record[0]), "name") {
				continue
			}
		}

		entry := Entry{
			Name:    strings.TrimSpace(record[0]),
			Country: strings.ToUpper(strings.TrimSpace(record[1])),
		}
		if entry.Name == "" || entry.Country == "" {
			continue
		}
		if len(record) > 2 {
			if pop, err := strconv.ParseInt(strings.TrimSpace(record[2]), 10, 64); err == nil {
				entry.Population = pop
			}
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Population > entries[j].Population
	})

	index := &Index{
		global:    entries,
		byCountry: make(map[string][]Entry),
	}
	for _, entry := range entries {
		index.byCountry[entry.Country] = append(index.byCountry[entry.Country], entry)
	}
	return index, nil
}

// Query returns up to limit cities matching the query prefix, optionally
// scoped to one country. Cities whose full name starts with the query rank
// before word-prefix matches; each group keeps population order.
func (ix *Index) Query(query, country string, limit int) ([]Entry, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 || limit > 100 {
		limit = DefaultLimit
	}

	candidates := ix.global
	if country != "" {
		candidates = ix.byCountry[strings.ToUpper(strings.TrimSpace(country))]
	}

	exact := make([]Entry, 0, limit)
	partial := make([]Entry, 0, limit)
	for _, entry := range candidates {
		name := strings.ToLower(entry.Name)
		switch {
		case strings.HasPrefix(name, q):
			exact = append(exact, entry)
		case wordPrefixMatch(name, q):
			partial = append(partial, entry)
		}
		if len(exact) >= limit {
			break
		}
	}

	results := exact
	for _, entry := range partial {
		if len(results) >= limit {
			break
		}
		results = append(results, entry)
	}
	return results, nil
}

func wordPrefixMatch(name, q string) bool {
	for _, word := range strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '-' || r == '\''
	}) {
		if strings.HasPrefix(word, q) {
			return true
		}
	}
	return false
}
