package kb

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/signalsfoundry/mapengine/model"
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventLoaded EventType = iota
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type  EventType
	Stats Stats
}

// Stats summarises the loaded dataset.
type Stats struct {
	Countries int
	Borders   int // directed adjacency edges
}

// LookupResult is the outcome of a name lookup. Found is false when the
// name is not registered; Country is the zero value in that case.
type LookupResult struct {
	Country model.Country
	Found   bool
}

// KnowledgeBase is an in-memory, thread-safe store for countries and the
// directed adjacency graph between them. It is populated once by Load and
// is read-only afterwards.
type KnowledgeBase struct {
	mu sync.RWMutex

	loaded    bool
	countries map[string]model.Country
	neighbors map[string][]string // insertion order per source
	borders   int

	subs    map[int]func(Event)
	nextSub int
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		countries: make(map[string]model.Country),
		neighbors: make(map[string][]string),
		subs:      make(map[int]func(Event)),
	}
}

// Load parses the country records ("name,continent,tax") and the adjacency
// records ("country,neighbor1,neighbor2,...") and installs them. Names are
// used exactly as given. Either everything is installed or nothing is: on
// error the KB stays empty and Load may be retried.
func (kb *KnowledgeBase) Load(countryRecords, adjacencyRecords []string) error {
	countries := make(map[string]model.Country, len(countryRecords))
	for i, rec := range countryRecords {
		c, err := parseCountry(i+1, rec)
		if err != nil {
			return err
		}
		if _, exists := countries[c.Name]; exists {
			return &MalformedRecordError{Dataset: DatasetCountries, Index: i + 1, Record: rec, Reason: "duplicate country"}
		}
		countries[c.Name] = c
	}

	neighbors := make(map[string][]string, len(countries))
	seen := make(map[string]map[string]struct{}, len(countries))
	borders := 0
	for i, rec := range adjacencyRecords {
		fields := splitFields(rec)
		from := fields[0]
		if from == "" {
			return &MalformedRecordError{Dataset: DatasetAdjacencies, Index: i + 1, Record: rec, Reason: "missing country name"}
		}
		if _, ok := countries[from]; !ok {
			return &UnknownCountryError{Index: i + 1, Name: from}
		}
		if seen[from] == nil {
			seen[from] = make(map[string]struct{})
		}
		for _, to := range fields[1:] {
			switch {
			case to == "":
				return &MalformedRecordError{Dataset: DatasetAdjacencies, Index: i + 1, Record: rec, Reason: "empty neighbor name"}
			case to == from:
				return &MalformedRecordError{Dataset: DatasetAdjacencies, Index: i + 1, Record: rec, Reason: "country borders itself"}
			}
			if _, ok := countries[to]; !ok {
				return &UnknownCountryError{Index: i + 1, Name: to}
			}
			if _, dup := seen[from][to]; dup {
				continue
			}
			seen[from][to] = struct{}{}
			neighbors[from] = append(neighbors[from], to)
			borders++
		}
	}

	kb.mu.Lock()
	if kb.loaded {
		kb.mu.Unlock()
		return ErrAlreadyLoaded
	}
	kb.countries = countries
	kb.neighbors = neighbors
	kb.borders = borders
	kb.loaded = true
	event := Event{
		Type:  EventLoaded,
		Stats: Stats{Countries: len(countries), Borders: borders},
	}
	subs := make([]func(Event), 0, len(kb.subs))
	for _, fn := range kb.subs {
		subs = append(subs, fn)
	}
	kb.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// Get returns the country registered under name.
func (kb *KnowledgeBase) Get(name string) (model.Country, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	c, ok := kb.countries[name]
	if !ok {
		return model.Country{}, &CountryNotFoundError{Name: name}
	}
	return c, nil
}

// Lookup is Get without the error: a miss is reported through Found.
func (kb *KnowledgeBase) Lookup(name string) LookupResult {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	c, ok := kb.countries[name]
	return LookupResult{Country: c, Found: ok}
}

// NeighborsOf returns a copy of the countries directly reachable from name,
// in the order the adjacency records declared them. A registered country
// without neighbors yields an empty slice.
func (kb *KnowledgeBase) NeighborsOf(name string) ([]string, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	if _, ok := kb.countries[name]; !ok {
		return nil, &CountryNotFoundError{Name: name}
	}
	out := make([]string, len(kb.neighbors[name]))
	copy(out, kb.neighbors[name])
	return out, nil
}

// Countries returns a snapshot of all countries sorted by name.
func (kb *KnowledgeBase) Countries() []model.Country {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]model.Country, 0, len(kb.countries))
	for _, c := range kb.countries {
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// Borders returns every directed adjacency, grouped by source in name order
// and by declaration order within a source.
func (kb *KnowledgeBase) Borders() []model.Border {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	sources := make([]string, 0, len(kb.neighbors))
	for from := range kb.neighbors {
		sources = append(sources, from)
	}
	sort.Strings(sources)

	res := make([]model.Border, 0, kb.borders)
	for _, from := range sources {
		for _, to := range kb.neighbors[from] {
			res = append(res, model.Border{From: from, To: to})
		}
	}
	return res
}

// Stats reports how many countries and directed borders are loaded.
func (kb *KnowledgeBase) Stats() Stats {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return Stats{Countries: len(kb.countries), Borders: kb.borders}
}

// Loaded reports whether Load has completed successfully.
func (kb *KnowledgeBase) Loaded() bool {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.loaded
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextSub
	kb.nextSub++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}

func parseCountry(index int, rec string) (model.Country, error) {
	fields := splitFields(rec)
	if len(fields) != 3 {
		return model.Country{}, &MalformedRecordError{
			Dataset: DatasetCountries,
			Index:   index,
			Record:  rec,
			Reason:  "expected 3 fields, got " + strconv.Itoa(len(fields)),
		}
	}
	name, continent := fields[0], fields[1]
	if name == "" || continent == "" {
		return model.Country{}, &MalformedRecordError{Dataset: DatasetCountries, Index: index, Record: rec, Reason: "empty name or continent"}
	}
	tax, err := strconv.Atoi(fields[2])
	if err != nil {
		return model.Country{}, &MalformedRecordError{Dataset: DatasetCountries, Index: index, Record: rec, Reason: "tax is not an integer"}
	}
	if tax < 0 {
		return model.Country{}, &MalformedRecordError{Dataset: DatasetCountries, Index: index, Record: rec, Reason: "tax is negative"}
	}
	return model.Country{Name: name, Continent: continent, Tax: tax}, nil
}

func splitFields(rec string) []string {
	fields := strings.Split(rec, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}
