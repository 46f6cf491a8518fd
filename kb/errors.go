package kb

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedRecord = errors.New("malformed record")
	ErrUnknownCountry  = errors.New("adjacency references unknown country")
	ErrCountryNotFound = errors.New("country not found")
	ErrAlreadyLoaded   = errors.New("knowledge base already loaded")
)

// Dataset names used in load errors.
const (
	DatasetCountries   = "countries"
	DatasetAdjacencies = "adjacencies"
)

// MalformedRecordError reports a dataset line that could not be parsed.
type MalformedRecordError struct {
	Dataset string
	Index   int // 1-based position in the record sequence
	Record  string
	Reason  string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("%s record %d: %v: %s (%q)", e.Dataset, e.Index, ErrMalformedRecord, e.Reason, e.Record)
}

func (e *MalformedRecordError) Unwrap() error { return ErrMalformedRecord }

// UnknownCountryError reports an adjacency record naming a country that was
// never registered, either as the source or as one of its neighbors.
type UnknownCountryError struct {
	Index int
	Name  string
}

func (e *UnknownCountryError) Error() string {
	return fmt.Sprintf("%s record %d: %v: %q", DatasetAdjacencies, e.Index, ErrUnknownCountry, e.Name)
}

func (e *UnknownCountryError) Unwrap() error { return ErrUnknownCountry }

// CountryNotFoundError is returned by queries for names absent from the registry.
type CountryNotFoundError struct {
	Name string
}

func (e *CountryNotFoundError) Error() string {
	return fmt.Sprintf("%v: %q", ErrCountryNotFound, e.Name)
}

func (e *CountryNotFoundError) Unwrap() error { return ErrCountryNotFound }
