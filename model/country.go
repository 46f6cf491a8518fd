package model

// Country is a named territory with the continent it belongs to and the
// tax charged to travellers entering it.
// Values are created once while loading a dataset and never mutated.
type Country struct {
	Name      string
	Continent string
	Tax       int // charged on entry, never negative
}

// Border is a declared, directed adjacency between two countries.
// The reverse direction only exists if the dataset declares it too.
type Border struct {
	From string
	To   string
}
