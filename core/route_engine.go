package core

import (
	"fmt"

	"github.com/signalsfoundry/mapengine/model"
)

// Graph is the read-only view of a loaded dataset that route computations
// need. *kb.KnowledgeBase satisfies it.
type Graph interface {
	Get(name string) (model.Country, error)
	NeighborsOf(name string) ([]string, error)
}

// RouteStatus classifies the outcome of PlanRoute.
type RouteStatus int

const (
	RouteFound RouteStatus = iota
	RouteSameCountry
	RouteNotFound
)

func (s RouteStatus) String() string {
	switch s {
	case RouteFound:
		return "found"
	case RouteSameCountry:
		return "same_country"
	case RouteNotFound:
		return "not_found"
	default:
		return fmt.Sprintf("RouteStatus(%d)", int(s))
	}
}

// RoutePlan is the analysed result of a route query.
type RoutePlan struct {
	Source      string
	Destination string
	Status      RouteStatus
	Path        []string // empty unless Status == RouteFound
	Continents  []string
	Tax         int
}

// Hops is the number of borders crossed along the path.
func (p RoutePlan) Hops() int {
	if len(p.Path) < 2 {
		return 0
	}
	return len(p.Path) - 1
}

// ShortestPath performs a breadth-first search from source to destination
// and returns the visited countries [source, ..., destination].
//
// Neighbors are expanded in the order the graph reports them, so among
// paths of equal length the first one discovered in FIFO order wins.
// It returns [source] when both ends are equal and an empty path when the
// destination is unreachable. Errors are only returned for unregistered
// endpoints or graph lookup failures.
func ShortestPath(g Graph, source, destination string) ([]string, error) {
	if _, err := g.Get(source); err != nil {
		return nil, err
	}
	if _, err := g.Get(destination); err != nil {
		return nil, err
	}
	if source == destination {
		return []string{source}, nil
	}

	queue := []string{source}
	visited := map[string]bool{source: true}
	prev := make(map[string]string)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current == destination {
			path := make([]string, 0)
			for node := destination; ; node = prev[node] {
				path = append(path, node)
				if node == source {
					break
				}
			}
			// Reverse path (currently [dst, ..., src])
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path, nil
		}

		neighbors, err := g.NeighborsOf(current)
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", current, err)
		}
		for _, neighbor := range neighbors {
			if visited[neighbor] {
				continue
			}
			visited[neighbor] = true
			prev[neighbor] = current
			queue = append(queue, neighbor)
		}
	}

	return nil, nil // No path found
}

// ContinentsVisited returns the distinct continents of the countries on path,
// in order of first appearance along the path.
func ContinentsVisited(g Graph, path []string) ([]string, error) {
	continents := make([]string, 0)
	seen := make(map[string]struct{})
	for _, name := range path {
		c, err := g.Get(name)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[c.Continent]; dup {
			continue
		}
		seen[c.Continent] = struct{}{}
		continents = append(continents, c.Continent)
	}
	return continents, nil
}

// TotalTax sums the entry tax of every country on path except the first:
// travellers pay when crossing into a country, not where they start.
func TotalTax(g Graph, path []string) (int, error) {
	total := 0
	for i := 1; i < len(path); i++ {
		c, err := g.Get(path[i])
		if err != nil {
			return 0, err
		}
		total += c.Tax
	}
	return total, nil
}

// PlanRoute resolves a route query end to end. Equal endpoints short-circuit
// to RouteSameCountry without searching; an unreachable destination yields
// RouteNotFound with an empty path.
func PlanRoute(g Graph, source, destination string) (RoutePlan, error) {
	plan := RoutePlan{Source: source, Destination: destination}

	if source == destination {
		if _, err := g.Get(source); err != nil {
			return RoutePlan{}, err
		}
		plan.Status = RouteSameCountry
		return plan, nil
	}

	path, err := ShortestPath(g, source, destination)
	if err != nil {
		return RoutePlan{}, err
	}
	if len(path) == 0 {
		plan.Status = RouteNotFound
		return plan, nil
	}

	continents, err := ContinentsVisited(g, path)
	if err != nil {
		return RoutePlan{}, err
	}
	tax, err := TotalTax(g, path)
	if err != nil {
		return RoutePlan{}, err
	}

	plan.Status = RouteFound
	plan.Path = path
	plan.Continents = continents
	plan.Tax = tax
	return plan, nil
}
