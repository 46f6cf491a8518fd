package core

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/signalsfoundry/mapengine/kb"
)

func newKB(t *testing.T, countries, adjacencies []string) *kb.KnowledgeBase {
	t.Helper()
	store := kb.NewKnowledgeBase()
	if err := store.Load(countries, adjacencies); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return store
}

func balkansKB(t *testing.T) *kb.KnowledgeBase {
	return newKB(t,
		[]string{"Albania,Europe,10", "Montenegro,Europe,15", "Greece,Europe,20"},
		[]string{"Albania,Montenegro", "Montenegro,Albania,Greece"},
	)
}

func TestShortestPath_Balkans(t *testing.T) {
	g := balkansKB(t)

	path, err := ShortestPath(g, "Albania", "Greece")
	if err != nil {
		t.Fatalf("ShortestPath error: %v", err)
	}
	want := []string{"Albania", "Montenegro", "Greece"}
	if !reflect.DeepEqual(path, want) {
		t.Fatalf("ShortestPath = %v, want %v", path, want)
	}

	continents, err := ContinentsVisited(g, path)
	if err != nil {
		t.Fatalf("ContinentsVisited error: %v", err)
	}
	if !reflect.DeepEqual(continents, []string{"Europe"}) {
		t.Fatalf("ContinentsVisited = %v, want [Europe]", continents)
	}

	tax, err := TotalTax(g, path)
	if err != nil {
		t.Fatalf("TotalTax error: %v", err)
	}
	if tax != 35 {
		t.Fatalf("TotalTax = %d, want 35", tax)
	}
}

func TestShortestPath_SameCountry(t *testing.T) {
	g := balkansKB(t)

	path, err := ShortestPath(g, "Albania", "Albania")
	if err != nil {
		t.Fatalf("ShortestPath error: %v", err)
	}
	if !reflect.DeepEqual(path, []string{"Albania"}) {
		t.Fatalf("ShortestPath(A, A) = %v, want [Albania]", path)
	}
	if tax, _ := TotalTax(g, path); tax != 0 {
		t.Fatalf("TotalTax([A]) = %d, want 0", tax)
	}
	continents, _ := ContinentsVisited(g, path)
	if !reflect.DeepEqual(continents, []string{"Europe"}) {
		t.Fatalf("ContinentsVisited([A]) = %v, want [Europe]", continents)
	}
}

func TestShortestPath_Disconnected(t *testing.T) {
	g := newKB(t,
		[]string{"A,X,1", "B,Y,2", "Iceland,Z,3"},
		[]string{"A,B", "B,A"},
	)

	path, err := ShortestPath(g, "A", "Iceland")
	if err != nil {
		t.Fatalf("ShortestPath error: %v", err)
	}
	if len(path) != 0 {
		t.Fatalf("expected empty path, got %v", path)
	}
	if tax, _ := TotalTax(g, path); tax != 0 {
		t.Fatalf("TotalTax([]) = %d, want 0", tax)
	}
	continents, _ := ContinentsVisited(g, path)
	if len(continents) != 0 {
		t.Fatalf("ContinentsVisited([]) = %v, want empty", continents)
	}
}

func TestShortestPath_DirectedEdgesOnly(t *testing.T) {
	g := newKB(t, []string{"A,X,1", "B,X,1"}, []string{"A,B"})

	if path, _ := ShortestPath(g, "A", "B"); len(path) != 2 {
		t.Fatalf("A->B should be reachable, got %v", path)
	}
	if path, _ := ShortestPath(g, "B", "A"); len(path) != 0 {
		t.Fatalf("B->A should be unreachable without a declared edge, got %v", path)
	}
}

func TestShortestPath_UnknownEndpoint(t *testing.T) {
	g := balkansKB(t)

	for _, tc := range [][2]string{{"Atlantis", "Greece"}, {"Albania", "Atlantis"}} {
		_, err := ShortestPath(g, tc[0], tc[1])
		if !errors.Is(err, kb.ErrCountryNotFound) {
			t.Fatalf("ShortestPath(%s, %s) error = %v, want ErrCountryNotFound", tc[0], tc[1], err)
		}
	}
}

func TestShortestPath_TieBreakFollowsNeighborOrder(t *testing.T) {
	countries := []string{"S,X,1", "L,X,1", "R,X,1", "D,X,1"}

	g1 := newKB(t, countries, []string{"S,L,R", "L,D", "R,D"})
	path, _ := ShortestPath(g1, "S", "D")
	if !reflect.DeepEqual(path, []string{"S", "L", "D"}) {
		t.Fatalf("with S,L,R order got %v, want [S L D]", path)
	}

	g2 := newKB(t, countries, []string{"S,R,L", "L,D", "R,D"})
	path, _ = ShortestPath(g2, "S", "D")
	if !reflect.DeepEqual(path, []string{"S", "R", "D"}) {
		t.Fatalf("with S,R,L order got %v, want [S R D]", path)
	}
}

func TestShortestPath_HandlesCycles(t *testing.T) {
	g := newKB(t,
		[]string{"A,X,1", "B,X,1", "C,X,1", "D,X,1"},
		[]string{"A,B", "B,C", "C,A", "C,D"},
	)
	path, err := ShortestPath(g, "A", "D")
	if err != nil {
		t.Fatalf("ShortestPath error: %v", err)
	}
	if !reflect.DeepEqual(path, []string{"A", "B", "C", "D"}) {
		t.Fatalf("ShortestPath = %v", path)
	}
}

func TestShortestPath_OptimalOnFixtureGraphs(t *testing.T) {
	fixtures := map[string][]string{
		"ladder": {
			"N0,N1,N5", "N1,N0,N2,N6", "N2,N1,N3,N7", "N3,N2,N4,N8", "N4,N3,N9",
			"N5,N0,N6", "N6,N5,N1,N7", "N7,N6,N2,N8", "N8,N7,N3,N9", "N9,N8,N4",
		},
		"one way ring with chords": {
			"N0,N1", "N1,N2", "N2,N3", "N3,N4", "N4,N5", "N5,N6", "N6,N7",
			"N7,N8", "N8,N9", "N9,N0", "N2,N7", "N5,N1",
		},
		"two components": {
			"N0,N1,N2", "N1,N3", "N2,N3,N4", "N3,N4",
			"N5,N6", "N6,N7", "N7,N8,N9", "N9,N5",
		},
	}
	countries := make([]string, 10)
	for i := range countries {
		countries[i] = fmt.Sprintf("N%d,C%d,%d", i, i%3, i+1)
	}

	for name, adjacencies := range fixtures {
		t.Run(name, func(t *testing.T) {
			g := newKB(t, countries, adjacencies)
			for i := range 10 {
				src := fmt.Sprintf("N%d", i)
				dist := referenceDistances(t, g, src)
				for j := range 10 {
					dst := fmt.Sprintf("N%d", j)
					path, err := ShortestPath(g, src, dst)
					if err != nil {
						t.Fatalf("ShortestPath(%s, %s) error: %v", src, dst, err)
					}
					want, reachable := dist[dst]
					if !reachable {
						if len(path) != 0 {
							t.Fatalf("ShortestPath(%s, %s) = %v, want no route", src, dst, path)
						}
						continue
					}
					if len(path)-1 != want {
						t.Fatalf("ShortestPath(%s, %s) has %d hops, want %d (%v)", src, dst, len(path)-1, want, path)
					}
					assertValidPath(t, g, path, src, dst)
				}
			}
		})
	}
}

func TestRepeatedQueriesAreIdempotent(t *testing.T) {
	g := defaultKB(t)

	first, err := PlanRoute(g, "Argentina", "Japan")
	if err != nil {
		t.Fatalf("PlanRoute error: %v", err)
	}
	for range 5 {
		again, err := PlanRoute(g, "Argentina", "Japan")
		if err != nil {
			t.Fatalf("PlanRoute error: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("PlanRoute not idempotent: %+v vs %+v", first, again)
		}
	}
}

func TestContinentsVisited_FirstAppearanceOrder(t *testing.T) {
	g := defaultKB(t)

	continents, err := ContinentsVisited(g, []string{"Brazil", "North Africa", "Egypt", "Middle East", "Southern Europe"})
	if err != nil {
		t.Fatalf("ContinentsVisited error: %v", err)
	}
	want := []string{"South America", "Africa", "Asia", "Europe"}
	if !reflect.DeepEqual(continents, want) {
		t.Fatalf("ContinentsVisited = %v, want %v", continents, want)
	}
}

func TestContinentsVisited_UnknownCountry(t *testing.T) {
	g := balkansKB(t)
	if _, err := ContinentsVisited(g, []string{"Albania", "Atlantis"}); !errors.Is(err, kb.ErrCountryNotFound) {
		t.Fatalf("ContinentsVisited error = %v, want ErrCountryNotFound", err)
	}
	if _, err := TotalTax(g, []string{"Albania", "Atlantis"}); !errors.Is(err, kb.ErrCountryNotFound) {
		t.Fatalf("TotalTax error = %v, want ErrCountryNotFound", err)
	}
}

func TestTotalTax_ExcludesSource(t *testing.T) {
	g := balkansKB(t)
	tax, err := TotalTax(g, []string{"Greece"})
	if err != nil || tax != 0 {
		t.Fatalf("TotalTax([Greece]) = %d, %v, want 0", tax, err)
	}
	tax, _ = TotalTax(g, []string{"Montenegro", "Albania"})
	if tax != 10 {
		t.Fatalf("TotalTax([Montenegro Albania]) = %d, want 10", tax)
	}
}

func TestPlanRoute(t *testing.T) {
	g := balkansKB(t)

	plan, err := PlanRoute(g, "Albania", "Greece")
	if err != nil {
		t.Fatalf("PlanRoute error: %v", err)
	}
	if plan.Status != RouteFound || plan.Tax != 35 || plan.Hops() != 2 {
		t.Fatalf("unexpected plan %+v", plan)
	}

	same, err := PlanRoute(g, "Albania", "Albania")
	if err != nil {
		t.Fatalf("PlanRoute error: %v", err)
	}
	if same.Status != RouteSameCountry || len(same.Path) != 0 || same.Hops() != 0 {
		t.Fatalf("same-country plan = %+v", same)
	}

	none, err := PlanRoute(g, "Greece", "Albania")
	if err != nil {
		t.Fatalf("PlanRoute error: %v", err)
	}
	if none.Status != RouteNotFound || len(none.Path) != 0 || none.Tax != 0 {
		t.Fatalf("no-route plan = %+v", none)
	}

	if _, err := PlanRoute(g, "Atlantis", "Atlantis"); !errors.Is(err, kb.ErrCountryNotFound) {
		t.Fatalf("PlanRoute(Atlantis, Atlantis) error = %v", err)
	}
}

func TestPlanRoute_SameCountrySkipsSearch(t *testing.T) {
	g := &countingGraph{Graph: balkansKB(t)}

	if _, err := PlanRoute(g, "Albania", "Albania"); err != nil {
		t.Fatalf("PlanRoute error: %v", err)
	}
	if g.expansions != 0 {
		t.Fatalf("same-country query expanded %d nodes, want 0", g.expansions)
	}
}

func TestPlanRoute_DefaultDatasetAcrossContinents(t *testing.T) {
	g := defaultKB(t)

	plan, err := PlanRoute(g, "Alaska", "Madagascar")
	if err != nil {
		t.Fatalf("PlanRoute error: %v", err)
	}
	if plan.Status != RouteFound {
		t.Fatalf("expected a route, got %+v", plan)
	}
	dist := referenceDistances(t, g, "Alaska")
	if plan.Hops() != dist["Madagascar"] {
		t.Fatalf("route has %d hops, want %d: %v", plan.Hops(), dist["Madagascar"], plan.Path)
	}
	assertValidPath(t, g, plan.Path, "Alaska", "Madagascar")

	wantTax := 0
	for _, name := range plan.Path[1:] {
		c, _ := g.Get(name)
		wantTax += c.Tax
	}
	if plan.Tax != wantTax {
		t.Fatalf("plan tax = %d, want %d", plan.Tax, wantTax)
	}
	if len(plan.Continents) < 2 || plan.Continents[0] != "North America" || plan.Continents[len(plan.Continents)-1] != "Africa" {
		t.Fatalf("unexpected continents %v", plan.Continents)
	}
}

func TestRouteStatusString(t *testing.T) {
	for status, want := range map[RouteStatus]string{
		RouteFound:       "found",
		RouteSameCountry: "same_country",
		RouteNotFound:    "not_found",
		RouteStatus(42):  "RouteStatus(42)",
	} {
		if got := status.String(); got != want {
			t.Fatalf("String() = %q, want %q", got, want)
		}
	}
}

type countingGraph struct {
	Graph
	expansions int
}

func (c *countingGraph) NeighborsOf(name string) ([]string, error) {
	c.expansions++
	return c.Graph.NeighborsOf(name)
}

type failingGraph struct {
	Graph
}

func (failingGraph) NeighborsOf(string) ([]string, error) {
	return nil, errors.New("boom")
}

func TestShortestPath_PropagatesGraphErrors(t *testing.T) {
	g := failingGraph{Graph: balkansKB(t)}
	if _, err := ShortestPath(g, "Albania", "Greece"); err == nil {
		t.Fatalf("expected neighbor lookup failure to propagate")
	}
}

func defaultKB(t *testing.T) *kb.KnowledgeBase {
	t.Helper()
	ds, err := DefaultDataset()
	if err != nil {
		t.Fatalf("DefaultDataset error: %v", err)
	}
	return newKB(t, ds.Countries, ds.Adjacencies)
}

// referenceDistances computes hop counts from src with a plain level-by-level
// traversal that does not share code with ShortestPath.
func referenceDistances(t *testing.T, g Graph, src string) map[string]int {
	t.Helper()
	dist := map[string]int{src: 0}
	frontier := []string{src}
	for level := 1; len(frontier) > 0; level++ {
		var next []string
		for _, n := range frontier {
			neighbors, err := g.NeighborsOf(n)
			if err != nil {
				t.Fatalf("NeighborsOf(%s) error: %v", n, err)
			}
			for _, nb := range neighbors {
				if _, ok := dist[nb]; !ok {
					dist[nb] = level
					next = append(next, nb)
				}
			}
		}
		frontier = next
	}
	return dist
}

func assertValidPath(t *testing.T, g Graph, path []string, src, dst string) {
	t.Helper()
	if path[0] != src || path[len(path)-1] != dst {
		t.Fatalf("path %v does not connect %s to %s", path, src, dst)
	}
	seen := make(map[string]bool)
	for i, name := range path {
		if seen[name] {
			t.Fatalf("path %v repeats %s", path, name)
		}
		seen[name] = true
		if i == 0 {
			continue
		}
		neighbors, _ := g.NeighborsOf(path[i-1])
		found := false
		for _, nb := range neighbors {
			if nb == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("path %v uses undeclared border %s -> %s", path, path[i-1], name)
		}
	}
}

var _ Graph = (*kb.KnowledgeBase)(nil)
