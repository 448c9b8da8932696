package workflow

// Counter is a minimal state type for engine tests.
type Counter struct {
	Value int
	Path  []string
}

// increment is a trivial node used where behavior doesn't matter.
func increment(_ Context, s Counter) (Counter, error) {
	s.Value++
	return s, nil
}

// visit returns a node that records its ID on the path.
func visit(id string) NodeFunc[Counter] {
	return func(_ Context, s Counter) (Counter, error) {
		s.Value++
		s.Path = append(s.Path, id)
		return s, nil
	}
}
