package gateway

// GraphSnapshot is a read-only view of the dependency graph at the moment
// a file change is evaluated. Node identities are opaque strings, stable
// across reloads of the same file.
type GraphSnapshot interface {
	// NodesFor returns the graph nodes matching a changed file path.
	// A file that was never loaded maps to zero nodes.
	NodesFor(path string) []string

	// ImportersOf returns the identities of the modules that directly
	// import the given module (the reverse-edge view).
	ImportersOf(id string) []string
}

// IsAffected reports whether the entry module is reachable from the changed
// file by following importer edges. It walks breadth-first from every node
// matching the changed file toward the modules that depend on it, and
// terminates on cyclic graphs via a visited set.
//
// A change to the entry module itself is trivially affecting; a change to a
// file with no graph nodes never is. Pure function of its inputs.
func IsAffected(changedFile string, graph GraphSnapshot, entry string) bool {
	if changedFile == entry {
		return true
	}

	queue := graph.NodesFor(changedFile)
	if len(queue) == 0 {
		return false
	}

	visited := make(map[string]struct{}, len(queue))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}

		if id == entry {
			return true
		}

		queue = append(queue, graph.ImportersOf(id)...)
	}

	return false
}
