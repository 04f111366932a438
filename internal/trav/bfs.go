package trav

// Visit walks the graph breadth-first along neighbor links starting at
// start. For every patch the callback decides whether to descend into its
// children and whether to abort the whole walk. Each patch is visited once.
func Visit(start *Patch, fn func(p *Patch, distToRoot int) (descend, abort bool)) {
	type item struct {
		p *Patch
		d int
	}
	visited := map[*Patch]bool{start: true}
	queue := []item{{p: start, d: 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		descend, abort := fn(cur.p, cur.d)
		if abort {
			return
		}
		if !descend {
			continue
		}
		for _, n := range cur.p.Connections() {
			if !visited[n] {
				visited[n] = true
				queue = append(queue, item{p: n, d: cur.d + 1})
			}
		}
	}
}
