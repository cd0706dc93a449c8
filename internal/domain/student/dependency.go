package student

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCY GRAPH
// Ребро target -> blocker значит: target не может сменить статус,
// пока blocker не получил визу.
// ══════════════════════════════════════════════════════════════════════════════

// Resolver находит студента по id. false - студент не найден (например, удалён).
type Resolver func(id string) (*Student, bool)

// BlockStatus - результат проверки блокировки.
type BlockStatus struct {
	Blocked     bool   `json:"blocked"`
	BlockerID   string `json:"blockerId,omitempty"`
	BlockerName string `json:"blockerName,omitempty"`
}

// IsBlocked проверяет блокеров в порядке вставки. Первый найденный блокер
// без статуса Visa Granted блокирует студента. Ненайденный id не блокирует.
func IsBlocked(s *Student, resolve Resolver) BlockStatus {
	for _, id := range s.BlockedBy {
		blocker, ok := resolve(id)
		if !ok {
			continue
		}
		if blocker.Status != StatusVisaGranted {
			return BlockStatus{Blocked: true, BlockerID: blocker.ID, BlockerName: blocker.Name}
		}
	}
	return BlockStatus{}
}

// Graph - явный ориентированный граф зависимостей над набором студентов.
// Узлы хранятся в срезе, индекс по id даёт доступ за O(1).
type Graph struct {
	nodes []*Student
	index map[string]int
}

// NewGraph строит граф над студентами. Граф мутирует переданные сущности.
func NewGraph(students []*Student) *Graph {
	g := &Graph{
		nodes: students,
		index: make(map[string]int, len(students)),
	}
	for i, s := range students {
		g.index[s.ID] = i
	}
	return g
}

// Resolve реализует Resolver.
func (g *Graph) Resolve(id string) (*Student, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.nodes[i], true
}

// Block добавляет blockerID в blockedBy студента targetID.
// Самоблокировка и повторное добавление - no-op. Ребро, замыкающее цикл,
// отклоняется с ErrCyclicDependency. Возвращает true, если ребро добавлено.
func (g *Graph) Block(targetID, blockerID string) (bool, error) {
	target, ok := g.Resolve(targetID)
	if !ok {
		return false, ErrStudentNotFound
	}
	if targetID == blockerID {
		return false, nil
	}
	if _, ok := g.Resolve(blockerID); !ok {
		return false, ErrStudentNotFound
	}
	if target.IsBlockedBy(blockerID) {
		return false, nil
	}
	if g.reaches(blockerID, targetID) {
		return false, ErrCyclicDependency
	}

	target.BlockedBy = append(target.BlockedBy, blockerID)
	return true, nil
}

// Unblock удаляет blockerID из blockedBy. Возвращает true, если ребро было.
func (g *Graph) Unblock(targetID, blockerID string) (bool, error) {
	target, ok := g.Resolve(targetID)
	if !ok {
		return false, ErrStudentNotFound
	}

	kept := target.BlockedBy[:0]
	removed := false
	for _, id := range target.BlockedBy {
		if id == blockerID {
			removed = true
			continue
		}
		kept = append(kept, id)
	}
	target.BlockedBy = kept
	return removed, nil
}

// Dependents возвращает студентов, которых блокирует id.
func (g *Graph) Dependents(id string) []*Student {
	var out []*Student
	for _, s := range g.nodes {
		if s.IsBlockedBy(id) {
			out = append(out, s)
		}
	}
	return out
}

// reaches - DFS по рёбрам blockedBy от from; true, если достижим to.
// Висячие id пропускаются.
func (g *Graph) reaches(from, to string) bool {
	visited := make(map[string]bool, len(g.nodes))
	stack := []string{from}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if id == to {
			return true
		}
		if visited[id] {
			continue
		}
		visited[id] = true

		node, ok := g.Resolve(id)
		if !ok {
			continue
		}
		for _, next := range node.BlockedBy {
			if !visited[next] {
				stack = append(stack, next)
			}
		}
	}
	return false
}

// HasCycle проверяет весь граф на циклы (для данных, созданных до проверки циклов).
func (g *Graph) HasCycle() bool {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		node, _ := g.Resolve(id)
		for _, next := range node.BlockedBy {
			if next == id {
				continue
			}
			if _, ok := g.Resolve(next); !ok {
				continue
			}
			switch color[next] {
			case grey:
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for _, s := range g.nodes {
		if color[s.ID] == white && visit(s.ID) {
			return true
		}
	}
	return false
}
