package plan

// Registry collects steps in declaration order and serves them back grouped
// by category precedence. For keyed categories a duplicate key replaces the
// earlier step in place, keeping its original position, so a changed
// revision or version never yields two conflicting steps.
type Registry struct {
	steps []Step
	index map[Category]map[string]int
}

func NewRegistry() *Registry {
	return &Registry{index: map[Category]map[string]int{}}
}

func (r *Registry) Add(s Step) {
	if s.Category.Keyed() && s.Key != "" {
		slots, ok := r.index[s.Category]
		if !ok {
			slots = map[string]int{}
			r.index[s.Category] = slots
		}
		if i, ok := slots[s.Key]; ok {
			r.steps[i] = s
			return
		}
		slots[s.Key] = len(r.steps)
	}
	r.steps = append(r.steps, s)
}

// Steps returns the plan in execution order: category precedence first,
// declaration order within each category.
func (r *Registry) Steps() []Step {
	ordered := make([]Step, 0, len(r.steps))
	for _, c := range categories {
		for _, s := range r.steps {
			if s.Category == c {
				ordered = append(ordered, s)
			}
		}
	}
	return ordered
}

// Len reports the number of registered steps.
func (r *Registry) Len() int {
	return len(r.steps)
}
