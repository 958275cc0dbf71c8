package wed

import (
	"sort"
	"sync"

	hashset "github.com/hashicorp/go-set/v3"
)

type binding struct {
	value      string
	permission Permission
}

// State is the shared, mutable variable store of one experiment instance.
// Its lock table is fixed at construction time to exactly the experiment's
// variable set; only State mutates bindings, and every mutation goes through
// merge, which respects the ReadOnly permission.
type State struct {
	// coord serializes lock-acquisition phases across workers so two
	// workers can never interleave partial-acquire/partial-release
	// sequences into a mutual-progress failure. It is never held during
	// task execution itself.
	coord sync.Mutex

	// order is the fixed, lexicographically sorted list of every variable
	// in the lock table, computed once at construction.
	order []Variable

	mu       sync.RWMutex // protects bindings
	bindings map[string]binding
	locks    map[string]*sync.Mutex
}

// NewState builds an empty State whose lock table covers exactly vars.
func NewState(vars *hashset.Set[Variable]) *State {
	list := vars.Slice()
	sort.Slice(list, func(i, j int) bool { return list[i].Less(list[j]) })

	s := &State{
		order:    list,
		bindings: make(map[string]binding, len(list)),
		locks:    make(map[string]*sync.Mutex, len(list)),
	}
	for _, v := range list {
		s.locks[v.ID] = &sync.Mutex{}
	}
	return s
}

// Snapshot takes the coordination lock for the duration of a consistent copy
// of every binding, then releases it.
func (s *State) Snapshot() map[string]string {
	s.coord.Lock()
	defer s.coord.Unlock()
	return s.unlockedSnapshot(s.order)
}

// SnapshotOf copies the bindings of the given variables without taking the
// coordination lock; the scheduler calls it while holding the per-variable
// locks of vars (isFinal, isInconsistent, isReady and execute).
func (s *State) SnapshotOf(vars []Variable) map[string]string {
	return s.unlockedSnapshot(vars)
}

func (s *State) unlockedSnapshot(vars []Variable) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(vars))
	for _, v := range vars {
		out[v.ID] = s.bindings[v.ID].value
	}
	return out
}

// sortedVars returns vars sorted in the lock table's total order.
func sortedVars(vars []Variable) []Variable {
	out := make([]Variable, len(vars))
	copy(out, vars)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// TryLock attempts to acquire, in lexicographic order, every per-variable
// lock named by vars using non-blocking acquisition. On any failure it
// releases everything it acquired so far and returns false. This is the
// deadlock-avoidance protocol of spec.md §4.2/§5: the coordination lock
// serializes acquisition phases so two workers can never leave the wait-for
// graph in a state other than acyclic.
func (s *State) TryLock(vars []Variable) bool {
	s.coord.Lock()
	defer s.coord.Unlock()

	ordered := sortedVars(vars)
	acquired := make([]Variable, 0, len(ordered))
	for _, v := range ordered {
		lk, ok := s.locks[v.ID]
		if !ok {
			// Not in the experiment's variable set: nothing to lock.
			continue
		}
		if !lk.TryLock() {
			s.unlockAll(acquired)
			return false
		}
		acquired = append(acquired, v)
	}
	return true
}

// Unlock releases the locks named by vars. Caller must hold them.
func (s *State) Unlock(vars []Variable) {
	s.unlockAll(sortedVars(vars))
}

func (s *State) unlockAll(vars []Variable) {
	for _, v := range vars {
		if lk, ok := s.locks[v.ID]; ok {
			lk.Unlock()
		}
	}
}

// Delta is a set of variable bindings produced by a task execution or the
// config bootstrap, to be merged into State.
type Delta map[string]binding

// NewDelta builds an empty Delta.
func NewDelta() Delta { return make(Delta) }

// Set records variable id as bound to value with the given permission.
func (d Delta) Set(id, value string, perm Permission) {
	d[id] = binding{value: value, permission: perm}
}

// Variables returns the identifiers this delta touches.
func (d Delta) Variables() []string {
	out := make([]string, 0, len(d))
	for k := range d {
		out = append(out, k)
	}
	return out
}

// Merge applies delta under the assumption the caller already holds every
// lock covering delta's keys. For each (k, v, p): rejects with
// PermissionViolation if the current permission is ReadOnly; otherwise
// writes. task names the task the delta came from, for error reporting (the
// empty string for the config bootstrap, which is exempt from this check's
// caller-side UndeclaredDependency validation but not from permission
// enforcement).
func (s *State) Merge(delta Delta, task string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range delta {
		if cur, ok := s.bindings[id]; ok && cur.permission == ReadOnly {
			return &PermissionViolation{Variable: id, Task: task}
		}
	}
	for id, b := range delta {
		s.bindings[id] = b
	}
	return nil
}

// Variables returns the lock table's fixed key set, in lexicographic order.
func (s *State) Variables() []Variable { return s.order }
