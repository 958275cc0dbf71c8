package wed

// VarBinding is a (value, permission) pair read from State, used by the
// runner to build the task-invocation argument.
type VarBinding struct {
	Value      string
	Permission Permission
}

// BindingsOf returns the current (value, permission) of each variable in
// vars. Unset variables yield the empty string with ReadWrite permission,
// per spec.md §4.4 step 1.
func (s *State) BindingsOf(vars []Variable) map[string]VarBinding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]VarBinding, len(vars))
	for _, v := range vars {
		b := s.bindings[v.ID]
		out[v.ID] = VarBinding{Value: b.value, Permission: b.permission}
	}
	return out
}
