package asm

// Namespace owns a function's data section and the variable bindings of
// AST-direct lowering.
type Namespace struct {
	data   *DataSection
	scopes []map[string]Register
}

func NewNamespace() *Namespace {
	return &Namespace{data: NewDataSection(), scopes: []map[string]Register{{}}}
}

func (ns *Namespace) Data() *DataSection { return ns.data }

// InsertDataValue deduplicates lit into the data section.
func (ns *Namespace) InsertDataValue(lit Literal) DataID {
	return ns.data.Insert(lit)
}

// Push opens a nested binding scope.
func (ns *Namespace) Push() { ns.scopes = append(ns.scopes, map[string]Register{}) }

// Pop closes the innermost scope. The outermost scope is never removed.
func (ns *Namespace) Pop() {
	if len(ns.scopes) > 1 {
		ns.scopes = ns.scopes[:len(ns.scopes)-1]
	}
}

func (ns *Namespace) Bind(name string, r Register) {
	ns.scopes[len(ns.scopes)-1][name] = r
}

// Lookup resolves name from the innermost scope outwards.
func (ns *Namespace) Lookup(name string) (Register, bool) {
	for i := len(ns.scopes) - 1; i >= 0; i-- {
		if r, ok := ns.scopes[i][name]; ok {
			return r, true
		}
	}
	return Register{}, false
}
