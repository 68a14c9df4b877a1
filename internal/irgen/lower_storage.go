package irgen

import (
	"encoding/binary"
	"slices"

	"fortio.org/safecast"

	"swayc/internal/ast"
	"swayc/internal/diag"
	"swayc/internal/ir"
	"swayc/internal/storagekey"
	"swayc/internal/types"
)

// planStorage assigns keys to the declared storage fields and serialises
// their initialisers. A key collision is a warning; the first declaration
// keeps the slots.
func (g *generator) planStorage() {
	sd := g.prog.Decls.Storage
	if sd == nil {
		return
	}
	g.storage = storagekey.NewPlanner()
	g.storageTypes = make(map[string]types.TypeID, len(sd.Fields))
	for _, sf := range sd.Fields {
		path := append(slices.Clone(sf.Namespace), sf.Name)
		size, err := g.m.Layout.SizeOf(sf.Type)
		if err != nil {
			diag.ReportError(g.r, diag.InternalSizeComputationFailed, sf.Span, err.Error()).Emit()
			continue
		}
		var explicit *storagekey.Key
		if sf.Key != nil {
			w, ok := g.constWords(sf.Key)
			if !ok || len(w) != storagekey.SlotWords {
				diag.ReportError(g.r, diag.CodegenNonConstantStorageKey, sf.Key.Span,
					"storage key of "+joinPath(path)+" must be a constant b256").Emit()
				continue
			}
			k := keyFromWords(w)
			explicit = &k
		}
		field, coll := g.storage.Add(path, explicit, size, sf.Span)
		g.storageTypes[joinPath(path)] = sf.Type
		if coll != nil {
			diag.ReportWarning(g.r, diag.StorageDuplicatedKey, sf.Span, coll.Message()).
				WithNote(coll.First.Span, "first declared here").Emit()
			continue
		}
		if sf.Init == nil {
			continue
		}
		words, ok := g.constWords(sf.Init)
		if !ok {
			diag.ReportError(g.r, diag.StorageNonConstantInit, sf.Init.Span,
				"initialiser of storage field "+joinPath(path)+" is not a constant").Emit()
			continue
		}
		g.m.StorageSlots = append(g.m.StorageSlots, storagekey.Slots(field.Key, words)...)
	}
}

func keyFromWords(w []uint64) storagekey.Key {
	var k storagekey.Key
	for i := range storagekey.SlotWords {
		binary.BigEndian.PutUint64(k[i*8:], w[i])
	}
	return k
}

// storageAccess is a resolved storage path: the slots touched and the type
// of the addressed value.
type storageAccess struct {
	loc  storagekey.Location
	ty   types.TypeID
	full bool // the access covers the whole field
}

// resolveStorage finds the longest declared field that prefixes path and
// walks the rest of the path through the field's type.
func (l *funcLowerer) resolveStorage(path []string) (storageAccess, error) {
	sp := l.b.Span()
	if l.g.storage == nil {
		return storageAccess{}, &codegenError{code: diag.StorageUnknownField, span: sp,
			msg: "no storage declared for access to " + joinPath(path)}
	}
	for n := len(path); n > 0; n-- {
		field, ok := l.g.storage.Lookup(path[:n])
		if !ok {
			continue
		}
		ty := l.g.storageTypes[joinPath(path[:n])]
		idx := make([]uint64, 0, len(path)-n)
		for _, name := range path[n:] {
			i, next, err := l.step(ty, name)
			if err != nil {
				return storageAccess{}, err
			}
			idx = append(idx, i)
			ty = next
		}
		off, leaf, err := l.g.m.Layout.IndexOffsetWords(l.g.storageTypes[joinPath(path[:n])], idx)
		if err != nil {
			return storageAccess{}, internalf(sp, "storage path %s: %v", joinPath(path), err)
		}
		size, err := l.g.m.Layout.SizeOf(leaf)
		if err != nil {
			return storageAccess{}, internalf(sp, "storage path %s: %v", joinPath(path), err)
		}
		return storageAccess{
			loc:  storagekey.Locate(field, off, size),
			ty:   leaf,
			full: off == 0 && size == field.SizeWords,
		}, nil
	}
	return storageAccess{}, &codegenError{code: diag.StorageUnknownField, span: sp,
		msg: "unknown storage field " + joinPath(path)}
}

// slotBuffer allocates a local large enough for the touched slots and
// returns a pointer to it.
func (l *funcLowerer) slotBuffer(acc storageAccess, name string) (ir.ValueID, error) {
	u64 := l.tin.Builtins().U64
	words, err := safecast.Conv[uint32](acc.loc.NumSlots * storagekey.SlotWords)
	if err != nil {
		return ir.NoValueID, internalf(l.b.Span(), "storage buffer for %s: %v", name, err)
	}
	slot := l.f.AddLocal(ir.Local{Name: "storage." + name, Type: l.tin.Array(u64, words), Span: l.b.Span()})
	return l.b.GetLocal(slot), nil
}

// valuePtr points into the slot buffer at the accessed value.
func (l *funcLowerer) valuePtr(buf ir.ValueID, acc storageAccess) ir.ValueID {
	p := l.b.GetElemPtr(buf, acc.loc.WordInSlot())
	return l.b.CastPtr(p, l.g.irType(acc.ty))
}

// storageRead loads a u64 sitting at the start of a slot with a single
// word read and everything else through a buffer of whole slots.
func (l *funcLowerer) storageRead(e *ast.Expr) (ir.ValueID, error) {
	acc, err := l.resolveStorage(e.Path)
	if err != nil {
		return ir.NoValueID, err
	}
	if acc.loc.SizeWords == 0 {
		return l.unitOrUndef(e.Type), nil
	}
	key := l.b.ConstB256(acc.loc.SlotKey())
	if acc.ty == l.tin.Builtins().U64 && acc.loc.WordInSlot() == 0 {
		return l.b.StateLoadWord(key), nil
	}
	buf, err := l.slotBuffer(acc, joinPath(e.Path))
	if err != nil {
		return ir.NoValueID, err
	}
	l.b.StateLoadQuad(key, buf, acc.loc.NumSlots)
	return l.b.Load(l.valuePtr(buf, acc)), nil
}

// storageWrite stores a whole single-word field with a word write. Other
// writes go through a slot buffer, which is first filled from storage when
// the value does not cover every touched slot.
func (l *funcLowerer) storageWrite(s *ast.Stmt) error {
	v, err := l.expr(s.Value)
	if err != nil {
		return err
	}
	acc, err := l.resolveStorage(s.Path)
	if err != nil {
		return err
	}
	if acc.loc.SizeWords == 0 {
		return nil
	}
	key := l.b.ConstB256(acc.loc.SlotKey())
	if acc.full && acc.loc.SizeWords == 1 && acc.ty == l.tin.Builtins().U64 {
		l.b.StateStoreWord(key, v)
		return nil
	}
	buf, err := l.slotBuffer(acc, joinPath(s.Path))
	if err != nil {
		return err
	}
	if acc.loc.WordInSlot() != 0 || acc.loc.SizeWords != acc.loc.NumSlots*storagekey.SlotWords {
		l.b.StateLoadQuad(key, buf, acc.loc.NumSlots)
	}
	l.b.Store(l.valuePtr(buf, acc), v)
	l.b.StateStoreQuad(key, buf, acc.loc.NumSlots)
	return nil
}
