package ast

import "swayc/internal/source"

type StmtKind uint8

const (
	StmtLet StmtKind = iota + 1
	StmtExpr
	// StmtAssign assigns to a variable or a field path below it.
	StmtAssign
	StmtStorageWrite
	StmtReturn
	StmtWhile
	StmtBreak
	StmtContinue
)

// Stmt is a type-checked statement.
type Stmt struct {
	Kind StmtKind
	Span source.Span

	Name    string   // StmtLet, StmtAssign
	Mutable bool     // StmtLet
	Path    []string // StmtAssign field path, StmtStorageWrite storage path
	Value   *Expr    // let initialiser, assigned value, returned value (nil for unit)
	Cond    *Expr    // StmtWhile
	Body    *Block   // StmtWhile
}
