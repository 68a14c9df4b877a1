package testkit

import "swayc/internal/ast"

func Let(name string, v *ast.Expr) *ast.Stmt {
	return &ast.Stmt{Kind: ast.StmtLet, Name: name, Value: v}
}

func LetMut(name string, v *ast.Expr) *ast.Stmt {
	return &ast.Stmt{Kind: ast.StmtLet, Name: name, Mutable: true, Value: v}
}

// Assign writes v to name or to the field path below it.
func Assign(name string, v *ast.Expr, path ...string) *ast.Stmt {
	return &ast.Stmt{Kind: ast.StmtAssign, Name: name, Path: path, Value: v}
}

func Do(e *ast.Expr) *ast.Stmt { return &ast.Stmt{Kind: ast.StmtExpr, Value: e} }

func Return(v *ast.Expr) *ast.Stmt { return &ast.Stmt{Kind: ast.StmtReturn, Value: v} }

func While(cond *ast.Expr, body *ast.Block) *ast.Stmt {
	return &ast.Stmt{Kind: ast.StmtWhile, Cond: cond, Body: body}
}

func Break() *ast.Stmt    { return &ast.Stmt{Kind: ast.StmtBreak} }
func Continue() *ast.Stmt { return &ast.Stmt{Kind: ast.StmtContinue} }

// StorageWrite writes v to the storage field at path.
func StorageWrite(v *ast.Expr, path ...string) *ast.Stmt {
	return &ast.Stmt{Kind: ast.StmtStorageWrite, Path: path, Value: v}
}
