package ast

// Inspect traverses the tree rooted at node in source order, calling f for
// each node. If f returns false the children of that node are skipped.
func Inspect(node Node, f func(Node) bool) {
	if node == nil || !f(node) {
		return
	}
	switch n := node.(type) {
	case *File:
		stmts(n.Stmts, f)
	case *Name:
		for _, p := range n.Parts {
			Inspect(p, f)
		}
	case *VarVar:
		expr(n.X, f)
	case *Interpolated:
		exprs(n.Parts, f)
	case *Array:
		for _, it := range n.Items {
			Inspect(it, f)
		}
	case *ArrayItem:
		expr(n.Key, f)
		expr(n.Value, f)
	case *Assign:
		expr(n.Left, f)
		expr(n.Right, f)
	case *Binary:
		expr(n.Left, f)
		expr(n.Right, f)
	case *Unary:
		expr(n.X, f)
	case *InstanceOf:
		expr(n.X, f)
		expr(n.Class, f)
	case *Cast:
		expr(n.X, f)
	case *New:
		expr(n.Class, f)
		exprs(n.Args, f)
	case *Call:
		expr(n.Func, f)
		exprs(n.Args, f)
	case *MethodCall:
		expr(n.Object, f)
		ident(n.Method, f)
		expr(n.Dynamic, f)
		exprs(n.Args, f)
	case *PropertyFetch:
		expr(n.Object, f)
		ident(n.Prop, f)
		expr(n.Dynamic, f)
	case *StaticCall:
		expr(n.Class, f)
		ident(n.Method, f)
		exprs(n.Args, f)
	case *StaticProp:
		expr(n.Class, f)
		ident(n.Prop, f)
	case *ClassConst:
		expr(n.Class, f)
		ident(n.Const, f)
	case *Index:
		expr(n.X, f)
		expr(n.Index, f)
	case *Closure:
		for _, p := range n.Params {
			Inspect(p, f)
		}
		for _, u := range n.Uses {
			Inspect(u, f)
		}
		block(n.Body, f)
	case *ClosureUse:
		if n.Var != nil {
			Inspect(n.Var, f)
		}
	case *Ternary:
		expr(n.Cond, f)
		expr(n.Then, f)
		expr(n.Else, f)
	case *Include:
		expr(n.Path, f)
	case *Clone:
		expr(n.X, f)
	case *Other:
		exprs(n.Kids, f)
	case *TypeHint:
		for _, c := range n.Classes {
			Inspect(c, f)
		}
	case *Param:
		if n.Type != nil {
			Inspect(n.Type, f)
		}
		if n.Var != nil {
			Inspect(n.Var, f)
		}
		expr(n.Default, f)
	case *Namespace:
		name(n.Name, f)
		stmts(n.Stmts, f)
	case *UseDecl:
		for _, it := range n.Items {
			Inspect(it, f)
		}
	case *UseItem:
		name(n.Name, f)
		ident(n.Alias, f)
	case *ClassDecl:
		ident(n.Name, f)
		names(n.Extends, f)
		names(n.Implements, f)
		stmts(n.Members, f)
	case *FuncDecl:
		ident(n.Name, f)
		for _, p := range n.Params {
			Inspect(p, f)
		}
		block(n.Body, f)
	case *PropertyDecl:
		if n.Type != nil {
			Inspect(n.Type, f)
		}
		for _, p := range n.Props {
			Inspect(p, f)
		}
	case *PropItem:
		if n.Var != nil {
			Inspect(n.Var, f)
		}
		expr(n.Default, f)
	case *ConstDecl:
		for _, it := range n.Items {
			Inspect(it, f)
		}
	case *ConstItem:
		ident(n.Name, f)
		expr(n.Value, f)
	case *TraitUse:
		names(n.Traits, f)
		for _, r := range n.Rules {
			Inspect(r, f)
		}
	case *TraitRule:
		name(n.Trait, f)
		ident(n.Method, f)
		ident(n.Alias, f)
		names(n.InsteadOf, f)
	case *ExprStmt:
		expr(n.X, f)
	case *Echo:
		exprs(n.Exprs, f)
	case *Return:
		expr(n.X, f)
	case *Block:
		stmts(n.Stmts, f)
	case *If:
		expr(n.Cond, f)
		stmt(n.Then, f)
		stmt(n.Else, f)
	case *While:
		if n.Do {
			stmt(n.Body, f)
			expr(n.Cond, f)
		} else {
			expr(n.Cond, f)
			stmt(n.Body, f)
		}
	case *For:
		exprs(n.Init, f)
		exprs(n.Cond, f)
		exprs(n.Step, f)
		stmt(n.Body, f)
	case *Switch:
		expr(n.Subject, f)
		for _, c := range n.Cases {
			Inspect(c, f)
		}
	case *Case:
		expr(n.Cond, f)
		stmts(n.Body, f)
	case *Foreach:
		expr(n.X, f)
		expr(n.Key, f)
		expr(n.Value, f)
		stmt(n.Body, f)
	case *Try:
		block(n.Body, f)
		for _, c := range n.Catches {
			Inspect(c, f)
		}
		block(n.Finally, f)
	case *Catch:
		names(n.Types, f)
		if n.Var != nil {
			Inspect(n.Var, f)
		}
		block(n.Body, f)
	case *Global:
		for _, v := range n.Vars {
			Inspect(v, f)
		}
	case *StaticVar:
		for _, it := range n.Vars {
			Inspect(it, f)
		}
	case *StaticItem:
		if n.Var != nil {
			Inspect(n.Var, f)
		}
		expr(n.Init, f)
	case *Unset:
		exprs(n.Exprs, f)
	}
}

func expr(e Expr, f func(Node) bool) {
	if e != nil {
		Inspect(e, f)
	}
}

func exprs(list []Expr, f func(Node) bool) {
	for _, e := range list {
		expr(e, f)
	}
}

func stmt(s Stmt, f func(Node) bool) {
	if s != nil {
		Inspect(s, f)
	}
}

func stmts(list []Stmt, f func(Node) bool) {
	for _, s := range list {
		stmt(s, f)
	}
}

func ident(id *Ident, f func(Node) bool) {
	if id != nil {
		Inspect(id, f)
	}
}

func name(n *Name, f func(Node) bool) {
	if n != nil {
		Inspect(n, f)
	}
}

func names(list []*Name, f func(Node) bool) {
	for _, n := range list {
		name(n, f)
	}
}

func block(b *Block, f func(Node) bool) {
	if b != nil {
		Inspect(b, f)
	}
}
