package expr

import (
	"strings"

	"phpsema/internal/ast"
	"phpsema/internal/symbols"
	"phpsema/internal/types"
)

// Evaluator infers expression types against an Index. It holds no per-call
// state and may be shared by every pass that runs on the index.
type Evaluator struct {
	ix   *symbols.Index
	hook Hook
}

func New(ix *symbols.Index, opts ...Option) *Evaluator {
	e := &Evaluator{ix: ix}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) Index() *symbols.Index {
	return e.ix
}

// Evaluate infers the type of n in scope. When cursor is valid every lookup
// is made as of cursor; otherwise each identifier is looked up as of its own
// end. Unresolvable input yields an empty Result, never a panic.
func (e *Evaluator) Evaluate(n ast.Expr, scope *symbols.Scope, cursor ast.Pos) Result {
	if n == nil || scope == nil {
		return Result{}
	}
	r := &run{e: e, cursor: cursor}
	res := r.eval(n, scope)
	res.HadUnresolved = r.unresolved
	return res
}

// run is the state of one Evaluate call.
type run struct {
	e          *Evaluator
	cursor     ast.Pos
	unresolved bool
	// silent suppresses the hook while closure bodies are re-evaluated; the
	// use pass walks those bodies on its own.
	silent int
}

func (r *run) pos(n ast.Node) ast.Pos {
	if r.cursor.IsValid() {
		return r.cursor
	}
	return n.Span().End
}

func (r *run) emit(n ast.Node, name string, kind symbols.Kind, decls []*symbols.Declaration, report bool) {
	if len(decls) == 0 {
		r.unresolved = true
	}
	if r.silent > 0 || r.e.hook == nil {
		return
	}
	r.e.hook(Ref{Node: n, Range: n.Span(), Name: name, Kind: kind, Decls: decls, ReportNotFound: report})
}

func one(d *symbols.Declaration) []*symbols.Declaration {
	if d == nil {
		return nil
	}
	return []*symbols.Declaration{d}
}

func last(decls []*symbols.Declaration) *symbols.Declaration {
	if len(decls) == 0 {
		return nil
	}
	return decls[len(decls)-1]
}

func (r *run) evalAll(list []ast.Expr, scope *symbols.Scope) {
	for _, x := range list {
		if x != nil {
			r.eval(x, scope)
		}
	}
}

func (r *run) eval(n ast.Expr, scope *symbols.Scope) Result {
	switch n := n.(type) {
	case *ast.Variable:
		return r.variable(n, scope)

	case *ast.VarVar:
		r.eval(n.X, scope)
		return Result{}

	case *ast.Literal:
		return r.literal(n, scope)

	case *ast.Interpolated:
		r.evalAll(n.Parts, scope)
		return Result{Type: types.NewString()}

	case *ast.Name:
		return r.constant(n, scope)

	case *ast.Array:
		return r.array(n, scope)

	case *ast.Assign:
		return r.assign(n, scope)

	case *ast.Binary:
		left := r.eval(n.Left, scope)
		right := r.eval(n.Right, scope)
		return Result{Type: binaryType(n.Op, left.Type, right.Type)}

	case *ast.Unary:
		x := r.eval(n.X, scope)
		return Result{Type: unaryType(n.Op, x.Type)}

	case *ast.InstanceOf:
		r.eval(n.X, scope)
		if name, ok := n.Class.(*ast.Name); ok {
			r.className(name, scope)
		} else if n.Class != nil {
			r.eval(n.Class, scope)
		}
		return Result{Type: types.NewBool()}

	case *ast.Cast:
		r.eval(n.X, scope)
		return r.cast(n.To)

	case *ast.New:
		r.evalAll(n.Args, scope)
		switch class := n.Class.(type) {
		case nil:
			return Result{}
		case *ast.Name:
			d := r.className(class, scope)
			if d == nil {
				return Result{}
			}
			return Result{Decls: one(d), Type: classType(d)}
		default:
			r.eval(class, scope)
			return Result{}
		}

	case *ast.Call:
		return r.call(n, scope)

	case *ast.MethodCall:
		obj := r.eval(n.Object, scope)
		r.evalAll(n.Args, scope)
		if n.Method == nil {
			r.eval(n.Dynamic, scope)
			return Result{}
		}
		decls := r.members(r.e.classScope(obj.Type, scope), n.Method, symbols.KindFunction)
		return Result{Decls: decls, Type: returnType(last(decls))}

	case *ast.PropertyFetch:
		obj := r.eval(n.Object, scope)
		if n.Prop == nil {
			r.eval(n.Dynamic, scope)
			return Result{}
		}
		decls := r.members(r.e.classScope(obj.Type, scope), n.Prop, symbols.KindVariable)
		return Result{Decls: decls, Type: declType(last(decls))}

	case *ast.StaticCall:
		cls := r.classScopeOf(n.Class, scope)
		r.evalAll(n.Args, scope)
		decls := r.members(cls, n.Method, symbols.KindFunction)
		return Result{Decls: decls, Type: returnType(last(decls))}

	case *ast.StaticProp:
		cls := r.classScopeOf(n.Class, scope)
		decls := r.members(cls, n.Prop, symbols.KindVariable)
		return Result{Decls: decls, Type: declType(last(decls))}

	case *ast.ClassConst:
		cls := r.classScopeOf(n.Class, scope)
		if n.Const != nil && strings.EqualFold(n.Const.Name, "class") {
			return Result{Type: types.NewString()}
		}
		decls := r.members(cls, n.Const, symbols.KindConstant)
		return Result{Decls: decls, Type: declType(last(decls))}

	case *ast.Index:
		r.eval(n.X, scope)
		if n.Index != nil {
			r.eval(n.Index, scope)
		}
		return Result{}

	case *ast.Closure:
		return Result{Type: r.closure(n, scope)}

	case *ast.Ternary:
		cond := r.eval(n.Cond, scope)
		then := cond
		if n.Then != nil {
			then = r.eval(n.Then, scope)
		}
		els := r.eval(n.Else, scope)
		return Result{Type: types.Union(types.StripReference(then.Type), types.StripReference(els.Type))}

	case *ast.Include:
		r.eval(n.Path, scope)
		return Result{Type: types.NewMixed()}

	case *ast.Clone:
		return r.eval(n.X, scope)

	case *ast.Other:
		r.evalAll(n.Kids, scope)
		switch n.Kind {
		case "isset", "empty":
			return Result{Type: types.NewBool()}
		case "print":
			return Result{Type: types.NewInt()}
		}
		return Result{}
	}
	return Result{}
}

// array types a literal without keys as an indexed container of its
// element types. Keyed and empty literals are plain arrays.
func (r *run) array(n *ast.Array, scope *symbols.Scope) Result {
	listLike := !n.List && len(n.Items) > 0
	var elems []*types.Type
	for _, it := range n.Items {
		if it.Key != nil {
			listLike = false
			r.eval(it.Key, scope)
		}
		if it.Value == nil {
			listLike = false
			continue
		}
		elems = append(elems, OrMixed(types.StripReference(r.eval(it.Value, scope).Type)))
	}
	if !listLike {
		return Result{Type: types.NewArray()}
	}
	return Result{Type: types.NewIndexed(elems...)}
}

func (r *run) assign(n *ast.Assign, scope *symbols.Scope) Result {
	right := r.eval(n.Right, scope)
	left := r.eval(n.Left, scope)
	switch n.Op {
	case "=":
		return Result{Decls: left.Decls, Type: right.Type}
	case ".":
		return Result{Decls: left.Decls, Type: types.NewString()}
	case "??":
		return Result{Decls: left.Decls, Type: types.Union(types.StripReference(left.Type), types.StripReference(right.Type))}
	}
	return Result{Decls: left.Decls, Type: types.NewInt()}
}

func binaryType(op string, left, right *types.Type) *types.Type {
	switch strings.ToLower(op) {
	case ".":
		return types.NewString()
	case "+", "-", "*", "/", "%", "**", "^", "|", "&", "<<", ">>", "<=>":
		return types.NewInt()
	case "==", "!=", "<>", "===", "!==", "<", ">", "<=", ">=", "&&", "||", "and", "or", "xor":
		return types.NewBool()
	case "??":
		return types.Union(types.StripReference(left), types.StripReference(right))
	}
	return nil
}

func unaryType(op string, x *types.Type) *types.Type {
	switch op {
	case "!":
		return types.NewBool()
	case "~":
		return types.NewInt()
	case "-", "+":
		if x.Is(types.Float) {
			return types.NewFloat()
		}
		return types.NewInt()
	}
	return x
}

func (r *run) literal(n *ast.Literal, scope *symbols.Scope) Result {
	switch n.Kind {
	case ast.LitInt:
		return Result{Type: types.NewInt()}
	case ast.LitFloat:
		return Result{Type: types.NewFloat()}
	}
	if name := unquote(n.Value); isClassNameLike(name) {
		if decls := r.e.classByString(name, scope, r.pos(n)); len(decls) > 0 {
			r.emit(n, name, symbols.KindClass, decls, false)
		}
	}
	return Result{Type: types.NewString()}
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// isClassNameLike reports whether s could spell a class name: identifier
// characters and namespace separators only.
func isClassNameLike(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_', c == '\\', c >= 0x80:
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func (r *run) cast(to string) Result {
	switch strings.ToLower(to) {
	case "int", "integer":
		return Result{Type: types.NewInt()}
	case "float", "double", "real":
		return Result{Type: types.NewFloat()}
	case "bool", "boolean":
		return Result{Type: types.NewBool()}
	case "string", "binary":
		return Result{Type: types.NewString()}
	case "array":
		return Result{Type: types.NewArray()}
	case "unset":
		return Result{Type: types.NewNull()}
	case "object":
		d := r.e.ix.FindClass(BaseObjectClass)
		if d == nil {
			return Result{Type: types.NewStructure("stdClass")}
		}
		return Result{Decls: one(d), Type: classType(d)}
	}
	return Result{}
}

// constant resolves a bare name used as a value. Names that are not
// constants are retried as functions.
func (r *run) constant(n *ast.Name, scope *symbols.Scope) Result {
	if len(n.Parts) == 1 {
		switch strings.ToLower(n.Parts[0].Name) {
		case "true", "false":
			return Result{Type: types.NewBool()}
		case "null":
			return Result{Type: types.NewNull()}
		}
	}
	decls := r.resolveQuiet(n, symbols.KindConstant, scope)
	kind := symbols.KindConstant
	if len(decls) == 0 {
		if fns := r.resolveQuiet(n, symbols.KindFunction, scope); len(fns) > 0 {
			decls, kind = fns, symbols.KindFunction
		}
	}
	r.recordName(n, kind, scope, decls, false)
	return Result{Decls: decls, Type: declType(last(decls))}
}

func (r *run) call(n *ast.Call, scope *symbols.Scope) Result {
	name, ok := n.Func.(*ast.Name)
	if !ok {
		fn := r.eval(n.Func, scope)
		r.evalAll(n.Args, scope)
		if t := types.StripReference(fn.Type); t.Kind() == types.KindFunction {
			return Result{Type: t.Return()}
		}
		return Result{}
	}
	args := n.Args
	if strings.EqualFold(name.String(), "define") && len(args) > 0 {
		if lit, ok := args[0].(*ast.Literal); ok && lit.Kind == ast.LitString {
			args = args[1:]
		}
	}
	r.evalAll(args, scope)
	decls := r.resolveQuiet(name, symbols.KindFunction, scope)
	r.recordName(name, symbols.KindFunction, scope, decls, false)
	return Result{Decls: decls, Type: returnType(last(decls))}
}

func (r *run) variable(v *ast.Variable, scope *symbols.Scope) Result {
	if v.Name == "this" {
		if cls := ThisClass(scope); cls != nil {
			return Result{Decls: one(cls), Type: classType(cls)}
		}
		r.unresolved = true
		return Result{}
	}
	d := r.e.FindVariable(v.Name, scope, r.pos(v))
	if d == nil {
		r.emit(v, "$"+v.Name, symbols.KindVariable, nil, false)
		return Result{}
	}
	// The declaring occurrence itself is not a use.
	if d.Unit != scope.Unit || d.Range != v.Rng {
		r.emit(v, "$"+v.Name, symbols.KindVariable, one(d), false)
	}
	return Result{Decls: one(d), Type: d.Type}
}

// members looks name up among the members of cls and records the reference.
// Every match is recorded; the caller derives types from the last.
func (r *run) members(cls *symbols.Scope, name *ast.Ident, kind symbols.Kind) []*symbols.Declaration {
	if name == nil {
		return nil
	}
	var decls []*symbols.Declaration
	if cls != nil {
		decls = cls.Find(symbols.KeyFor(kind, name.Name), ast.NoPos, true, func(d *symbols.Declaration) bool {
			return d.Kind == kind && d.Member
		})
	}
	r.emit(name, name.Name, kind, decls, false)
	return decls
}

// classScopeOf resolves the left side of a static access to a class body.
func (r *run) classScopeOf(x ast.Expr, scope *symbols.Scope) *symbols.Scope {
	if name, ok := x.(*ast.Name); ok {
		d := r.className(name, scope)
		if d == nil {
			return nil
		}
		if d.Internal != nil {
			return d.Internal
		}
		return r.e.classScope(classType(d), scope)
	}
	res := r.eval(x, scope)
	return r.e.classScope(res.Type, scope)
}

// className resolves a class reference, including self, static and parent.
func (r *run) className(n *ast.Name, scope *symbols.Scope) *symbols.Declaration {
	if n.IsRelative() {
		return r.e.relativeClass(n.Parts[0].Name, scope)
	}
	decls := r.resolveQuiet(n, symbols.KindClass, scope)
	r.recordName(n, symbols.KindClass, scope, decls, true)
	return last(decls)
}

func declType(d *symbols.Declaration) *types.Type {
	if d == nil {
		return nil
	}
	return d.Type
}

func returnType(d *symbols.Declaration) *types.Type {
	if d == nil {
		return nil
	}
	if t := types.StripReference(d.Type); t.Kind() == types.KindFunction {
		return t.Return()
	}
	return nil
}

func classType(d *symbols.Declaration) *types.Type {
	if d == nil {
		return nil
	}
	if d.Type != nil {
		return d.Type
	}
	return types.NewStructure(d.DisplayName())
}
