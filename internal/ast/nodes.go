package ast

import "strings"

// Ident is a bare identifier: a class, function, method, constant or
// property name. Variable names are carried by Variable.
type Ident struct {
	Name string
	Rng  Range
}

// Name is a possibly namespace-qualified name such as Foo\Bar. As an
// expression it denotes a constant (true, false and null included).
type Name struct {
	Parts          []*Ident
	FullyQualified bool
	Rng            Range
}

// String joins the parts with a backslash, without the leading one.
func (n *Name) String() string {
	if n == nil {
		return ""
	}
	parts := make([]string, len(n.Parts))
	for i, p := range n.Parts {
		parts[i] = p.Name
	}
	return strings.Join(parts, `\`)
}

// Last returns the final segment.
func (n *Name) Last() *Ident {
	if n == nil || len(n.Parts) == 0 {
		return nil
	}
	return n.Parts[len(n.Parts)-1]
}

// IsRelative reports whether n is one of self, static or parent.
func (n *Name) IsRelative() bool {
	if n == nil || len(n.Parts) != 1 || n.FullyQualified {
		return false
	}
	switch strings.ToLower(n.Parts[0].Name) {
	case "self", "static", "parent":
		return true
	}
	return false
}

type LitKind int

const (
	LitInt LitKind = iota
	LitFloat
	LitString
)

// Expressions.
type (
	// Variable is $Name; Name has no dollar sign.
	Variable struct {
		Name string
		Rng  Range
	}

	// VarVar is a dynamic variable such as $$x or ${expr}.
	VarVar struct {
		X   Expr
		Rng Range
	}

	// Literal keeps the raw token text. String literals keep their quotes.
	Literal struct {
		Kind  LitKind
		Value string
		Rng   Range
	}

	// Interpolated is a double-quoted string or heredoc with embedded
	// expressions. Only the expressions are kept.
	Interpolated struct {
		Parts []Expr
		Rng   Range
	}

	ArrayItem struct {
		Key   Expr
		Value Expr
		ByRef bool
		Rng   Range
	}

	// Array is an array literal, or a list() destructuring target when List is set.
	Array struct {
		Items []*ArrayItem
		List  bool
		Rng   Range
	}

	// Assign covers =, =& and the compound operators. Op is the operator
	// token without the trailing '=' for compound forms ("+", ".", "??"),
	// and "=" for plain assignment.
	Assign struct {
		Op    string
		ByRef bool
		Left  Expr
		Right Expr
		Rng   Range
	}

	Binary struct {
		Op    string
		Left  Expr
		Right Expr
		Rng   Range
	}

	Unary struct {
		Op  string
		X   Expr
		Rng Range
	}

	InstanceOf struct {
		X     Expr
		Class Expr
		Rng   Range
	}

	// Cast is (To)X, To lower-cased as written ("int", "double", "object").
	Cast struct {
		To  string
		X   Expr
		Rng Range
	}

	// New is object creation. Class is a *Name (possibly static/self) or an
	// arbitrary expression; it is nil for anonymous classes.
	New struct {
		Class Expr
		Args  []Expr
		Rng   Range
	}

	Call struct {
		Func Expr
		Args []Expr
		Rng  Range
	}

	// MethodCall is Object->Method(Args). Method is nil when the name is
	// computed, in which case Dynamic holds the expression.
	MethodCall struct {
		Object   Expr
		Method   *Ident
		Dynamic  Expr
		Args     []Expr
		NullSafe bool
		Rng      Range
	}

	PropertyFetch struct {
		Object   Expr
		Prop     *Ident
		Dynamic  Expr
		NullSafe bool
		Rng      Range
	}

	StaticCall struct {
		Class  Expr
		Method *Ident
		Args   []Expr
		Rng    Range
	}

	// StaticProp is Class::$Prop; Prop has no dollar sign.
	StaticProp struct {
		Class Expr
		Prop  *Ident
		Rng   Range
	}

	ClassConst struct {
		Class Expr
		Const *Ident
		Rng   Range
	}

	// Index is X[Index]; Index is nil for the append form X[].
	Index struct {
		X     Expr
		Index Expr
		Rng   Range
	}

	ClosureUse struct {
		Var   *Variable
		ByRef bool
		Rng   Range
	}

	// Closure is an anonymous function. Arrow functions are represented with
	// Arrow set and a body holding a single return statement.
	Closure struct {
		Params      []*Param
		Uses        []*ClosureUse
		Body        *Block
		ByRefReturn bool
		Static      bool
		Arrow       bool
		Doc         string
		Rng         Range
	}

	Ternary struct {
		Cond Expr
		Then Expr
		Else Expr
		Rng  Range
	}

	// Include is include, include_once, require or require_once.
	Include struct {
		Kind string
		Path Expr
		Rng  Range
	}

	Clone struct {
		X   Expr
		Rng Range
	}

	// Other is any expression the passes do not model (isset, empty, match,
	// yield, throw, exit, ...). Its operands are still walked.
	Other struct {
		Kind string
		Kids []Expr
		Rng  Range
	}
)

// Type hints and parameters.
type (
	// TypeHint is a declared parameter or property type. Classes holds named
	// class types, Keywords the builtin ones, lower-cased.
	TypeHint struct {
		Classes  []*Name
		Keywords []string
		Nullable bool
		Rng      Range
	}

	Param struct {
		Var      *Variable
		Type     *TypeHint
		Default  Expr
		ByRef    bool
		Variadic bool
		// Promoted is the visibility of a constructor-promoted property.
		Promoted string
		Rng      Range
	}
)

type ClassKind int

const (
	KindClass ClassKind = iota
	KindInterface
	KindTrait
	KindEnum
)

func (k ClassKind) String() string {
	switch k {
	case KindInterface:
		return "interface"
	case KindTrait:
		return "trait"
	case KindEnum:
		return "enum"
	}
	return "class"
}

// Statements and declarations.
type (
	Namespace struct {
		Name   *Name
		Stmts  []Stmt
		Braced bool
		Rng    Range
	}

	UseItem struct {
		Name  *Name
		Alias *Ident
		Rng   Range
	}

	// UseDecl is a namespace import. Kind is "", "function" or "const".
	UseDecl struct {
		Kind  string
		Items []*UseItem
		Rng   Range
	}

	ClassDecl struct {
		Kind       ClassKind
		Name       *Ident
		Extends    []*Name
		Implements []*Name
		Members    []Stmt
		Abstract   bool
		Final      bool
		Doc        string
		Rng        Range
	}

	// FuncDecl is a free function or, with Method set, a class method.
	FuncDecl struct {
		Name        *Ident
		Params      []*Param
		Body        *Block
		ByRefReturn bool
		Method      bool
		Static      bool
		Abstract    bool
		Visibility  string
		Doc         string
		Rng         Range
	}

	PropItem struct {
		Var     *Variable
		Default Expr
		Rng     Range
	}

	PropertyDecl struct {
		Props      []*PropItem
		Static     bool
		Visibility string
		Type       *TypeHint
		Doc        string
		Rng        Range
	}

	ConstItem struct {
		Name  *Ident
		Value Expr
		Rng   Range
	}

	// ConstDecl is a const statement, at top level or inside a class body.
	ConstDecl struct {
		Items      []*ConstItem
		Visibility string
		Doc        string
		Rng        Range
	}

	// TraitRule is one adaptation inside a trait use block:
	// Trait::Method as [Visibility] Alias, or Trait::Method insteadof InsteadOf.
	TraitRule struct {
		Trait      *Name
		Method     *Ident
		Alias      *Ident
		Visibility string
		InsteadOf  []*Name
		Rng        Range
	}

	TraitUse struct {
		Traits []*Name
		Rules  []*TraitRule
		Rng    Range
	}

	ExprStmt struct {
		X   Expr
		Doc string
		Rng Range
	}

	Echo struct {
		Exprs []Expr
		Rng   Range
	}

	Return struct {
		X   Expr
		Rng Range
	}

	Block struct {
		Stmts []Stmt
		Rng   Range
	}

	// If carries elseif chains as nested Ifs in Else.
	If struct {
		Cond Expr
		Then Stmt
		Else Stmt
		Rng  Range
	}

	While struct {
		Cond Expr
		Body Stmt
		Do   bool
		Rng  Range
	}

	For struct {
		Init []Expr
		Cond []Expr
		Step []Expr
		Body Stmt
		Rng  Range
	}

	Case struct {
		Cond Expr
		Body []Stmt
		Rng  Range
	}

	Switch struct {
		Subject Expr
		Cases   []*Case
		Rng     Range
	}

	Foreach struct {
		X     Expr
		Key   Expr
		Value Expr
		ByRef bool
		Body  Stmt
		Rng   Range
	}

	Catch struct {
		Types []*Name
		Var   *Variable
		Body  *Block
		Rng   Range
	}

	Try struct {
		Body    *Block
		Catches []*Catch
		Finally *Block
		Rng     Range
	}

	Global struct {
		Vars []*Variable
		Doc  string
		Rng  Range
	}

	StaticItem struct {
		Var  *Variable
		Init Expr
		Rng  Range
	}

	StaticVar struct {
		Vars []*StaticItem
		Doc  string
		Rng  Range
	}

	Unset struct {
		Exprs []Expr
		Rng   Range
	}

	// Nop stands for statements without semantic content (break, inline
	// HTML, labels).
	Nop struct {
		Rng Range
	}
)

func (n *Ident) Span() Range         { return n.Rng }
func (n *Name) Span() Range          { return n.Rng }
func (n *Variable) Span() Range      { return n.Rng }
func (n *VarVar) Span() Range        { return n.Rng }
func (n *Literal) Span() Range       { return n.Rng }
func (n *Interpolated) Span() Range  { return n.Rng }
func (n *ArrayItem) Span() Range     { return n.Rng }
func (n *Array) Span() Range         { return n.Rng }
func (n *Assign) Span() Range        { return n.Rng }
func (n *Binary) Span() Range        { return n.Rng }
func (n *Unary) Span() Range         { return n.Rng }
func (n *InstanceOf) Span() Range    { return n.Rng }
func (n *Cast) Span() Range          { return n.Rng }
func (n *New) Span() Range           { return n.Rng }
func (n *Call) Span() Range          { return n.Rng }
func (n *MethodCall) Span() Range    { return n.Rng }
func (n *PropertyFetch) Span() Range { return n.Rng }
func (n *StaticCall) Span() Range    { return n.Rng }
func (n *StaticProp) Span() Range    { return n.Rng }
func (n *ClassConst) Span() Range    { return n.Rng }
func (n *Index) Span() Range         { return n.Rng }
func (n *ClosureUse) Span() Range    { return n.Rng }
func (n *Closure) Span() Range       { return n.Rng }
func (n *Ternary) Span() Range       { return n.Rng }
func (n *Include) Span() Range       { return n.Rng }
func (n *Clone) Span() Range         { return n.Rng }
func (n *Other) Span() Range         { return n.Rng }
func (n *TypeHint) Span() Range      { return n.Rng }
func (n *Param) Span() Range         { return n.Rng }
func (n *Namespace) Span() Range     { return n.Rng }
func (n *UseItem) Span() Range       { return n.Rng }
func (n *UseDecl) Span() Range       { return n.Rng }
func (n *ClassDecl) Span() Range     { return n.Rng }
func (n *FuncDecl) Span() Range      { return n.Rng }
func (n *PropItem) Span() Range      { return n.Rng }
func (n *PropertyDecl) Span() Range  { return n.Rng }
func (n *ConstItem) Span() Range     { return n.Rng }
func (n *ConstDecl) Span() Range     { return n.Rng }
func (n *TraitRule) Span() Range     { return n.Rng }
func (n *TraitUse) Span() Range      { return n.Rng }
func (n *ExprStmt) Span() Range      { return n.Rng }
func (n *Echo) Span() Range          { return n.Rng }
func (n *Return) Span() Range        { return n.Rng }
func (n *Block) Span() Range         { return n.Rng }
func (n *If) Span() Range            { return n.Rng }
func (n *While) Span() Range         { return n.Rng }
func (n *For) Span() Range           { return n.Rng }
func (n *Case) Span() Range          { return n.Rng }
func (n *Switch) Span() Range        { return n.Rng }
func (n *Foreach) Span() Range       { return n.Rng }
func (n *Catch) Span() Range         { return n.Rng }
func (n *Try) Span() Range           { return n.Rng }
func (n *Global) Span() Range        { return n.Rng }
func (n *StaticItem) Span() Range    { return n.Rng }
func (n *StaticVar) Span() Range     { return n.Rng }
func (n *Unset) Span() Range         { return n.Rng }
func (n *Nop) Span() Range           { return n.Rng }

func (*Name) exprNode()          {}
func (*Variable) exprNode()      {}
func (*VarVar) exprNode()        {}
func (*Literal) exprNode()       {}
func (*Interpolated) exprNode()  {}
func (*Array) exprNode()         {}
func (*Assign) exprNode()        {}
func (*Binary) exprNode()        {}
func (*Unary) exprNode()         {}
func (*InstanceOf) exprNode()    {}
func (*Cast) exprNode()          {}
func (*New) exprNode()           {}
func (*Call) exprNode()          {}
func (*MethodCall) exprNode()    {}
func (*PropertyFetch) exprNode() {}
func (*StaticCall) exprNode()    {}
func (*StaticProp) exprNode()    {}
func (*ClassConst) exprNode()    {}
func (*Index) exprNode()         {}
func (*Closure) exprNode()       {}
func (*Ternary) exprNode()       {}
func (*Include) exprNode()       {}
func (*Clone) exprNode()         {}
func (*Other) exprNode()         {}

func (*Namespace) stmtNode()    {}
func (*UseDecl) stmtNode()      {}
func (*ClassDecl) stmtNode()    {}
func (*FuncDecl) stmtNode()     {}
func (*PropertyDecl) stmtNode() {}
func (*ConstDecl) stmtNode()    {}
func (*TraitUse) stmtNode()     {}
func (*ExprStmt) stmtNode()     {}
func (*Echo) stmtNode()         {}
func (*Return) stmtNode()       {}
func (*Block) stmtNode()        {}
func (*If) stmtNode()           {}
func (*While) stmtNode()        {}
func (*For) stmtNode()          {}
func (*Switch) stmtNode()       {}
func (*Foreach) stmtNode()      {}
func (*Try) stmtNode()          {}
func (*Global) stmtNode()       {}
func (*StaticVar) stmtNode()    {}
func (*Unset) stmtNode()        {}
func (*Nop) stmtNode()          {}
