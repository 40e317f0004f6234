package ir

// Expr represents one expression node in the query IR.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in the validator and compiler.
//
// Expression types:
//   - Column: a table.column or bare column reference
//   - Literal: an inline scalar value
//   - Func: a scalar function call (including CAST and arithmetic pseudo-functions)
//   - Aggregate: an aggregate function call (COUNT, SUM, ...)
//   - Window: a window function with PARTITION BY / ORDER BY
//   - Case: a CASE WHEN ... THEN ... ELSE ... END expression
//   - Subquery: a full nested query
//
// Every variant carries an optional alias, reported via ExprAlias.
type Expr interface {
	exprNode() // Marker method - seals interface to this package

	// ExprAlias returns the expression's alias, or "" if none.
	ExprAlias() string
}

// Column references a column, either qualified ("orders.total") or bare
// ("total"). Bare references are resolved against all visible tables by
// the validator.
type Column struct {
	Ref   string
	Alias string
}

func (Column) exprNode()            {}
func (c Column) ExprAlias() string { return c.Alias }

// Literal is an inline scalar value. The value is constrained to the
// Scalar union; floats are permitted here (unlike event-log IRs) because
// SQL literals require them.
//
// Literals compile to inline SQL text, not bind parameters. String values
// are escaped by doubling single quotes - that escaping is a hard
// invariant of the trust boundary, not an optimization.
type Literal struct {
	Value Scalar
	Alias string
}

func (Literal) exprNode()            {}
func (l Literal) ExprAlias() string { return l.Alias }

// Arithmetic pseudo-function names. These compile to infix operators
// rather than function-call syntax.
const (
	FuncMultiply = "MULTIPLY"
	FuncDivide   = "DIVIDE"
	FuncAdd      = "ADD"
	FuncSubtract = "SUBTRACT"
	FuncModulo   = "MODULO"
)

// FuncCast is the special-cased CAST pseudo-function. Its second argument
// must be a Literal naming the target type; it compiles to
// CAST(expr AS type).
const FuncCast = "CAST"

// Func is a scalar function call. CAST and the arithmetic pseudo-functions
// (MULTIPLY, DIVIDE, ADD, SUBTRACT, MODULO) receive special rendering.
type Func struct {
	Name  string
	Args  []Expr
	Alias string
}

func (Func) exprNode()            {}
func (f Func) ExprAlias() string { return f.Alias }

// Aggregate is an aggregate function call such as COUNT, SUM, AVG, MIN,
// MAX. Distinct renders as FUNC(DISTINCT args).
type Aggregate struct {
	Name     string
	Args     []Expr
	Distinct bool
	Alias    string
}

func (Aggregate) exprNode()            {}
func (a Aggregate) ExprAlias() string { return a.Alias }

// Window is a window function: FUNC(args) OVER (PARTITION BY ... ORDER BY ...).
type Window struct {
	Name        string
	Args        []Expr
	PartitionBy []string
	OrderBy     []OrderBy
	Alias       string
}

func (Window) exprNode()            {}
func (w Window) ExprAlias() string { return w.Alias }

// CaseWhen is one WHEN condition THEN result arm of a Case expression.
type CaseWhen struct {
	Condition *Predicate
	Result    Expr
}

// Case is a searched CASE expression:
// CASE WHEN cond THEN result [...] ELSE default END.
type Case struct {
	Whens []CaseWhen
	Else  Expr // nil = no ELSE clause
	Alias string
}

func (Case) exprNode()            {}
func (c Case) ExprAlias() string { return c.Alias }

// Subquery wraps a full query as an expression. The nested query is owned
// by value through a pointer; CTEs and subqueries form a tree, never a
// graph (CTEs reference each other only by name at the SQL-text level).
type Subquery struct {
	Query *Query
	Alias string
}

func (Subquery) exprNode()            {}
func (s Subquery) ExprAlias() string { return s.Alias }

// Conjunction links a predicate to the NEXT predicate in a list.
type Conjunction string

const (
	ConjAnd Conjunction = "AND"
	ConjOr  Conjunction = "OR"
)

// Predicate is a single comparison in a WHERE/HAVING/ON chain.
// A nil Right means a unary operator such as IS NULL.
// Conjunction applies between this predicate and the one after it.
type Predicate struct {
	Left        Expr
	Operator    string
	Right       Expr // nil for unary operators
	Conjunction Conjunction
}

// JoinKind enumerates supported join types.
type JoinKind string

const (
	JoinInner JoinKind = "INNER"
	JoinLeft  JoinKind = "LEFT"
	JoinRight JoinKind = "RIGHT"
	JoinFull  JoinKind = "FULL"
	JoinCross JoinKind = "CROSS"
)

// Join combines the FROM table with another table. On is empty for CROSS
// joins; any other kind with an empty On list is flagged by the corrector
// as a cartesian-product risk.
type Join struct {
	Kind  JoinKind
	Table string
	Alias string
	On    []Predicate
}

// CTE is a named common table expression. The body is itself a full query.
type CTE struct {
	Name  string
	Query *Query
}

// Direction is an ORDER BY sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// OrderBy is one ORDER BY entry. Column may be a plain column reference or
// a pre-rendered expression containing parentheses (e.g. "COUNT(*)"),
// which the compiler passes through verbatim.
type OrderBy struct {
	Column    string
	Direction Direction
}

// Ambiguity is a generation-time signal that more than one interpretation
// of a phrase or column is plausible. Surfaced to the user as a
// clarification question.
type Ambiguity struct {
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Field    string   `json:"field,omitempty"`
}

// Query is the root of the IR: one SQL statement.
//
// INVARIANTS:
//   - Select is non-empty
//   - every FromTable/Join.Table resolves to a schema table or an
//     enclosing CTE name
//   - Offset is only meaningful when Limit is set
//
// A Query is constructed once per request from sanitized generator output,
// flows read-only through validator/clarification/compiler, and is
// discarded after the pipeline emits a response.
type Query struct {
	CTEs      []CTE
	Select    []Expr
	Distinct  bool
	FromTable string // "" = no FROM clause (e.g. SELECT 1)
	FromAlias string
	Joins     []Join
	Where     []Predicate
	GroupBy   []string
	Having    []Predicate
	OrderBy   []OrderBy
	Limit     *int
	Offset    *int

	// Parameters carries generator-supplied bind values. Under the
	// inline-literal compilation policy the compiler never appends to
	// this map; it is passed through as an interface seam for a future
	// parameterized mode.
	Parameters map[string]Scalar

	// Confidence and Ambiguities are generator metadata consumed by the
	// clarification detector.
	Confidence  float64
	Ambiguities []Ambiguity
}

// Tables returns the FROM table plus all join tables, in declaration
// order. Used for context tracking and corrector checks.
func (q *Query) Tables() []string {
	tables := make([]string, 0, 1+len(q.Joins))
	if q.FromTable != "" {
		tables = append(tables, q.FromTable)
	}
	for _, j := range q.Joins {
		tables = append(tables, j.Table)
	}
	return tables
}
