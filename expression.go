package facetx

// Expression is a node of the query tree evaluated by an Index.
//
// Expressions double as SearchOptions: handing one to SearchWithFacets narrows
// the hits and every facet context with it, as WithFilter does.
type Expression interface {
	SearchOption
	// expr marks the node types that belong to the query tree.
	expr()
}

// exprNode supplies the expr marker to every node type.
type exprNode struct{}

func (exprNode) expr() {}

// MatchAllExpr matches every live document.
type MatchAllExpr struct{ exprNode }

// Apply adds the expression to the caller filters of a search.
func (x MatchAllExpr) Apply(cfg *SearchConfig) { cfg.addFilter(x) }

// MatchAll returns an expression matching every live document. It is the base
// query of an unfiltered faceted search.
func MatchAll() Expression { return MatchAllExpr{} }

// MatchExpr is a full-text clause over an analyzed field.
type MatchExpr struct {
	exprNode
	// Field is the analyzed field to search.
	Field string
	// Text is tokenized like the field; a document matches on any token.
	Text string
}

// Apply adds the expression to the caller filters of a search.
func (x MatchExpr) Apply(cfg *SearchConfig) { cfg.addFilter(x) }

// Match returns a full-text clause over field. Indexes that rank hits score
// documents by how many tokens of text they contain.
func Match(field, text string) Expression { return MatchExpr{Field: field, Text: text} }

// AndExpr is the intersection of its operands.
type AndExpr struct {
	exprNode
	// Exprs are the operands. An empty list matches every live document.
	Exprs []Expression
}

// Apply adds the expression to the caller filters of a search.
func (x AndExpr) Apply(cfg *SearchConfig) { cfg.addFilter(x) }

// And returns the intersection of exprs. Drilldown queries are built as an
// And of the base query and one clause per selected dimension.
func And(exprs ...Expression) Expression { return AndExpr{Exprs: exprs} }

// OrExpr is the union of its operands.
type OrExpr struct {
	exprNode
	// Exprs are the operands. An empty list matches nothing.
	Exprs []Expression
}

// Apply adds the expression to the caller filters of a search.
func (x OrExpr) Apply(cfg *SearchConfig) { cfg.addFilter(x) }

// Or returns the union of exprs. A dimension with several selected values
// becomes an Or of one clause per value.
func Or(exprs ...Expression) Expression { return OrExpr{Exprs: exprs} }

// NotExpr is the complement of its operand among live documents.
type NotExpr struct {
	exprNode
	// Inner is the negated expression.
	Inner Expression
}

// Apply adds the expression to the caller filters of a search.
func (x NotExpr) Apply(cfg *SearchConfig) { cfg.addFilter(x) }

// Not returns the live documents inner does not match. Negated full-text
// clauses never contribute to scoring.
func Not(inner Expression) Expression { return NotExpr{Inner: inner} }

// EqExpr matches an exact indexed term.
type EqExpr struct {
	exprNode
	// Field is the field holding the term.
	Field string
	// Term is compared byte for byte with the indexed terms.
	Term string
}

// Apply adds the expression to the caller filters of a search.
func (x EqExpr) Apply(cfg *SearchConfig) { cfg.addFilter(x) }

// Eq returns an exact term clause. Drilldown uses it for term selections.
func Eq(field, term string) Expression { return EqExpr{Field: field, Term: term} }

// RangeExpr matches documents with a term of Field in [From, To].
// Bounds compare as raw strings, so numbers need a sortable encoding (for
// example zero padding) to range correctly.
type RangeExpr struct {
	exprNode
	// Field is the field holding the terms.
	Field string
	// From is the inclusive lower bound. Empty leaves it open.
	From string
	// To is the inclusive upper bound. Empty leaves it open.
	To string
}

// Apply adds the expression to the caller filters of a search.
func (x RangeExpr) Apply(cfg *SearchConfig) { cfg.addFilter(x) }

// TermRange returns an inclusive raw-term range clause. Drilldown uses it for
// range selections.
func TermRange(field, from, to string) Expression {
	return RangeExpr{Field: field, From: from, To: to}
}

// ExistsExpr matches documents with any value in a field.
type ExistsExpr struct {
	exprNode
	// Field is the field that must hold a value.
	Field string
}

// Apply adds the expression to the caller filters of a search.
func (x ExistsExpr) Apply(cfg *SearchConfig) { cfg.addFilter(x) }

// Exists returns a clause matching documents that hold any value in field.
func Exists(field string) Expression { return ExistsExpr{Field: field} }
