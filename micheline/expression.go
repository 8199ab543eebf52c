package micheline

import "math/big"

// NodeKind discriminates the forms a Micheline node can take.
type NodeKind uint8

const (
	NodeInt NodeKind = iota
	NodeString
	NodeBytes
	NodePrim
	NodeSeq
)

// Node is one element of a decoded expression. Nodes live in the arena
// of the Expression that owns them; Args holds arena indices.
type Node struct {
	Kind   NodeKind
	Op     Opcode   // NodePrim
	Int    *big.Int // NodeInt
	Str    string   // NodeString, raw bytes before display escaping
	Bytes  []byte   // NodeBytes
	Annots string   // NodePrim, space separated as encoded
	Args   []int32  // NodePrim arguments or NodeSeq elements
}

// Expression is the structured form built while the renderer streams.
// Nodes appear in decode order; index zero is the root.
type Expression struct {
	Nodes []Node
}

// Root returns the root node, or nil before anything decoded.
func (e *Expression) Root() *Node {
	if e == nil || len(e.Nodes) == 0 {
		return nil
	}
	return &e.Nodes[0]
}

// At returns the node behind an Args entry.
func (e *Expression) At(i int32) *Node { return &e.Nodes[i] }
