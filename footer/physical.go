package footer

import (
	"fmt"

	"github.com/f3-format/f3/f3err"
)

// PhysicalLeaf carries the decoding parameters for one leaf column: which
// decoder produces/consumes its bytes, the shared dictionary it draws from
// if any, and decoder-specific encoder parameters opaque to the reader.
type PhysicalLeaf struct {
	DecoderID     uint32
	DictionaryID  uint32
	HasDictionary bool
	EncoderParams []byte
}

// PhysicalNode is one node of the logical-to-physical tree. It has the same
// branching shape as the corresponding Field in the schema tree: Leaf is
// set exactly when the schema Field at this position IsLeaf.
type PhysicalNode struct {
	Leaf     *PhysicalLeaf
	Children []PhysicalNode
}

// LeafPhysicals walks nodes in the same depth-first order LeafFields walks
// the schema tree, so index i of each slice describes the same leaf column.
func LeafPhysicals(nodes []PhysicalNode) []PhysicalLeaf {
	var leaves []PhysicalLeaf
	var walk func([]PhysicalNode)
	walk = func(ns []PhysicalNode) {
		for _, n := range ns {
			if n.Leaf != nil {
				leaves = append(leaves, *n.Leaf)
			} else {
				walk(n.Children)
			}
		}
	}
	walk(nodes)
	return leaves
}

// ValidatePhysicalTreeShape checks that fields and nodes agree structurally,
// node-for-node, which reader.Build relies on to zip schema leaves with
// their decoding parameters.
func ValidatePhysicalTreeShape(fields []Field, nodes []PhysicalNode) error {
	if len(fields) != len(nodes) {
		return f3err.New(f3err.ParseError, "logical-to-physical tree arity mismatch with schema tree")
	}
	for i, f := range fields {
		n := nodes[i]
		if f.IsLeaf() != (n.Leaf != nil) {
			return f3err.New(f3err.ParseError, fmt.Sprintf("logical-to-physical node %d leaf/branch mismatch with schema", i))
		}
		if !f.IsLeaf() {
			if err := ValidatePhysicalTreeShape(f.Children, n.Children); err != nil {
				return err
			}
		}
	}
	return nil
}

func encodePhysicalList(w *tlvWriter, nodes []PhysicalNode) {
	w.putUvarint(uint64(len(nodes)))
	for _, n := range nodes {
		encodePhysicalNode(w, n)
	}
}

func encodePhysicalNode(w *tlvWriter, n PhysicalNode) {
	rec := newTLVWriter()
	if n.Leaf != nil {
		rec.putBool(true)
		rec.putUvarint(uint64(n.Leaf.DecoderID))
		rec.putBool(n.Leaf.HasDictionary)
		rec.putUvarint(uint64(n.Leaf.DictionaryID))
		rec.putBytesLenPrefixed(n.Leaf.EncoderParams)
	} else {
		rec.putBool(false)
	}
	encodePhysicalList(rec, n.Children)
	w.putBytesLenPrefixed(rec.Bytes())
}

func decodePhysicalList(r *tlvReader) ([]PhysicalNode, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// An empty list decodes as nil, matching the nil Children of a leaf.
		return nil, nil
	}
	nodes := make([]PhysicalNode, 0, n)
	for i := uint64(0); i < n; i++ {
		node, err := decodePhysicalNode(r)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func decodePhysicalNode(r *tlvReader) (PhysicalNode, error) {
	recBytes, err := r.bytesLenPrefixed()
	if err != nil {
		return PhysicalNode{}, err
	}
	rec := newTLVReader(recBytes)
	isLeaf, err := rec.bool()
	if err != nil {
		return PhysicalNode{}, err
	}
	var leaf *PhysicalLeaf
	if isLeaf {
		decoderID, err := rec.uvarint()
		if err != nil {
			return PhysicalNode{}, err
		}
		hasDict, err := rec.bool()
		if err != nil {
			return PhysicalNode{}, err
		}
		dictID, err := rec.uvarint()
		if err != nil {
			return PhysicalNode{}, err
		}
		params, err := rec.bytesLenPrefixed()
		if err != nil {
			return PhysicalNode{}, err
		}
		leaf = &PhysicalLeaf{
			DecoderID:     uint32(decoderID),
			HasDictionary: hasDict,
			DictionaryID:  uint32(dictID),
			EncoderParams: append([]byte(nil), params...),
		}
	}
	children, err := decodePhysicalList(rec)
	if err != nil {
		return PhysicalNode{}, err
	}
	return PhysicalNode{Leaf: leaf, Children: children}, nil
}

// EncodePhysicalTree serializes the logical-to-physical tree to bytes.
func EncodePhysicalTree(nodes []PhysicalNode) []byte {
	w := newTLVWriter()
	encodePhysicalList(w, nodes)
	return w.Bytes()
}

// DecodePhysicalTree parses bytes produced by EncodePhysicalTree.
func DecodePhysicalTree(buf []byte) ([]PhysicalNode, error) {
	r := newTLVReader(buf)
	return decodePhysicalList(r)
}
