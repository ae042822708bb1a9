package node

import (
	"encoding/binary"
	"hash"
	"math"
)

// HashState feeds h with every byte of graph state reachable from output
// that can affect rendered bytes: topology (node IDs, kinds, edges),
// literal parameter values, and the identities of connected streams.
//
// Omitting state here causes stale cache reuse; including too much only
// costs cache misses. When in doubt a field is written.
func (g *Graph) HashState(h hash.Hash, output ID) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, id := range g.reachable(output) {
		n := g.nodes[id]
		writeUint64(h, uint64(id))
		h.Write([]byte{byte(n.kind)})
		for i := range n.params {
			p := &n.params[i]
			writeString(h, p.Name)
			if p.IsConnected() {
				h.Write([]byte{1})
				writeUint64(h, uint64(p.conn))
				continue
			}
			h.Write([]byte{0})
			writeValue(h, p.Literal)
		}
	}
}

// writeValue serializes a literal deterministically. Texture and samples
// values never appear as literals and hash as their type tag only.
func writeValue(h hash.Hash, v Value) {
	h.Write([]byte{byte(v.typ)})
	switch v.typ {
	case TypeFloat:
		writeUint64(h, math.Float64bits(v.float))
	case TypeString:
		writeString(h, v.str)
	case TypeRational:
		writeUint64(h, uint64(v.rational.Num()))
		writeUint64(h, uint64(v.rational.Den()))
	case TypeMatrix:
		for _, f := range v.matrix {
			writeUint32(h, math.Float32bits(f))
		}
	case TypeFootage:
		f := v.footage
		writeString(h, f.ID())
		writeString(h, f.DecoderID())
		// Stream identities: switching a footage item's active stream must
		// change the hash even when no literal changed.
		for i := 0; i < f.StreamCount(); i++ {
			s := f.Stream(i)
			writeString(h, s.Identity())
			writeUint64(h, uint64(s.Width))
			writeUint64(h, uint64(s.Height))
			h.Write([]byte{byte(s.Format)})
			writeUint64(h, uint64(s.FrameRate.Num()))
			writeUint64(h, uint64(s.FrameRate.Den()))
			writeUint64(h, uint64(s.SampleRate))
			writeUint64(h, uint64(s.Channels))
		}
	}
}

func writeUint64(h hash.Hash, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

func writeUint32(h hash.Hash, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	h.Write(buf[:])
}

func writeString(h hash.Hash, s string) {
	writeUint64(h, uint64(len(s)))
	h.Write([]byte(s))
}
