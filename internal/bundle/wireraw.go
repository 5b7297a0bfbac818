package bundle

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/holiman/uint256"

	"github.com/lux-mev/searcher/internal/types"
	"github.com/lux-mev/searcher/internal/wiretx"
)

// WireRawBuilder is the production RawBuilder: it encodes a leg straight
// back into this engine's own wire envelope (see internal/wiretx), the
// same format Decode reads, so a built leg is itself a valid frame a
// relay or a downstream simulator can re-decode.
type WireRawBuilder struct {
	sender []byte // this searcher's own signing address, AddrLen bytes
	target []byte // the DEX program address legs are submitted against
	nextID atomic.Uint64
}

// NewWireRawBuilder builds a WireRawBuilder. sender and target are padded
// or truncated to wiretx.AddrLen the same way wiretx frames always are.
func NewWireRawBuilder(sender, target []byte) *WireRawBuilder {
	return &WireRawBuilder{sender: fitAddr(sender), target: fitAddr(target)}
}

// BuildLeg implements RawBuilder, encoding intent and fee as one wire
// frame with a fresh, builder-local, monotonically increasing id.
func (w *WireRawBuilder) BuildLeg(intent types.SwapIntent, fee uint64) ([]byte, error) {
	payload := encodeSwapPayload(intent)

	buf := make([]byte, wiretx.HeaderLen+len(payload))
	off := 0
	buf[off] = wiretx.WireVersion1
	off++
	binary.BigEndian.PutUint64(buf[off:], w.nextID.Add(1))
	off += 8
	copy(buf[off:], w.sender)
	off += wiretx.AddrLen
	copy(buf[off:], w.target)
	off += wiretx.AddrLen
	binary.BigEndian.PutUint64(buf[off:], fee)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], 0) // gas limit: simulated legs carry no independent limit
	off += 8
	binary.BigEndian.PutUint16(buf[off:], uint16(len(payload)))
	off += 2
	copy(buf[off:], payload)

	return buf, nil
}

func encodeSwapPayload(intent types.SwapIntent) []byte {
	buf := make([]byte, wiretx.SwapPayloadLen)
	off := 0
	buf[off] = wiretx.SwapDiscriminant
	off++
	binary.BigEndian.PutUint64(buf[off:], intent.InTokenID)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], intent.OutTokenID)
	off += 8

	in := intent.InAmount
	if in == nil {
		in = uint256.NewInt(0)
	}
	inB := in.Bytes32()
	copy(buf[off:off+32], inB[:])
	off += 32

	min := intent.MinOut
	if min == nil {
		min = uint256.NewInt(0)
	}
	minB := min.Bytes32()
	copy(buf[off:off+32], minB[:])
	off += 32

	binary.BigEndian.PutUint64(buf[off:], intent.PoolID)
	return buf
}

func fitAddr(b []byte) []byte {
	out := make([]byte, wiretx.AddrLen)
	copy(out, b)
	return out
}
