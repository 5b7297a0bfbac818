// Package wiretxtest builds valid (and deliberately invalid) wire-format
// frames for tests in internal/wiretx and its downstream consumers, so
// fixture bytes live in one place instead of being hand-rolled per test.
package wiretxtest

import (
	"encoding/binary"

	"github.com/holiman/uint256"

	"github.com/lux-mev/searcher/internal/wiretx"
)

// TxOpts customizes the header fields of a built frame; zero value is a
// sensible minimal transaction with no payload.
type TxOpts struct {
	ID       uint64
	Sender   []byte
	Target   []byte
	Fee      uint64
	GasLimit uint64
	Payload  []byte
	Version  byte // defaults to wiretx.WireVersion1 when 0
}

// EncodeTx assembles a complete wire frame from opts, padding/truncating
// Sender and Target to wiretx.AddrLen.
func EncodeTx(opts TxOpts) []byte {
	version := opts.Version
	if version == 0 {
		version = wiretx.WireVersion1
	}
	sender := fitAddr(opts.Sender)
	target := fitAddr(opts.Target)

	buf := make([]byte, wiretx.HeaderLen+len(opts.Payload))
	off := 0
	buf[off] = version
	off++
	binary.BigEndian.PutUint64(buf[off:], opts.ID)
	off += 8
	copy(buf[off:], sender)
	off += wiretx.AddrLen
	copy(buf[off:], target)
	off += wiretx.AddrLen
	binary.BigEndian.PutUint64(buf[off:], opts.Fee)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], opts.GasLimit)
	off += 8
	binary.BigEndian.PutUint16(buf[off:], uint16(len(opts.Payload)))
	off += 2
	copy(buf[off:], opts.Payload)

	return buf
}

// SwapOpts customizes a swap instruction payload body.
type SwapOpts struct {
	InTokenID  uint64
	OutTokenID uint64
	InAmount   *uint256.Int
	MinOut     *uint256.Int
	PoolID     uint64
}

// EncodeSwapPayload builds a SwapPayloadLen-byte swap instruction body
// suitable for use as TxOpts.Payload.
func EncodeSwapPayload(opts SwapOpts) []byte {
	buf := make([]byte, wiretx.SwapPayloadLen)
	off := 0
	buf[off] = wiretx.SwapDiscriminant
	off++
	binary.BigEndian.PutUint64(buf[off:], opts.InTokenID)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], opts.OutTokenID)
	off += 8

	in := opts.InAmount
	if in == nil {
		in = uint256.NewInt(0)
	}
	inB := in.Bytes32()
	copy(buf[off:off+32], inB[:])
	off += 32

	min := opts.MinOut
	if min == nil {
		min = uint256.NewInt(0)
	}
	minB := min.Bytes32()
	copy(buf[off:off+32], minB[:])
	off += 32

	binary.BigEndian.PutUint64(buf[off:], opts.PoolID)
	return buf
}

func fitAddr(b []byte) []byte {
	out := make([]byte, wiretx.AddrLen)
	copy(out, b)
	return out
}
