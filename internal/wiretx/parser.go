// Package wiretx decodes wire-format bytes into a Transaction view and,
// when the payload targets a known DEX program, a SwapIntent, without
// copying the input slice on the happy path.
//
// The concrete wire layout below is this engine's own chain-agnostic
// envelope, not any specific chain's format. A chain-specific ingress
// adapter is expected to translate into this envelope before handing
// bytes to Decode.
package wiretx

import (
	"encoding/binary"

	"github.com/holiman/uint256"

	"github.com/lux-mev/searcher/internal/errs"
	"github.com/lux-mev/searcher/internal/types"
)

const (
	AddrLen = 20

	// HeaderLen is the fixed prefix every transaction carries, up to and
	// including the 2-byte payload length field.
	HeaderLen = 1 /*version*/ + 8 /*id*/ + AddrLen /*sender*/ + AddrLen /*target*/ + 8 /*fee*/ + 8 /*gas limit*/ + 2 /*payload len*/

	WireVersion1 = 1

	// SwapDiscriminant marks a payload as a DEX swap instruction.
	SwapDiscriminant = 0x01
	// SwapPayloadLen is the exact byte length of a swap instruction body
	// (discriminant + 2x uint64 token ids + 2x uint256 amounts + pool id).
	SwapPayloadLen = 1 + 8 + 8 + 32 + 32 + 8
)

// Registry reports whether a target program id is one of the monitored DEX
// programs this parser knows how to decode swap instructions for. It is a
// narrow collaborator, not a concrete on-chain program list — populated by
// whoever configures the engine for a given chain.
type Registry interface {
	IsDEXProgram(target []byte) bool
}

// Decode parses raw into a Transaction view and, if the payload decodes
// cleanly against a known DEX program, a SwapIntent. arrivedAt is the
// ingress-stamped acquisition timestamp in microseconds, not part of the
// wire bytes.
//
// Zero-copy contract: Transaction.Sender, .Target and .Payload alias raw;
// the only allocations are the SwapIntent struct and its two uint256
// amounts, and only when a swap is decoded.
func Decode(raw []byte, arrivedAt int64, reg Registry) (types.Transaction, *types.SwapIntent, error) {
	if len(raw) < HeaderLen {
		return types.Transaction{}, nil, errs.New(errs.StageIngest, errs.MalformedWire, errs.Transient)
	}
	if raw[0] != WireVersion1 {
		return types.Transaction{}, nil, errs.New(errs.StageIngest, errs.UnknownVariant, errs.Transient)
	}

	off := 1
	id := binary.BigEndian.Uint64(raw[off : off+8])
	off += 8
	sender := raw[off : off+AddrLen]
	off += AddrLen
	target := raw[off : off+AddrLen]
	off += AddrLen
	fee := binary.BigEndian.Uint64(raw[off : off+8])
	off += 8
	gasLimit := binary.BigEndian.Uint64(raw[off : off+8])
	off += 8
	payloadLen := int(binary.BigEndian.Uint16(raw[off : off+2]))
	off += 2

	if off+payloadLen > len(raw) {
		return types.Transaction{}, nil, errs.New(errs.StageIngest, errs.TruncatedField, errs.Transient)
	}
	payload := raw[off : off+payloadLen]

	tx := types.Transaction{
		ID:         id,
		Sender:     sender,
		Target:     target,
		Payload:    payload,
		Fee:        fee,
		GasLimit:   gasLimit,
		AcquiredAt: arrivedAt,
	}

	if reg == nil || !reg.IsDEXProgram(target) {
		return tx, nil, nil
	}

	intent, ok := decodeSwap(payload)
	if !ok {
		// Known program, unrecognized inner discriminant is not a failure,
		// just no SwapIntent.
		return tx, nil, nil
	}
	return tx, intent, nil
}

// PeekFee reads the declared priority fee straight out of the header
// without validating or decoding the rest of the frame. It exists for
// ingress adapters that need to price a frame into a priority queue
// before the full decode (and any registry lookup) happens.
func PeekFee(raw []byte) (uint64, bool) {
	if len(raw) < HeaderLen {
		return 0, false
	}
	off := 1 + 8 + AddrLen + AddrLen
	return binary.BigEndian.Uint64(raw[off : off+8]), true
}

func decodeSwap(payload []byte) (*types.SwapIntent, bool) {
	if len(payload) != SwapPayloadLen || payload[0] != SwapDiscriminant {
		return nil, false
	}
	off := 1
	inToken := binary.BigEndian.Uint64(payload[off : off+8])
	off += 8
	outToken := binary.BigEndian.Uint64(payload[off : off+8])
	off += 8
	inAmount := new(uint256.Int).SetBytes(payload[off : off+32])
	off += 32
	minOut := new(uint256.Int).SetBytes(payload[off : off+32])
	off += 32
	poolID := binary.BigEndian.Uint64(payload[off : off+8])

	return &types.SwapIntent{
		InTokenID:  inToken,
		OutTokenID: outToken,
		InAmount:   inAmount,
		MinOut:     minOut,
		PoolID:     poolID,
	}, true
}
