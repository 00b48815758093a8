package timelock

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/roach88/timelock/internal/ir"
)

// AssetKind selects the custody path of a lock.
type AssetKind uint8

const (
	KindNative AssetKind = 0
	KindToken  AssetKind = 1
)

// Domain tags, one per asset kind, so a depositor can hold one lock of
// each kind at distinct addresses.
const (
	TagNative = "time-lock-sol"
	TagToken  = "time-lock-spl"
)

func (k AssetKind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindToken:
		return "token"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Tag returns the derivation domain tag for k.
func (k AssetKind) Tag() string {
	if k == KindToken {
		return TagToken
	}
	return TagNative
}

// ParseAssetKind accepts "native" or "token".
func ParseAssetKind(s string) (AssetKind, error) {
	switch s {
	case "native", "sol":
		return KindNative, nil
	case "token", "spl":
		return KindToken, nil
	default:
		return 0, fmt.Errorf("unknown asset kind %q", s)
	}
}

// LockState is the persisted lifecycle state of a live record.
type LockState uint8

const (
	StateRegistered LockState = 1
	StateFunded     LockState = 2
)

func (s LockState) String() string {
	switch s {
	case StateRegistered:
		return StateNameRegistered
	case StateFunded:
		return StateNameFunded
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// RecordSize is the encoded size of a Record.
const RecordSize = 8 + 32 + 8 + 8 + 1 + 1 + 1 + 32 + 1

var recordDiscriminator = func() [8]byte {
	sum := sha256.Sum256([]byte("account:TimeLockAccount"))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}()

// Record is the persisted state of one lock.
type Record struct {
	Depositor  ir.Pubkey
	Amount     uint64
	UnlockTime int64
	Nonce      uint8
	Kind       AssetKind
	Mint       ir.Pubkey // Set iff Kind == KindToken
	State      LockState
}

// HasMint reports whether the record references a token class.
func (r Record) HasMint() bool {
	return r.Kind == KindToken
}

// Encode returns the binary layout of r.
func (r Record) Encode() ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, RecordSize)
	buf = append(buf, recordDiscriminator[:]...)
	buf = append(buf, r.Depositor[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, r.Amount)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(r.UnlockTime))
	buf = append(buf, r.Nonce, byte(r.Kind))
	if r.HasMint() {
		buf = append(buf, 1)
		buf = append(buf, r.Mint[:]...)
	} else {
		buf = append(buf, 0)
		buf = append(buf, make([]byte, 32)...)
	}
	buf = append(buf, byte(r.State))
	return buf, nil
}

// DecodeRecord parses the binary layout produced by Encode.
func DecodeRecord(data []byte) (Record, error) {
	if len(data) != RecordSize {
		return Record{}, fmt.Errorf("record: size %d, want %d", len(data), RecordSize)
	}
	if !bytes.Equal(data[:8], recordDiscriminator[:]) {
		return Record{}, fmt.Errorf("record: discriminator mismatch")
	}

	var r Record
	off := 8
	copy(r.Depositor[:], data[off:off+32])
	off += 32
	r.Amount = binary.LittleEndian.Uint64(data[off:])
	off += 8
	r.UnlockTime = int64(binary.LittleEndian.Uint64(data[off:]))
	off += 8
	r.Nonce = data[off]
	r.Kind = AssetKind(data[off+1])
	mintPresent := data[off+2]
	off += 3
	copy(r.Mint[:], data[off:off+32])
	off += 32
	r.State = LockState(data[off])

	switch mintPresent {
	case 0:
		if !r.Mint.IsZero() {
			return Record{}, fmt.Errorf("record: absent mint has non-zero bytes")
		}
	case 1:
	default:
		return Record{}, fmt.Errorf("record: bad mint presence byte %d", mintPresent)
	}
	if (mintPresent == 1) != r.HasMint() {
		return Record{}, fmt.Errorf("record: mint presence inconsistent with %s kind", r.Kind)
	}
	if err := r.validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}

func (r Record) validate() error {
	if r.Kind != KindNative && r.Kind != KindToken {
		return fmt.Errorf("record: unknown asset kind %d", r.Kind)
	}
	if r.State != StateRegistered && r.State != StateFunded {
		return fmt.Errorf("record: unknown state %d", r.State)
	}
	if r.Kind == KindToken && r.Mint.IsZero() {
		return fmt.Errorf("record: token lock without mint")
	}
	if r.Kind == KindNative && !r.Mint.IsZero() {
		return fmt.Errorf("record: native lock with mint")
	}
	return nil
}
