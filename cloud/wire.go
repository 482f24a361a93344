package cloud

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/sb3vm/vm"
)

// Kind tags the type of a stored cloud value.
type Kind uint8

const (
	KindText Kind = iota
	KindNumber
)

// Record is one stored cloud variable.
type Record struct {
	Name    string  `cbor:"1,keyasint"`
	Kind    Kind    `cbor:"2,keyasint"`
	Text    string  `cbor:"3,keyasint,omitempty"`
	Number  float64 `cbor:"4,keyasint,omitempty"`
	Seq     uint64  `cbor:"5,keyasint"`
	Updated int64   `cbor:"6,keyasint"` // unix nanoseconds
}

// NewRecord captures v under name. Numbers and booleans are stored as
// numbers, everything else as text.
func NewRecord(name string, v vm.Value, seq uint64, now time.Time) Record {
	r := Record{Name: name, Seq: seq, Updated: now.UnixNano()}
	if v.IsNumber() || v.IsBool() {
		r.Kind = KindNumber
		r.Number = v.AsFloat()
	} else {
		r.Kind = KindText
		r.Text = v.AsString()
	}
	return r
}

// Value converts the record back to an executor value.
func (r Record) Value() vm.Value {
	if r.Kind == KindNumber {
		return vm.FromFloat(r.Number)
	}
	return vm.FromString(r.Text)
}

// cborEncMode uses canonical encoding so identical records produce
// identical bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cloud: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalRecord serializes a record to canonical CBOR.
func MarshalRecord(r Record) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalRecord deserializes a record from CBOR.
func UnmarshalRecord(data []byte) (Record, error) {
	var r Record
	if err := cbor.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("cloud: unmarshal record: %w", err)
	}
	return r, nil
}
