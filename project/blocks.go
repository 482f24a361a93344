package project

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/chazu/sb3vm/vm"
)

// Primitive codes used by inputs and top-level reporter arrays.
const (
	primMathNumber     = 4
	primPositiveNumber = 5
	primWholeNumber    = 6
	primInteger        = 7
	primAngle          = 8
	primColor          = 9
	primText           = 10
	primBroadcast      = 11
	primVariable       = 12
	primList           = 13
)

type rawBlock struct {
	Opcode   string                       `json:"opcode"`
	Next     *string                      `json:"next"`
	Parent   *string                      `json:"parent"`
	Inputs   map[string][]json.RawMessage `json:"inputs"`
	Fields   map[string][]json.RawMessage `json:"fields"`
	Shadow   bool                         `json:"shadow"`
	TopLevel bool                         `json:"topLevel"`
	Mutation *rawMutation                 `json:"mutation"`
}

type rawMutation struct {
	ProcCode         string          `json:"proccode"`
	ArgumentIDs      json.RawMessage `json:"argumentids"`
	ArgumentNames    json.RawMessage `json:"argumentnames"`
	ArgumentDefaults json.RawMessage `json:"argumentdefaults"`
	Warp             json.RawMessage `json:"warp"`
}

// decodeBlocks fills sp.Blocks. Ids are interned first so that next,
// parent and input references resolve regardless of map order.
func decodeBlocks(sp *vm.Sprite, target string, blocks map[string]json.RawMessage) {
	t := sp.Blocks
	for id := range blocks {
		t.Intern(id)
	}
	for id, raw := range blocks {
		b, err := decodeBlock(t, id, raw)
		if err != nil {
			log.Warningf("project: %s: skipping block %s: %s", target, id, err)
			continue
		}
		if b != nil {
			t.Put(b)
		}
	}
}

func decodeBlock(t *vm.BlockTable, id string, raw json.RawMessage) (*vm.Block, error) {
	if len(raw) > 0 && raw[0] == '[' {
		return decodeTopLevelPrimitive(t, id, raw)
	}

	var rb rawBlock
	if err := json.Unmarshal(raw, &rb); err != nil {
		return nil, err
	}
	if rb.Opcode == "" {
		return nil, fmt.Errorf("missing opcode")
	}

	b := &vm.Block{
		ID:       t.Intern(id),
		Opcode:   rb.Opcode,
		TopLevel: rb.TopLevel,
		Shadow:   rb.Shadow,
		SourceID: id,
		Inputs:   make(map[string]vm.ParsedInput, len(rb.Inputs)),
		Fields:   make(map[string]vm.ParsedField, len(rb.Fields)),
	}
	if rb.Next != nil {
		b.Next, _ = t.Lookup(*rb.Next)
	}
	if rb.Parent != nil {
		b.Parent, _ = t.Lookup(*rb.Parent)
	}

	for name, in := range rb.Inputs {
		if parsed, ok := decodeInput(t, in); ok {
			b.Inputs[name] = parsed
		}
	}
	for name, f := range rb.Fields {
		if len(f) == 0 {
			continue
		}
		field := vm.ParsedField{Value: literalString(f[0])}
		if len(f) > 1 {
			field.ID = literalString(f[1])
		}
		b.Fields[name] = field
	}

	if rb.Mutation != nil {
		m, err := decodeMutation(rb.Mutation)
		if err != nil {
			return nil, fmt.Errorf("mutation: %w", err)
		}
		b.Mutation = m
	}
	return b, nil
}

// decodeTopLevelPrimitive turns a loose variable or list reporter, stored
// as [12|13, name, id, x, y], into an ordinary reporter block.
func decodeTopLevelPrimitive(t *vm.BlockTable, id string, raw json.RawMessage) (*vm.Block, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, err
	}
	if len(arr) < 3 {
		return nil, fmt.Errorf("short primitive array")
	}
	b := &vm.Block{
		ID:       t.Intern(id),
		TopLevel: true,
		SourceID: id,
	}
	field := vm.ParsedField{Value: literalString(arr[1]), ID: literalString(arr[2])}
	switch literalInt(arr[0]) {
	case primVariable:
		b.Opcode = "data_variable"
		b.Fields = map[string]vm.ParsedField{"VARIABLE": field}
	case primList:
		b.Opcode = "data_listcontents"
		b.Fields = map[string]vm.ParsedField{"LIST": field}
	default:
		// Loose literals and broadcast menus do nothing on their own.
		return nil, nil
	}
	return b, nil
}

// decodeInput handles [shadowType, value, shadowValue?]. The value is a
// block id, a primitive array, or null when an obscuring block was removed.
func decodeInput(t *vm.BlockTable, in []json.RawMessage) (vm.ParsedInput, bool) {
	if len(in) < 2 {
		return vm.ParsedInput{}, false
	}
	v := in[1]
	if isNull(v) && len(in) > 2 {
		v = in[2]
	}
	if isNull(v) {
		return vm.ParsedInput{}, false
	}

	switch v[0] {
	case '"':
		id, ok := t.Lookup(literalString(v))
		if !ok {
			return vm.ParsedInput{}, false
		}
		return vm.BlockInput(id), true
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(v, &arr); err != nil || len(arr) < 2 {
			return vm.ParsedInput{}, false
		}
		return decodePrimitive(arr)
	}
	return vm.ParsedInput{}, false
}

func decodePrimitive(arr []json.RawMessage) (vm.ParsedInput, bool) {
	switch code := literalInt(arr[0]); code {
	case primMathNumber, primPositiveNumber, primWholeNumber, primInteger, primAngle, primColor, primText:
		return vm.LiteralInput(literalValue(arr[1])), true
	case primBroadcast, primVariable, primList:
		p := vm.ParsedInput{RefName: literalString(arr[1])}
		if len(arr) > 2 {
			p.RefID = literalString(arr[2])
		}
		switch code {
		case primBroadcast:
			p.Kind = vm.InputBroadcast
			p.Literal = vm.FromString(p.RefName)
		case primVariable:
			p.Kind = vm.InputVariable
		default:
			p.Kind = vm.InputList
		}
		return p, true
	}
	return vm.ParsedInput{}, false
}

func decodeMutation(rm *rawMutation) (*vm.Mutation, error) {
	m := &vm.Mutation{ProcCode: rm.ProcCode, Warp: literalBool(rm.Warp)}
	var err error
	if m.ArgumentIDs, err = stringList(rm.ArgumentIDs); err != nil {
		return nil, fmt.Errorf("argumentids: %w", err)
	}
	if m.ArgumentNames, err = stringList(rm.ArgumentNames); err != nil {
		return nil, fmt.Errorf("argumentnames: %w", err)
	}
	if m.ArgumentDefaults, err = stringList(rm.ArgumentDefaults); err != nil {
		return nil, fmt.Errorf("argumentdefaults: %w", err)
	}
	return m, nil
}

// ---------------------------------------------------------------------------
// Literal helpers
// ---------------------------------------------------------------------------

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// stringList decodes a list that is either a JSON array or a string
// holding a JSON array, as mutations store it.
func stringList(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s == "" {
			return nil, nil
		}
		raw = json.RawMessage(s)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = literalString(item)
	}
	return out, nil
}

// literalValue converts a JSON scalar to a Value. Integral numbers keep
// integer kind.
func literalValue(raw json.RawMessage) vm.Value {
	var x any
	if err := json.Unmarshal(raw, &x); err != nil {
		return vm.FromString("")
	}
	switch x := x.(type) {
	case string:
		return vm.FromString(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return vm.FromInt(int64(x))
		}
		return vm.FromFloat(x)
	case bool:
		return vm.FromBool(x)
	}
	return vm.FromString("")
}

func literalString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	return literalValue(raw).AsString()
}

func literalInt(raw json.RawMessage) int {
	return int(literalValue(raw).AsFloat())
}

// literalBool accepts true/false and their string forms.
func literalBool(raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}
	return literalValue(raw).AsBool()
}
