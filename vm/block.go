package vm

// BlockID is a dense integer key into a BlockTable. Zero means "no block".
type BlockID int32

// NoBlock is the absent block id.
const NoBlock BlockID = 0

// ---------------------------------------------------------------------------
// Inputs and fields
// ---------------------------------------------------------------------------

// InputKind tags a ParsedInput.
type InputKind uint8

const (
	InputLiteral InputKind = iota
	InputBlock
	InputVariable
	InputList
	InputBroadcast
)

// ParsedInput is one input edge of a block: a literal, a reporter block to
// evaluate, or a reference to a variable, list or broadcast.
type ParsedInput struct {
	Kind    InputKind
	Literal Value
	Block   BlockID

	// RefID and RefName identify the variable, list or broadcast.
	RefID   string
	RefName string
}

// LiteralInput is shorthand for a literal ParsedInput.
func LiteralInput(v Value) ParsedInput { return ParsedInput{Kind: InputLiteral, Literal: v} }

// BlockInput is shorthand for an input evaluated from another block.
func BlockInput(id BlockID) ParsedInput { return ParsedInput{Kind: InputBlock, Block: id} }

// ParsedField is a static field choice, optionally naming a variable, list
// or broadcast by id.
type ParsedField struct {
	Value string
	ID    string
}

// Mutation carries custom-block metadata for procedures_prototype and
// procedures_call blocks.
type Mutation struct {
	ProcCode         string
	ArgumentIDs      []string
	ArgumentNames    []string
	ArgumentDefaults []string
	Warp             bool
}

// ---------------------------------------------------------------------------
// Block
// ---------------------------------------------------------------------------

// Block is a static node of the program graph. Blocks are never written
// while a project runs; per-invocation state lives in BlockState.
type Block struct {
	ID       BlockID
	Opcode   string
	Next     BlockID
	Parent   BlockID
	Inputs   map[string]ParsedInput
	Fields   map[string]ParsedField
	Mutation *Mutation
	TopLevel bool
	Shadow   bool

	// Chain is the top-level block of the script containing this block.
	Chain BlockID

	// SourceID is the id the block had in project.json.
	SourceID string
}

// Input returns the named input.
func (b *Block) Input(name string) (ParsedInput, bool) {
	in, ok := b.Inputs[name]
	return in, ok
}

// Field returns the named field's value, or "".
func (b *Block) Field(name string) string {
	return b.Fields[name].Value
}

// ---------------------------------------------------------------------------
// BlockTable
// ---------------------------------------------------------------------------

// BlockTable stores every block of a sprite under a dense id. Clones share
// their original's table.
type BlockTable struct {
	blocks []*Block
	ids    map[string]BlockID
}

// NewBlockTable creates an empty table. Slot 0 is reserved for NoBlock.
func NewBlockTable() *BlockTable {
	return &BlockTable{
		blocks: make([]*Block, 1, 64),
		ids:    make(map[string]BlockID),
	}
}

// Intern returns the dense id for a source id, allocating one if needed.
func (t *BlockTable) Intern(sourceID string) BlockID {
	if id, ok := t.ids[sourceID]; ok {
		return id
	}
	id := BlockID(len(t.blocks))
	t.blocks = append(t.blocks, nil)
	t.ids[sourceID] = id
	return id
}

// Lookup returns the dense id for a source id.
func (t *BlockTable) Lookup(sourceID string) (BlockID, bool) {
	id, ok := t.ids[sourceID]
	return id, ok
}

// New allocates a fresh block with opcode and returns it.
func (t *BlockTable) New(opcode string) *Block {
	id := BlockID(len(t.blocks))
	b := &Block{
		ID:     id,
		Opcode: opcode,
		Inputs: make(map[string]ParsedInput),
		Fields: make(map[string]ParsedField),
	}
	t.blocks = append(t.blocks, b)
	return b
}

// Put stores b under b.ID, which must come from Intern.
func (t *BlockTable) Put(b *Block) {
	if b.ID <= NoBlock || int(b.ID) >= len(t.blocks) {
		return
	}
	if b.Inputs == nil {
		b.Inputs = make(map[string]ParsedInput)
	}
	if b.Fields == nil {
		b.Fields = make(map[string]ParsedField)
	}
	t.blocks[b.ID] = b
}

// Get returns the block for id, or nil.
func (t *BlockTable) Get(id BlockID) *Block {
	if t == nil || id <= NoBlock || int(id) >= len(t.blocks) {
		return nil
	}
	return t.blocks[id]
}

// Len returns the number of allocated ids, excluding NoBlock.
func (t *BlockTable) Len() int { return len(t.blocks) - 1 }

// Each calls fn for every present block in id order.
func (t *BlockTable) Each(fn func(b *Block)) {
	for _, b := range t.blocks[1:] {
		if b != nil {
			fn(b)
		}
	}
}

// Link fills in Parent for substack and next edges and assigns Chain ids.
// It must run after every block of the sprite has been stored.
func (t *BlockTable) Link() {
	t.Each(func(b *Block) {
		if next := t.Get(b.Next); next != nil && next.Parent == NoBlock {
			next.Parent = b.ID
		}
		for _, in := range b.Inputs {
			if in.Kind != InputBlock {
				continue
			}
			if child := t.Get(in.Block); child != nil && child.Parent == NoBlock {
				child.Parent = b.ID
			}
		}
	})
	t.Each(func(b *Block) {
		top := b
		for steps := 0; top.Parent != NoBlock && steps < len(t.blocks); steps++ {
			p := t.Get(top.Parent)
			if p == nil {
				break
			}
			top = p
		}
		b.Chain = top.ID
	})
}
