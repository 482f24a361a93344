package vm

import (
	"math"

	"github.com/google/uuid"
)

// Costume describes one costume or backdrop. Image data belongs to the
// renderer; the executor only needs names and indices.
type Costume struct {
	Name             string
	AssetID          string
	DataFormat       string
	RotationCenterX  float64
	RotationCenterY  float64
	BitmapResolution int
}

// Sound describes one sound asset.
type Sound struct {
	Name        string
	AssetID     string
	DataFormat  string
	Rate        int
	SampleCount int
}

// PenState is the pen sub-state of a sprite.
type PenState struct {
	Down  bool
	Color Color
	Size  float64
}

// Rotation styles.
const (
	RotateAllAround = "all around"
	RotateLeftRight = "left-right"
	RotateNone      = "don't rotate"
)

// Procedure is a custom block definition indexed by its proccode.
type Procedure struct {
	ProcCode      string
	Definition    *Block
	ArgumentIDs   []string
	ArgumentNames []string
	Defaults      []string
	Warp          bool
}

// ---------------------------------------------------------------------------
// Sprite
// ---------------------------------------------------------------------------

// Sprite is an execution context: it owns variables, lists, and running
// threads, and shares its block graph with its clones.
type Sprite struct {
	ID      string
	Name    string
	IsStage bool

	Local  *Scope
	Blocks *BlockTable

	// Hats are the top-level entry blocks, in id order.
	Hats       []BlockID
	procedures map[string]*Procedure

	threads  []*ScriptThread
	byHat    map[BlockID]*ScriptThread
	ToDelete bool

	Clone    bool
	Original *Sprite

	// Motion and looks state.
	X, Y           float64
	Direction      float64
	Size           float64
	Visible        bool
	Draggable      bool
	RotationStyle  string
	Layer          int
	Costumes       []Costume
	CurrentCostume int
	Effects        map[string]float64

	// Sound state.
	Sounds       []Sound
	Volume       float64
	SoundEffects map[string]float64

	Pen PenState

	// Bubble is the text currently shown by say/think, if any.
	Bubble      string
	BubbleStyle string
	bubbleSeq   uint64

	// Extra holds host-side data such as render caches.
	Extra map[string]any
}

// NewSprite creates a sprite with default motion state and a fresh block
// table.
func NewSprite(name string) *Sprite {
	return &Sprite{
		ID:            uuid.New().String(),
		Name:          name,
		Local:         NewScope(),
		Blocks:        NewBlockTable(),
		procedures:    make(map[string]*Procedure),
		byHat:         make(map[BlockID]*ScriptThread),
		Direction:     90,
		Size:          100,
		Visible:       true,
		RotationStyle: RotateAllAround,
		Effects:       make(map[string]float64),
		Volume:        100,
		SoundEffects:  make(map[string]float64),
		Pen:           PenState{Size: 1, Color: Color{Hue: 66.66, Saturation: 100, Brightness: 100}},
	}
}

// NewStage creates the stage sprite.
func NewStage() *Sprite {
	s := NewSprite("Stage")
	s.IsStage = true
	return s
}

// Index scans the block table for hats and procedure definitions. Call it
// after the table is populated and linked.
func (s *Sprite) Index() {
	s.Hats = s.Hats[:0]
	s.procedures = make(map[string]*Procedure)
	s.Blocks.Each(func(b *Block) {
		if b.TopLevel && IsHat(b.Opcode) {
			s.Hats = append(s.Hats, b.ID)
		}
		if b.Opcode != "procedures_definition" {
			return
		}
		in, ok := b.Input("custom_block")
		if !ok {
			return
		}
		proto := s.Blocks.Get(in.Block)
		if proto == nil || proto.Mutation == nil {
			return
		}
		m := proto.Mutation
		s.procedures[m.ProcCode] = &Procedure{
			ProcCode:      m.ProcCode,
			Definition:    b,
			ArgumentIDs:   m.ArgumentIDs,
			ArgumentNames: m.ArgumentNames,
			Defaults:      m.ArgumentDefaults,
			Warp:          m.Warp,
		}
	})
}

// Procedure looks up a custom block by proccode.
func (s *Sprite) Procedure(procCode string) *Procedure {
	return s.procedures[procCode]
}

// Threads returns the sprite's live threads in start order.
func (s *Sprite) Threads() []*ScriptThread {
	return s.threads
}

// CostumeIndex finds a costume by name, or -1.
func (s *Sprite) CostumeIndex(name string) int {
	for i, c := range s.Costumes {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// CostumeName returns the current costume's name, or "".
func (s *Sprite) CostumeName() string {
	if s.CurrentCostume < 0 || s.CurrentCostume >= len(s.Costumes) {
		return ""
	}
	return s.Costumes[s.CurrentCostume].Name
}

// SetCostume selects costume i, wrapping around the costume list.
func (s *Sprite) SetCostume(i int) {
	n := len(s.Costumes)
	if n == 0 {
		return
	}
	i %= n
	if i < 0 {
		i += n
	}
	s.CurrentCostume = i
}

// FindSound looks a sound up by name, falling back to a 1-based index.
func (s *Sprite) FindSound(key Value) *Sound {
	name := key.AsString()
	for i := range s.Sounds {
		if s.Sounds[i].Name == name {
			return &s.Sounds[i]
		}
	}
	if key.IsNumeric() && len(s.Sounds) > 0 {
		n := len(s.Sounds)
		i := (int(key.AsFloat()) - 1) % n
		if i < 0 {
			i += n
		}
		return &s.Sounds[i]
	}
	return nil
}

// SetDirection normalizes d into (-180, 180].
func (s *Sprite) SetDirection(d float64) {
	if d != d {
		return
	}
	d = wrapClamp(d, -179, 180)
	s.Direction = d
}

func wrapClamp(v, lo, hi float64) float64 {
	r := hi - lo + 1
	return v - math.Floor((v-lo)/r)*r
}

// ---------------------------------------------------------------------------
// Cloning
// ---------------------------------------------------------------------------

// newClone copies s into an independent clone sharing the block graph.
func (s *Sprite) newClone() *Sprite {
	root := s
	if s.Original != nil {
		root = s.Original
	}
	c := &Sprite{
		ID:             uuid.New().String(),
		Name:           s.Name,
		Local:          s.Local.clone(),
		Blocks:         s.Blocks,
		Hats:           s.Hats,
		procedures:     s.procedures,
		byHat:          make(map[BlockID]*ScriptThread),
		Clone:          true,
		Original:       root,
		X:              s.X,
		Y:              s.Y,
		Direction:      s.Direction,
		Size:           s.Size,
		Visible:        s.Visible,
		Draggable:      s.Draggable,
		RotationStyle:  s.RotationStyle,
		Layer:          s.Layer,
		Costumes:       s.Costumes,
		CurrentCostume: s.CurrentCostume,
		Effects:        copyFloats(s.Effects),
		Sounds:         s.Sounds,
		Volume:         s.Volume,
		SoundEffects:   copyFloats(s.SoundEffects),
		Pen:            s.Pen,
	}
	return c
}

func copyFloats(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
