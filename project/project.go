// Package project loads Scratch 3 projects (.sb3 archives or bare
// project.json files) into executor sprites.
package project

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/tliron/commonlog"

	"github.com/chazu/sb3vm/vm"
)

var log = commonlog.GetLogger("sb3vm.project")

// ErrNoProjectJSON is returned for archives without a project.json entry.
var ErrNoProjectJSON = errors.New("project: archive has no project.json")

// Project is a decoded project: the stage, the sprites in layer order and
// project-wide metadata.
type Project struct {
	Stage      *vm.Sprite
	Sprites    []*vm.Sprite
	Broadcasts map[string]string // id -> name
	Extensions []string
	Meta       Meta

	// Assets maps archive entry names to their uncompressed size. It is
	// empty for bare project.json files.
	Assets map[string]uint64
}

// Meta is the project.json meta block.
type Meta struct {
	Semver string `json:"semver"`
	VM     string `json:"vm"`
	Agent  string `json:"agent"`
}

// Load reads a project from a .sb3 archive or a project.json file.
func Load(filename string) (*Project, error) {
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("project: cannot read %s: %w", filename, err)
		}
		return Parse(data)
	}

	r, err := zip.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("project: cannot open %s: %w", filename, err)
	}
	defer r.Close()
	p, err := readZip(&r.Reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return p, nil
}

// ReadArchive decodes an in-memory or on-disk .sb3 archive.
func ReadArchive(r io.ReaderAt, size int64) (*Project, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("project: reading archive: %w", err)
	}
	return readZip(zr)
}

func readZip(zr *zip.Reader) (*Project, error) {
	var entry *zip.File
	assets := make(map[string]uint64)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if path.Base(f.Name) == "project.json" {
			if entry == nil || len(f.Name) < len(entry.Name) {
				entry = f
			}
			continue
		}
		assets[path.Base(f.Name)] = f.UncompressedSize64
	}
	if entry == nil {
		return nil, ErrNoProjectJSON
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("project: opening %s: %w", entry.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("project: reading %s: %w", entry.Name, err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, err
	}
	p.Assets = assets
	return p, nil
}

// ---------------------------------------------------------------------------
// project.json
// ---------------------------------------------------------------------------

type rawProject struct {
	Targets    []rawTarget `json:"targets"`
	Extensions []string    `json:"extensions"`
	Meta       Meta        `json:"meta"`
}

type rawTarget struct {
	IsStage        bool                         `json:"isStage"`
	Name           string                       `json:"name"`
	Variables      map[string][]json.RawMessage `json:"variables"`
	Lists          map[string][]json.RawMessage `json:"lists"`
	Broadcasts     map[string]string            `json:"broadcasts"`
	Blocks         map[string]json.RawMessage   `json:"blocks"`
	Costumes       []rawCostume                 `json:"costumes"`
	Sounds         []rawSound                   `json:"sounds"`
	CurrentCostume int                          `json:"currentCostume"`
	Volume         *float64                     `json:"volume"`
	LayerOrder     int                          `json:"layerOrder"`
	Visible        *bool                        `json:"visible"`
	X              float64                      `json:"x"`
	Y              float64                      `json:"y"`
	Size           *float64                     `json:"size"`
	Direction      *float64                     `json:"direction"`
	Draggable      bool                         `json:"draggable"`
	RotationStyle  string                       `json:"rotationStyle"`
}

type rawCostume struct {
	Name             string  `json:"name"`
	AssetID          string  `json:"assetId"`
	DataFormat       string  `json:"dataFormat"`
	RotationCenterX  float64 `json:"rotationCenterX"`
	RotationCenterY  float64 `json:"rotationCenterY"`
	BitmapResolution int     `json:"bitmapResolution"`
}

type rawSound struct {
	Name        string `json:"name"`
	AssetID     string `json:"assetId"`
	DataFormat  string `json:"dataFormat"`
	Rate        int    `json:"rate"`
	SampleCount int    `json:"sampleCount"`
}

// Parse decodes a project.json document.
func Parse(data []byte) (*Project, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	var raw rawProject
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("project: parsing project.json: %w", err)
	}

	p := &Project{
		Broadcasts: make(map[string]string),
		Extensions: raw.Extensions,
		Meta:       raw.Meta,
		Assets:     make(map[string]uint64),
	}
	for i := range raw.Targets {
		t := &raw.Targets[i]
		sp := decodeTarget(t)
		for id, name := range t.Broadcasts {
			p.Broadcasts[id] = name
		}
		if t.IsStage {
			if p.Stage != nil {
				log.Warningf("project: ignoring second stage %q", t.Name)
				continue
			}
			p.Stage = sp
			continue
		}
		p.Sprites = append(p.Sprites, sp)
	}
	if p.Stage == nil {
		return nil, fmt.Errorf("project: project.json has no stage target")
	}
	sort.SliceStable(p.Sprites, func(i, j int) bool { return p.Sprites[i].Layer < p.Sprites[j].Layer })
	return p, nil
}

func decodeTarget(t *rawTarget) *vm.Sprite {
	var sp *vm.Sprite
	if t.IsStage {
		sp = vm.NewStage()
		if t.Name != "" {
			sp.Name = t.Name
		}
	} else {
		sp = vm.NewSprite(t.Name)
		sp.X, sp.Y = t.X, t.Y
		sp.Layer = t.LayerOrder
		sp.Draggable = t.Draggable
		if t.Visible != nil {
			sp.Visible = *t.Visible
		}
		if t.Size != nil {
			sp.Size = *t.Size
		}
		if t.Direction != nil {
			sp.SetDirection(*t.Direction)
		}
		switch t.RotationStyle {
		case vm.RotateAllAround, vm.RotateLeftRight, vm.RotateNone:
			sp.RotationStyle = t.RotationStyle
		}
	}
	if t.Volume != nil {
		sp.Volume = *t.Volume
	}

	for _, id := range sortedKeys(t.Variables) {
		raw := t.Variables[id]
		if len(raw) < 2 {
			log.Warningf("project: %s: malformed variable %s", t.Name, id)
			continue
		}
		v := &vm.Variable{ID: id, Name: literalString(raw[0]), Value: literalValue(raw[1])}
		if len(raw) > 2 {
			v.Cloud = literalBool(raw[2])
		}
		sp.Local.AddVariable(v)
	}
	for _, id := range sortedKeys(t.Lists) {
		raw := t.Lists[id]
		if len(raw) < 2 {
			log.Warningf("project: %s: malformed list %s", t.Name, id)
			continue
		}
		l := &vm.List{ID: id, Name: literalString(raw[0])}
		var items []json.RawMessage
		if err := json.Unmarshal(raw[1], &items); err != nil {
			log.Warningf("project: %s: list %s: %s", t.Name, id, err)
		}
		for _, item := range items {
			l.Items = append(l.Items, literalValue(item))
		}
		sp.Local.AddList(l)
	}

	for _, c := range t.Costumes {
		sp.Costumes = append(sp.Costumes, vm.Costume{
			Name:             c.Name,
			AssetID:          c.AssetID,
			DataFormat:       c.DataFormat,
			RotationCenterX:  c.RotationCenterX,
			RotationCenterY:  c.RotationCenterY,
			BitmapResolution: c.BitmapResolution,
		})
	}
	sp.SetCostume(t.CurrentCostume)
	for _, s := range t.Sounds {
		sp.Sounds = append(sp.Sounds, vm.Sound{
			Name:        s.Name,
			AssetID:     s.AssetID,
			DataFormat:  s.DataFormat,
			Rate:        s.Rate,
			SampleCount: s.SampleCount,
		})
	}

	decodeBlocks(sp, t.Name, t.Blocks)
	sp.Blocks.Link()
	sp.Index()
	return sp
}

// ---------------------------------------------------------------------------
// Install
// ---------------------------------------------------------------------------

// Install places the project into ex: the stage becomes the global scope
// and the sprites are appended in layer order.
func (p *Project) Install(ex *vm.Executor) {
	ex.SetStage(p.Stage)
	for _, sp := range p.Sprites {
		ex.AddSprite(sp)
	}
	log.Infof("project: installed stage and %d sprites (%d blocks)", len(p.Sprites), p.BlockCount())
}

// BlockCount returns the number of blocks across every target.
func (p *Project) BlockCount() int {
	n := p.Stage.Blocks.Len()
	for _, sp := range p.Sprites {
		n += sp.Blocks.Len()
	}
	return n
}

// AssetBytes returns the total uncompressed size of the archive's assets.
func (p *Project) AssetBytes() uint64 {
	var n uint64
	for _, size := range p.Assets {
		n += size
	}
	return n
}

func sortedKeys(m map[string][]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
