package vm

import "time"

// ---------------------------------------------------------------------------
// Clock
// ---------------------------------------------------------------------------

// Clock supplies the executor's notion of time. Waits, glides, the sensing
// timer and the warp budget all read it.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ---------------------------------------------------------------------------
// Host collaborators
// ---------------------------------------------------------------------------

// SoundPlayer plays sprite sounds. IsPlaying is polled once per frame by
// "play sound until done".
type SoundPlayer interface {
	Play(s *Sprite, sound *Sound) error
	IsPlaying(s *Sprite, sound *Sound) bool
	StopAll()
}

// SpeechManager shows say/think bubbles.
type SpeechManager interface {
	ShowSpeech(s *Sprite, text string, style string)
	ClearSpeech(s *Sprite)
}

// Input answers read-only input queries.
type Input interface {
	KeyPressed(key string) bool
	MouseDown() bool
	MouseX() float64
	MouseY() float64
	Loudness() float64
}

// Asker handles "ask and wait". Ask starts a question; Answer is polled
// each frame until it reports done.
type Asker interface {
	Ask(s *Sprite, question string)
	Answer() (answer string, done bool)
}

// PenLayer receives pen drawing commands.
type PenLayer interface {
	DrawLine(x1, y1, x2, y2 float64, pen PenState)
	Stamp(s *Sprite)
	Clear()
}

// Collider answers "touching" queries. target is a sprite name or one of
// "_mouse_" and "_edge_".
type Collider interface {
	Touching(s *Sprite, target string) bool
}

// CloudProvider mirrors writes to cloud-flagged global variables.
type CloudProvider interface {
	Set(name string, v Value) error
}

// Host bundles the collaborators the handlers call into. Nil members are
// treated as no-ops.
type Host struct {
	Sound    SoundPlayer
	Speech   SpeechManager
	Input    Input
	Asker    Asker
	Pen      PenLayer
	Collider Collider
	Cloud    CloudProvider
	Username string
}
