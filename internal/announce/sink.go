// Package announce vocalizes queue calls on the shared hall speaker.
//
// The queue engine hands announcements to a Sink and never waits on them.
// Whether the speaker is busy is the sink's business: the Player refuses
// urgent recalls while something is still playing.
package announce

type Announcement struct {
	Text   string `json:"text"`
	Urgent bool   `json:"urgent"`
}

type Sink interface {
	// Speak must return immediately.
	Speak(a Announcement)
	IsSpeaking() bool
	// Busy reports whether an urgent announcement would be refused right now.
	Busy() bool
}

// Discard accepts and forgets every announcement.
type Discard struct{}

func (Discard) Speak(Announcement) {}

func (Discard) IsSpeaking() bool { return false }

func (Discard) Busy() bool { return false }
