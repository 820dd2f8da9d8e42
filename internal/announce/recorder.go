package announce

import "sync"

// Recorder is a Sink that keeps every announcement it is given.
type Recorder struct {
	mu            sync.Mutex
	announcements []Announcement
	speaking      bool
}

func (r *Recorder) Speak(a Announcement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.announcements = append(r.announcements, a)
}

func (r *Recorder) IsSpeaking() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speaking
}

// Busy follows the speaking flag; a Recorder never queues.
func (r *Recorder) Busy() bool {
	return r.IsSpeaking()
}

func (r *Recorder) SetSpeaking(value bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speaking = value
}

func (r *Recorder) Announcements() []Announcement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Announcement(nil), r.announcements...)
}

func (r *Recorder) Last() (Announcement, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.announcements) == 0 {
		return Announcement{}, false
	}
	return r.announcements[len(r.announcements)-1], true
}
