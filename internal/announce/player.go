package announce

import (
	"context"
	"log"
	"sync"
	"time"

	"go.uber.org/atomic"
)

type PlayerConfig struct {
	QueueSize int
	// Timeout bounds a single utterance.
	Timeout time.Duration
}

// Player owns the single physical speaker. Announcements are played one at a
// time in arrival order by Run; IsSpeaking is process-wide.
type Player struct {
	voice    Voice
	queue    chan Announcement
	timeout  time.Duration
	speaking *atomic.Bool

	mu        sync.RWMutex
	listeners []func(speaking bool)
}

func NewPlayer(voice Voice, cfg PlayerConfig) *Player {
	size := cfg.QueueSize
	if size <= 0 {
		size = 16
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Player{
		voice:    voice,
		queue:    make(chan Announcement, size),
		timeout:  timeout,
		speaking: atomic.NewBool(false),
	}
}

func (p *Player) Speak(a Announcement) {
	if a.Urgent && p.Busy() {
		log.Printf("announce refused busy text=%q", a.Text)
		return
	}
	select {
	case p.queue <- a:
	default:
		log.Printf("announce dropped queue full text=%q", a.Text)
	}
}

func (p *Player) IsSpeaking() bool {
	return p.speaking.Load()
}

// Busy is true while playing or while announcements are waiting to play.
func (p *Player) Busy() bool {
	return p.speaking.Load() || len(p.queue) > 0
}

// OnChange registers fn to be called whenever the speaking flag flips.
func (p *Player) OnChange(fn func(speaking bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

func (p *Player) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-p.queue:
			p.play(ctx, a)
		}
	}
}

func (p *Player) play(ctx context.Context, a Announcement) {
	p.setSpeaking(true)
	defer p.setSpeaking(false)
	sayCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.voice.Say(sayCtx, a.Text, a.Urgent); err != nil {
		log.Printf("announce error: %v", err)
	}
}

func (p *Player) setSpeaking(value bool) {
	if p.speaking.Swap(value) == value {
		return
	}
	p.mu.RLock()
	listeners := append([]func(bool){}, p.listeners...)
	p.mu.RUnlock()
	for _, fn := range listeners {
		fn(value)
	}
}
