package announce

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gateVoice blocks every utterance until release is closed.
type gateVoice struct {
	mu      sync.Mutex
	said    []string
	started chan string
	release chan struct{}
}

func newGateVoice() *gateVoice {
	return &gateVoice{started: make(chan string, 8), release: make(chan struct{})}
}

func (v *gateVoice) Say(ctx context.Context, text string, urgent bool) error {
	v.mu.Lock()
	v.said = append(v.said, text)
	v.mu.Unlock()
	v.started <- text
	select {
	case <-v.release:
	case <-ctx.Done():
	}
	return nil
}

func (v *gateVoice) spoken() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.said...)
}

func TestPlayerSpeakingFlag(t *testing.T) {
	voice := newGateVoice()
	player := NewPlayer(voice, PlayerConfig{QueueSize: 4})

	changes := make(chan bool, 4)
	player.OnChange(func(speaking bool) { changes <- speaking })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go player.Run(ctx)

	require.False(t, player.IsSpeaking())
	player.Speak(Announcement{Text: "Token A-001, please proceed to Counter 1. General Enquiry"})

	select {
	case <-voice.started:
	case <-time.After(time.Second):
		t.Fatal("announcement was not played")
	}
	assert.True(t, <-changes)
	assert.True(t, player.IsSpeaking())

	close(voice.release)
	select {
	case speaking := <-changes:
		assert.False(t, speaking)
	case <-time.After(time.Second):
		t.Fatal("speaking flag was not cleared")
	}
	assert.False(t, player.IsSpeaking())
}

func TestPlayerRefusesUrgentWhileBusy(t *testing.T) {
	voice := newGateVoice()
	player := NewPlayer(voice, PlayerConfig{QueueSize: 4})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go player.Run(ctx)

	player.Speak(Announcement{Text: "first"})
	<-voice.started

	player.Speak(Announcement{Text: "recall", Urgent: true})
	player.Speak(Announcement{Text: "second"})
	close(voice.release)

	select {
	case text := <-voice.started:
		assert.Equal(t, "second", text)
	case <-time.After(time.Second):
		t.Fatal("queued announcement was not played")
	}
	assert.Equal(t, []string{"first", "second"}, voice.spoken())
}

func TestPlayerSpeakDoesNotBlockWhenFull(t *testing.T) {
	player := NewPlayer(NewVoice("noop", VoiceConfig{}), PlayerConfig{QueueSize: 1})
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			player.Speak(Announcement{Text: "call"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Speak blocked without a running player")
	}
}

func TestSpeakingTime(t *testing.T) {
	assert.Equal(t, time.Duration(0), speakingTime("one two", 0))
	assert.Equal(t, 3*time.Second, speakingTime("one two three", 60))
}

func TestNewVoiceSelection(t *testing.T) {
	cases := []struct {
		kind string
		cfg  VoiceConfig
		want Voice
	}{
		{kind: "", want: logVoice{}},
		{kind: "noop", want: noopVoice{}},
		{kind: "webhook", want: logVoice{}},
		{kind: "webhook", cfg: VoiceConfig{WebhookURL: "http://tts.local/say"}, want: webhookVoice{url: "http://tts.local/say"}},
		{kind: "https://tts.local/say", cfg: VoiceConfig{WebhookToken: "k"}, want: webhookVoice{url: "https://tts.local/say", token: "k"}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NewVoice(tc.kind, tc.cfg), "kind %q", tc.kind)
	}
}
