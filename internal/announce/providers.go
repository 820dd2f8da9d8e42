package announce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"
)

// Voice turns announcement text into sound. Say blocks for the duration of
// the utterance.
type Voice interface {
	Say(ctx context.Context, text string, urgent bool) error
}

type VoiceConfig struct {
	WebhookURL     string
	WebhookToken   string
	WordsPerMinute int
}

func NewVoice(kind string, cfg VoiceConfig) Voice {
	switch kind {
	case "", "stub", "log":
		return logVoice{wordsPerMinute: cfg.WordsPerMinute}
	case "noop":
		return noopVoice{}
	case "fail":
		return failVoice{}
	case "webhook":
		if cfg.WebhookURL == "" {
			return logVoice{wordsPerMinute: cfg.WordsPerMinute}
		}
		return webhookVoice{url: cfg.WebhookURL, token: cfg.WebhookToken}
	default:
		if strings.HasPrefix(kind, "http://") || strings.HasPrefix(kind, "https://") {
			return webhookVoice{url: kind, token: cfg.WebhookToken}
		}
		return logVoice{wordsPerMinute: cfg.WordsPerMinute}
	}
}

// logVoice writes the text to the log and holds the speaker for roughly as
// long as reading it aloud would take.
type logVoice struct {
	wordsPerMinute int
}

func (v logVoice) Say(ctx context.Context, text string, urgent bool) error {
	log.Printf("announce urgent=%t text=%q", urgent, text)
	duration := speakingTime(text, v.wordsPerMinute)
	if duration <= 0 {
		return nil
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func speakingTime(text string, wordsPerMinute int) time.Duration {
	if wordsPerMinute <= 0 {
		return 0
	}
	words := len(strings.Fields(text))
	return time.Duration(words) * time.Minute / time.Duration(wordsPerMinute)
}

type noopVoice struct{}

func (noopVoice) Say(ctx context.Context, text string, urgent bool) error {
	return nil
}

type failVoice struct{}

func (failVoice) Say(ctx context.Context, text string, urgent bool) error {
	return errors.New("voice failure")
}

// webhookVoice posts the text to a text-to-speech gateway that plays it on
// the hall speaker and answers once playback has finished.
type webhookVoice struct {
	url   string
	token string
}

func (v webhookVoice) Say(ctx context.Context, text string, urgent bool) error {
	payload := map[string]interface{}{
		"text":   text,
		"urgent": urgent,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if v.token != "" {
		req.Header.Set("Authorization", "Bearer "+v.token)
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("voice gateway rejected request")
	}
	return nil
}
