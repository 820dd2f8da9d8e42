package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"qms/token-queue/internal/hub"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
)

type RealtimeOptions struct {
	// Snapshot renders the current display board sent to a client on connect.
	Snapshot func() interface{}
	// KnownDepartment rejects subscriptions to departments that do not exist.
	KnownDepartment func(code string) bool
}

// NewRealtimeHandler serves display boards over SockJS at /realtime. Boards
// may subscribe to a single department with
// {"action":"subscribe","department":"B"}.
func NewRealtimeHandler(h *hub.Hub, options RealtimeOptions) http.Handler {
	return sockjs.NewHandler("/realtime", sockjs.DefaultOptions, func(session sockjs.Session) {
		sub := hub.Subscription{}
		if req := session.Request(); req != nil {
			sub.Department = req.URL.Query().Get("department")
		}
		if sub.Department != "" && !knownDepartment(options, sub.Department) {
			_ = session.Close(4004, "unknown department")
			return
		}

		client := &hub.Client{ID: uuid.NewString(), Send: make(chan []byte, 16), Subscription: sub}
		h.Register(client)
		defer h.Unregister(client)

		go func() {
			for msg := range client.Send {
				_ = session.Send(string(msg))
			}
		}()

		if options.Snapshot != nil {
			if payload, err := json.Marshal(hub.Envelope{Type: "display.snapshot", Display: options.Snapshot(), CreatedAt: time.Now().UTC()}); err == nil {
				select {
				case client.Send <- payload:
				default:
				}
			}
		}

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			parsed, ok := hub.ParseSubscribe([]byte(msg))
			if !ok {
				continue
			}
			if parsed.Action == "unsubscribe" {
				h.UpdateSubscription(client, hub.Subscription{})
				continue
			}
			if parsed.Department != "" && !knownDepartment(options, parsed.Department) {
				_ = session.Close(4004, "unknown department")
				return
			}
			h.UpdateSubscription(client, hub.Subscription{Department: parsed.Department})
		}
	})
}

func knownDepartment(options RealtimeOptions, code string) bool {
	if options.KnownDepartment == nil {
		return true
	}
	return options.KnownDepartment(code)
}
