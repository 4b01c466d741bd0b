package http

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"cf-quiz-service/internal/app"
	"cf-quiz-service/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type navigatePayload struct {
	Index int `json:"index"`
}

type selectPayload struct {
	Choice int `json:"choice"`
}

type cluePayload struct {
	Type string `json:"type"`
}

type loginPayload struct {
	Identity string `json:"identity"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// eventTypes maps session events to outbound message types.
var eventTypes = map[domain.EventType]string{
	domain.EventTick:      "tick",
	domain.EventWarning:   "warning",
	domain.EventSubmitted: "report",
}

// connection owns the outbound queue of one socket and the subscription to
// whichever session is currently running for it.
type connection struct {
	send        chan outboundMessage[any]
	done        chan struct{}
	unsubscribe func()
	forwarders  sync.WaitGroup
}

func (c *connection) reply(msgType string, payload any) {
	c.send <- outboundMessage[any]{Type: msgType, Payload: payload}
}

func (c *connection) fail(err error) {
	c.reply("error", errorPayload{Message: err.Error()})
}

// follow subscribes to the identity's current session, replacing any previous subscription.
func (c *connection) follow(service *app.QuizService, identity string) {
	c.unfollow()
	events, cancel, err := service.Subscribe(identity)
	if err != nil {
		return
	}
	c.unsubscribe = cancel
	c.forwarders.Add(1)
	go func() {
		defer c.forwarders.Done()
		for event := range events {
			msg := outboundMessage[any]{Type: eventTypes[event.Type], Payload: event}
			if event.Type == domain.EventSubmitted {
				msg.Payload = event.Report
			}
			select {
			case c.send <- msg:
			case <-c.done:
				return
			}
		}
	}()
}

func (c *connection) unfollow() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

// ServeWS upgrades HTTP requests to websockets and translates client messages
// into quiz operations. Asynchronous session events (ticks, warnings, the final
// report) are delivered through the session subscription. A dropped socket
// abandons its running session without recording an attempt.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		http.Error(w, "missing email", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	identity, err := h.service.Login(ctx, email)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	c := &connection{
		send: make(chan outboundMessage[any], 16),
		done: make(chan struct{}),
	}
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				// keep draining so producers never block on a dead socket
				for range c.send {
				}
				return
			}
		}
	}()

	c.reply("loggedIn", loginPayload{Identity: identity})

	// sessionID is the session this socket started; it is abandoned if the socket drops.
	sessionID := ""
	loggedOut := false
	for !loggedOut {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start", "retake":
			start := h.service.Start
			if inbound.Type == "retake" {
				start = h.service.Retake
			}
			view, err := start(ctx, identity)
			if err != nil {
				c.fail(err)
				continue
			}
			sessionID = view.SessionID
			c.follow(h.service, identity)
			c.reply("session", view)
		case "navigate":
			var payload navigatePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				c.reply("error", errorPayload{Message: "invalid navigate payload"})
				continue
			}
			h.replyView(c, func() (domain.SessionView, error) { return h.service.Navigate(identity, payload.Index) })
		case "next":
			h.replyView(c, func() (domain.SessionView, error) { return h.service.Next(identity) })
		case "prev":
			h.replyView(c, func() (domain.SessionView, error) { return h.service.Previous(identity) })
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				c.reply("error", errorPayload{Message: "invalid select payload"})
				continue
			}
			h.replyView(c, func() (domain.SessionView, error) { return h.service.Select(identity, payload.Choice) })
		case "clue":
			var payload cluePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				c.reply("error", errorPayload{Message: "invalid clue payload"})
				continue
			}
			clue, err := domain.ParseClueType(payload.Type)
			if err != nil {
				c.fail(err)
				continue
			}
			hint, err := h.service.ApplyClue(identity, clue)
			if err != nil {
				c.fail(err)
				continue
			}
			c.reply("hint", hint)
		case "blur":
			if _, _, err := h.service.AttentionLost(ctx, identity); err != nil {
				c.fail(err)
			}
		case "focus":
			if err := h.service.AttentionRegained(identity); err != nil {
				c.fail(err)
			}
		case "submit":
			if _, err := h.service.Submit(ctx, identity); err != nil {
				c.fail(err)
			}
		case "history":
			c.reply("history", h.service.History(ctx, identity))
		case "logout":
			h.service.Logout(ctx, identity)
			c.reply("loggedOut", loginPayload{Identity: identity})
			loggedOut = true
		default:
			c.reply("error", errorPayload{Message: "unsupported message type"})
		}
	}

	if !loggedOut && sessionID != "" {
		h.service.Abandon(identity, sessionID)
	}
	close(c.done)
	c.unfollow()
	c.forwarders.Wait()
	close(c.send)
	<-writerDone
}

func (h *WSHandler) replyView(c *connection, op func() (domain.SessionView, error)) {
	view, err := op()
	if err != nil {
		c.fail(err)
		return
	}
	c.reply("session", view)
}
