package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Tomlord1122/concierge-backend/internal/animation"
	"github.com/Tomlord1122/concierge-backend/internal/controller"
	"github.com/Tomlord1122/concierge-backend/internal/domain"
	"github.com/Tomlord1122/concierge-backend/internal/form"
	"github.com/Tomlord1122/concierge-backend/internal/modal"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 << 10
)

var errSessionClosed = errors.New("session closed")

// viewSet is the rendering adapters handed to a controller.
type viewSet struct {
	modal     modal.View
	animation animation.View
	errors    form.ErrorView
}

// Frame is a server to page message.
//
//	view          a rendering command; Op names the View method
//	notification  a notify.Event
//	stats         the todo counts after a change
//	result        the reply to a client message with the same ID
//	error         a client message that could not be handled
type Frame struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Op   string `json:"op,omitempty"`
	Data any    `json:"data,omitempty"`
}

// ClientMessage is a page to server message. Only the fields used by Type
// are read.
type ClientMessage struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`

	Modal   string `json:"modal,omitempty"`
	Element string `json:"element,omitempty"`
	Key     string `json:"key,omitempty"`
	Shift   bool   `json:"shift,omitempty"`

	ScrollY  float64                   `json:"scrollY,omitempty"`
	Targets  []animation.Target        `json:"targets,omitempty"`
	Viewport animation.Rect            `json:"viewport"`
	Bounds   map[string]animation.Rect `json:"bounds,omitempty"`

	Field  form.Field        `json:"field"`
	Fields []form.Field      `json:"fields,omitempty"`
	Action string            `json:"action,omitempty"`
	Params map[string]string `json:"params,omitempty"`

	Notification string `json:"notification,omitempty"`
}

// maxPendingFrames bounds a session's outbox. A page that stops reading
// loses its oldest frames rather than growing the server's memory.
const maxPendingFrames = 1024

// outbox queues frames for the writer goroutine. View callbacks run while the
// controller holds its locks, so pushing never blocks.
type outbox struct {
	mu      sync.Mutex
	frames  []Frame
	dropped int
	wake    chan struct{}
}

func newOutbox() *outbox {
	return &outbox{wake: make(chan struct{}, 1)}
}

// push queues f. A pending view frame that f overwrites, such as an earlier
// text for the same element, is removed first. Only frames queued after the
// last non-view frame are considered, so view frames never move across a
// reply.
func (o *outbox) push(f Frame) {
	o.mu.Lock()
	if key := overwriteKey(f); key != "" {
		for i := len(o.frames) - 1; i >= 0 && o.frames[i].Type == "view"; i-- {
			if overwriteKey(o.frames[i]) == key {
				o.frames = append(o.frames[:i], o.frames[i+1:]...)
				break
			}
		}
	}
	if len(o.frames) >= maxPendingFrames {
		o.frames = o.frames[1:]
		o.dropped++
	}
	o.frames = append(o.frames, f)
	o.mu.Unlock()
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// drain returns the queued frames and how many were dropped since the last
// drain.
func (o *outbox) drain() ([]Frame, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	frames, dropped := o.frames, o.dropped
	o.frames, o.dropped = nil, 0
	return frames, dropped
}

// overwriteKey identifies view frames whose effect is fully replaced by a
// later frame with the same key. Other frames return "".
func overwriteKey(f Frame) string {
	if f.Type != "view" {
		return ""
	}
	data, ok := f.Data.(map[string]any)
	if !ok {
		return ""
	}
	element, _ := data["element"].(string)
	switch f.Op {
	case "setText":
		return f.Op + "\x00" + element
	case "setClass":
		class, _ := data["class"].(string)
		return f.Op + "\x00" + element + "\x00" + class
	case "setStyle":
		property, _ := data["property"].(string)
		return f.Op + "\x00" + element + "\x00" + property
	case "setAttribute":
		name, _ := data["name"].(string)
		return f.Op + "\x00" + element + "\x00" + name
	}
	return ""
}

// commandView turns every View call into a "view" frame.
type commandView struct {
	out *outbox
}

func (v commandView) send(op string, data map[string]any) {
	v.out.push(Frame{Type: "view", Op: op, Data: data})
}

// SetVisible sends a setVisible frame for the modal.
func (v commandView) SetVisible(modalID string, visible bool) {
	v.send("setVisible", map[string]any{"element": modalID, "visible": visible})
}

// SetScrollLocked sends a setScrollLocked frame.
func (v commandView) SetScrollLocked(locked bool) {
	v.send("setScrollLocked", map[string]any{"locked": locked})
}

// Focus sends a focus frame.
func (v commandView) Focus(elementID string) {
	v.send("focus", map[string]any{"element": elementID})
}

// SetClass sends a setClass frame toggling class on the element.
func (v commandView) SetClass(elementID, class string, on bool) {
	v.send("setClass", map[string]any{"element": elementID, "class": class, "on": on})
}

// SetStyle sends a setStyle frame.
func (v commandView) SetStyle(elementID, property, value string) {
	v.send("setStyle", map[string]any{"element": elementID, "property": property, "value": value})
}

// SetText sends a setText frame replacing the element's text.
func (v commandView) SetText(elementID, text string) {
	v.send("setText", map[string]any{"element": elementID, "text": text})
}

// SetAttribute sends a setAttribute frame.
func (v commandView) SetAttribute(elementID, name, value string) {
	v.send("setAttribute", map[string]any{"element": elementID, "name": name, "value": value})
}

// ShowFieldError sends a showFieldError frame for the named form field.
func (v commandView) ShowFieldError(fieldName, message string) {
	v.send("showFieldError", map[string]any{"field": fieldName, "message": message})
}

// ClearFieldError sends a clearFieldError frame.
func (v commandView) ClearFieldError(fieldName string) {
	v.send("clearFieldError", map[string]any{"field": fieldName})
}

type session struct {
	id     string
	conn   *websocket.Conn
	ctrl   *controller.Controller
	out    *outbox
	logger *zap.Logger
}

// sessionHandler upgrades to a websocket and runs one page session on it.
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	out := newOutbox()
	view := commandView{out: out}
	sess := &session{
		id:   uuid.NewString(),
		conn: conn,
		ctrl: s.newController(viewSet{modal: view, animation: view, errors: view}),
		out:  out,
	}
	sess.logger = s.logger.With(zap.String("session", sess.id))

	sess.logger.Info("session started", zap.String("remote", r.RemoteAddr))
	err = s.runSession(sess)
	sess.logger.Info("session ended", zap.Error(err))
}

func (s *Server) runSession(sess *session) error {
	defer sess.conn.Close()

	g, ctx := errgroup.WithContext(s.ctx)

	events, unsubscribe := s.notifications.Subscribe()
	defer unsubscribe()
	todos, unwatch := s.todoRepo.Watch()
	defer unwatch()

	sess.out.push(Frame{Type: "hello", Data: map[string]any{
		"session":       sess.id,
		"notifications": s.notifications.Active(),
	}})
	if stats, err := s.todoService.Stats(ctx); err == nil {
		sess.out.push(Frame{Type: "stats", Data: stats})
	}

	g.Go(func() error { return sess.readLoop(ctx) })
	g.Go(func() error { return sess.writeLoop(ctx) })
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				sess.out.push(Frame{Type: "notification", Op: string(ev.Type), Data: ev.Notification})
			}
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case list, ok := <-todos:
				if !ok {
					return nil
				}
				sess.out.push(Frame{Type: "stats", Data: domain.ComputeStats(list)})
			}
		}
	})
	g.Go(func() error {
		interval := s.animation.ThrottleInterval
		if interval <= 0 {
			interval = 16 * time.Millisecond
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				sess.ctrl.Animations().Tick()
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errSessionClosed) {
		return err
	}
	return nil
}

func (sess *session) readLoop(ctx context.Context) error {
	sess.conn.SetReadLimit(maxMessageSize)
	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errSessionClosed
			}
			return fmt.Errorf("read client message: %w", err)
		}
		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			sess.out.push(Frame{Type: "error", Data: map[string]any{"error": "malformed message: " + err.Error()}})
			continue
		}
		sess.handle(ctx, msg)
	}
}

// writeLoop is the connection's only writer. Closing the conn on exit
// unblocks readLoop.
func (sess *session) writeLoop(ctx context.Context) error {
	defer sess.conn.Close()
	for {
		select {
		case <-ctx.Done():
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			sess.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return nil
		case <-sess.out.wake:
			frames, dropped := sess.out.drain()
			if dropped > 0 {
				sess.logger.Warn("dropped frames for slow client", zap.Int("dropped", dropped))
			}
			for _, f := range frames {
				sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := sess.conn.WriteJSON(f); err != nil {
					return fmt.Errorf("write %s frame: %w", f.Type, err)
				}
			}
		}
	}
}

// handle dispatches one client message to the controller. View frames the
// controller emits are queued before the reply.
func (sess *session) handle(ctx context.Context, msg ClientMessage) {
	ctrl := sess.ctrl
	var (
		data any
		err  error
	)
	switch msg.Type {
	case "open-modal":
		data = map[string]bool{"opened": ctrl.Modals().Open(msg.Modal)}
	case "open-booking":
		data = map[string]bool{"opened": ctrl.OpenBookingModal()}
	case "close-modal":
		ctrl.Modals().Close(msg.Modal)
	case "close-all":
		ctrl.Modals().CloseAll()
	case "backdrop":
		ctrl.Modals().ClickBackdrop(msg.Modal)
	case "focus":
		ctrl.Modals().Focus(msg.Element)
	case "key":
		data = map[string]bool{"handled": ctrl.Modals().HandleKey(modal.Key{Name: msg.Key, Shift: msg.Shift})}
	case "scroll":
		data = map[string]bool{"applied": ctrl.Animations().OnScroll(msg.ScrollY)}
	case "observe":
		for _, t := range msg.Targets {
			ctrl.Animations().Observe(t)
		}
		data = map[string]int{"observed": ctrl.Animations().Observed()}
	case "visibility":
		data = map[string][]string{"triggered": ctrl.Animations().Update(msg.Viewport, msg.Bounds)}
	case "validate-field":
		data = ctrl.Forms().ValidateField(msg.Field)
	case "submit-booking":
		data, err = ctrl.SubmitBooking(ctx, msg.Fields)
	case "action":
		data, err = ctrl.Action(msg.Action, msg.Params)
	case "dismiss":
		data = map[string]bool{"dismissed": ctrl.Notifications().Dismiss(msg.Notification)}
	default:
		err = fmt.Errorf("unknown message type %q", msg.Type)
	}

	if err != nil {
		if !errors.Is(err, controller.ErrInvalidBooking) {
			sess.logger.Debug("client message failed", zap.String("type", msg.Type), zap.Error(err))
		}
		sess.out.push(Frame{Type: "error", ID: msg.ID, Op: msg.Type, Data: map[string]any{
			"error":  err.Error(),
			"result": data,
		}})
		return
	}
	sess.out.push(Frame{Type: "result", ID: msg.ID, Op: msg.Type, Data: data})
}
