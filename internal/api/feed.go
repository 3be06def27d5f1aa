package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/logging"
)

// Feed event names.
const (
	EventRoomEntered       = "room.entered"
	EventRoomExited        = "room.exited"
	EventPermissionChanged = "permission.changed"
)

// Feed frame types.
const (
	frameWatch   = "watch"
	frameUnwatch = "unwatch"
	framePing    = "ping"
	framePong    = "pong"
	frameAck     = "ack"
	frameEvent   = "event"
	frameError   = "error"
)

// watcherQueue is the number of frames buffered per watcher before newer
// frames are dropped.
const watcherQueue = 64

var knownEvents = map[string]bool{
	EventRoomEntered:       true,
	EventRoomExited:        true,
	EventPermissionChanged: true,
}

// RoomEvent is the data of room.entered and room.exited.
type RoomEvent struct {
	RoomID int `json:"room_id"`
}

// Frame is one message on the presence feed, in either direction.
//
// A watcher sends watch/unwatch with Events and optionally Rooms; an empty
// Rooms list means every room. The server answers with ack (carrying the
// resulting filter) or error, and pushes event frames.
type Frame struct {
	Type   string   `json:"type"`
	ID     string   `json:"id,omitempty"`
	Events []string `json:"events,omitempty"`
	Rooms  []int    `json:"rooms,omitempty"`
	Event  string   `json:"event,omitempty"`
	At     string   `json:"at,omitempty"`
	Data   any      `json:"data,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// feedEvent is a server-side event before it is encoded for watchers.
type feedEvent struct {
	name   string
	room   int
	scoped bool
	data   any
}

func roomEvent(name string, roomID int) feedEvent {
	return feedEvent{name: name, room: roomID, scoped: true, data: RoomEvent{RoomID: roomID}}
}

// feed fans presence events out to connected watchers.
type feed struct {
	logger *logging.Logger

	mu       sync.Mutex
	watchers map[*watcher]struct{}
}

func newFeed(logger *logging.Logger) *feed {
	return &feed{logger: logger, watchers: make(map[*watcher]struct{})}
}

func (f *feed) add(w *watcher) {
	f.mu.Lock()
	f.watchers[w] = struct{}{}
	n := len(f.watchers)
	f.mu.Unlock()
	f.logger.Debug("feed watcher joined", "watchers", n)
}

func (f *feed) remove(w *watcher) {
	f.mu.Lock()
	delete(f.watchers, w)
	n := len(f.watchers)
	f.mu.Unlock()
	w.stop()
	f.logger.Debug("feed watcher left", "watchers", n)
}

func (f *feed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers)
}

// publish encodes ev once and queues it for every watcher whose filter
// matches.
func (f *feed) publish(ev feedEvent) {
	data, err := json.Marshal(Frame{
		Type:  frameEvent,
		Event: ev.name,
		At:    time.Now().UTC().Format(time.RFC3339),
		Data:  ev.data,
	})
	if err != nil {
		f.logger.Error("encoding feed event", "event", ev.name, "error", err)
		return
	}

	f.mu.Lock()
	targets := make([]*watcher, 0, len(f.watchers))
	for w := range f.watchers {
		targets = append(targets, w)
	}
	f.mu.Unlock()

	for _, w := range targets {
		if w.wants(ev) {
			w.queue(data)
		}
	}
}

// closeAll stops every watcher. Their connections close once the write
// loops send the close frame.
func (f *feed) closeAll() {
	f.mu.Lock()
	targets := f.watchers
	f.watchers = make(map[*watcher]struct{})
	f.mu.Unlock()

	for w := range targets {
		w.stop()
	}
}

// watcher is one feed connection and its filter.
type watcher struct {
	feed *feed
	conn *websocket.Conn
	out  chan []byte

	done     chan struct{}
	stopOnce sync.Once

	mu     sync.Mutex
	events map[string]bool
	rooms  map[int]bool
}

func newWatcher(f *feed, conn *websocket.Conn) *watcher {
	return &watcher{
		feed:   f,
		conn:   conn,
		out:    make(chan []byte, watcherQueue),
		done:   make(chan struct{}),
		events: make(map[string]bool),
		rooms:  make(map[int]bool),
	}
}

func (w *watcher) stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *watcher) wants(ev feedEvent) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.events[ev.name] {
		return false
	}
	return !ev.scoped || len(w.rooms) == 0 || w.rooms[ev.room]
}

// queue never blocks; a full queue drops the frame.
func (w *watcher) queue(data []byte) {
	select {
	case w.out <- data:
	case <-w.done:
	default:
		w.feed.logger.Debug("feed watcher lagging, frame dropped")
	}
}

func (w *watcher) reply(f Frame) {
	f.At = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	w.queue(data)
}

// handle applies one inbound frame.
func (w *watcher) handle(raw []byte) {
	var in Frame
	if err := json.Unmarshal(raw, &in); err != nil {
		w.reply(Frame{Type: frameError, Error: "frame is not valid JSON"})
		return
	}

	switch in.Type {
	case frameWatch:
		if err := validateEvents(in.Events); err != nil {
			w.reply(Frame{Type: frameError, ID: in.ID, Error: err.Error()})
			return
		}
		ack := w.watch(in.Events, in.Rooms)
		ack.ID = in.ID
		w.reply(ack)
	case frameUnwatch:
		ack := w.unwatch(in.Events, in.Rooms)
		ack.ID = in.ID
		w.reply(ack)
	case framePing:
		w.reply(Frame{Type: framePong, ID: in.ID})
	default:
		w.reply(Frame{Type: frameError, ID: in.ID, Error: fmt.Sprintf("unknown frame type %q", in.Type)})
	}
}

func validateEvents(events []string) error {
	if len(events) == 0 {
		return fmt.Errorf("watch needs at least one event")
	}
	for _, e := range events {
		if !knownEvents[e] {
			return fmt.Errorf("unknown event %q", e)
		}
	}
	return nil
}

func (w *watcher) watch(events []string, rooms []int) Frame {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, e := range events {
		w.events[e] = true
	}
	for _, r := range rooms {
		w.rooms[r] = true
	}
	return w.filterLocked()
}

// unwatch drops the named events and rooms. With neither named, it clears
// the whole filter.
func (w *watcher) unwatch(events []string, rooms []int) Frame {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(events) == 0 && len(rooms) == 0 {
		w.events = make(map[string]bool)
		w.rooms = make(map[int]bool)
	}
	for _, e := range events {
		delete(w.events, e)
	}
	for _, r := range rooms {
		delete(w.rooms, r)
	}
	return w.filterLocked()
}

func (w *watcher) filterLocked() Frame {
	ack := Frame{Type: frameAck, Events: make([]string, 0, len(w.events))}
	for e := range knownEvents {
		if w.events[e] {
			ack.Events = append(ack.Events, e)
		}
	}
	sort.Strings(ack.Events)
	for r := range w.rooms {
		ack.Rooms = append(ack.Rooms, r)
	}
	sort.Ints(ack.Rooms)
	return ack
}

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are filtered by corsMiddleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleFeed upgrades the request and serves one watcher until it leaves.
func (s *Server) handleFeed(rw http.ResponseWriter, r *http.Request) {
	conn, err := feedUpgrader.Upgrade(rw, r, nil)
	if err != nil {
		s.logger.Warn("feed upgrade failed", "error", err)
		return
	}

	w := newWatcher(s.feed, conn)
	s.feed.add(w)
	go w.writeLoop(s.wsCfg)
	w.readLoop(s.wsCfg)
}

func (w *watcher) readLoop(cfg config.WebSocketConfig) {
	defer func() {
		w.feed.remove(w)
		w.conn.Close()
	}()

	idle := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	extend := func() error { return w.conn.SetReadDeadline(time.Now().Add(idle)) }

	w.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	if err := extend(); err != nil {
		return
	}
	w.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, raw, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.feed.logger.Warn("feed read failed", "error", err)
			}
			return
		}
		// Browsers may not answer protocol pings; any frame counts as liveness.
		if err := extend(); err != nil {
			return
		}
		w.handle(raw)
	}
}

func (w *watcher) writeLoop(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		w.conn.Close()
	}()
	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	send := func(kind int, data []byte) error {
		if err := w.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		return w.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data := <-w.out:
			if err := send(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := send(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-w.done:
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "presence service stopping")
			//nolint:errcheck // connection is closed right after
			send(websocket.CloseMessage, msg)
			return
		}
	}
}

// relayEvents forwards occupancy and permission changes to the feed until
// ctx is cancelled or a source closes, then disconnects every watcher.
func (s *Server) relayEvents(ctx context.Context) {
	defer s.feed.closeAll()

	permissions, cancelPerm := s.engine.Gate().Subscribe()
	defer cancelPerm()
	enters, cancelEnters := s.engine.Bus().Enters().Subscribe()
	defer cancelEnters()
	exits, cancelExits := s.engine.Bus().Exits().Subscribe()
	defer cancelExits()

	for {
		select {
		case <-ctx.Done():
			return
		case roomID, ok := <-enters:
			if !ok {
				return
			}
			s.feed.publish(roomEvent(EventRoomEntered, roomID))
		case roomID, ok := <-exits:
			if !ok {
				return
			}
			s.feed.publish(roomEvent(EventRoomExited, roomID))
		case snap, ok := <-permissions:
			if !ok {
				return
			}
			s.feed.publish(feedEvent{name: EventPermissionChanged, data: snap})
		}
	}
}
