// An editing session owns one composer. Every access to it happens on the
// session's Run loop: REST calls and websocket messages are posted as
// closures, and the composer's timers dispatch back onto the same loop.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"studioAPI/internal/composer"
	"studioAPI/internal/metrics"
	"studioAPI/internal/placement"
	"studioAPI/internal/snap"
	"studioAPI/internal/types/assettype"
	"studioAPI/internal/types/project"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Layer patches can carry data URIs.
	maxMessageSize = 1 << 20

	saveTimeout = 5 * time.Second
)

// DraftStore keeps the work in progress of each session.
type DraftStore interface {
	SaveDraft(ctx context.Context, sessionID string, st project.State) error
	LoadDraft(ctx context.Context, sessionID string) (project.State, error)
}

// ImageSizer learns the natural size of an image. Check rejects sources that
// can never load before any placeholder is inserted.
type ImageSizer interface {
	Dimensions(ctx context.Context, src string) (float64, float64, error)
	Check(src string) error
}

// Snapshot is the view of a session sent to clients.
type Snapshot struct {
	SessionID  string               `json:"sessionId"`
	State      project.State        `json:"state"`
	Dimensions assettype.Dimensions `json:"dimensions"`
	SelectedID string               `json:"selectedId,omitempty"`
	CanUndo    bool                 `json:"canUndo"`
	CanRedo    bool                 `json:"canRedo"`
}

type Session struct {
	ID         string
	Manager    *EditorManager
	Clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client

	actions  chan func()
	quit     chan struct{}
	done     chan struct{}
	quitOnce sync.Once

	editor     *composer.Composer
	lastActive atomic.Int64
	clients    atomic.Int32
}

func NewSession(id string, initial project.State, manager *EditorManager) *Session {
	s := &Session{
		ID:         id,
		Manager:    manager,
		Clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		actions:    make(chan func()),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	opts := append([]composer.Option{}, manager.composerOpts...)
	opts = append(opts,
		composer.WithDispatch(s.post),
		composer.WithAutosave(s.autosave),
		composer.WithRecordHook(func() {
			metrics.HistoryRecords.Inc()
			s.broadcastState()
		}),
	)
	s.editor = composer.New(initial, opts...)
	s.touch()
	return s
}

func (s *Session) Run() {
	defer close(s.done)

	for {
		select {
		case client := <-s.Register:
			s.Clients[client] = true
			s.clients.Store(int32(len(s.Clients)))
			s.touch()
			log.Printf("[Session %s] Editor connected. Count: %d", s.ID, len(s.Clients))
			s.sendTo(client, s.stateMessage())

		case client := <-s.Unregister:
			if _, ok := s.Clients[client]; ok {
				delete(s.Clients, client)
				close(client.Send)
				s.clients.Store(int32(len(s.Clients)))
				s.touch()
				log.Printf("[Session %s] Editor left. Count: %d", s.ID, len(s.Clients))
			}

		case fn := <-s.actions:
			fn()

		case <-s.quit:
			s.editor.Close()
			for client := range s.Clients {
				close(client.Send)
				delete(s.Clients, client)
			}
			s.clients.Store(0)
			log.Printf("[Session %s] Closed.", s.ID)
			return
		}
	}
}

// Join registers an editor connection with the session.
func (s *Session) Join(c *Client) error {
	select {
	case s.Register <- c:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// post hands fn to the loop without waiting for it to run.
func (s *Session) post(fn func()) {
	select {
	case s.actions <- fn:
	case <-s.done:
	}
}

func (s *Session) exec(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}
	select {
	case s.actions <- task:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	s.touch()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn on the session loop and broadcasts the resulting state to every
// connected editor.
func (s *Session) Do(ctx context.Context, fn func(ed *composer.Composer) error) error {
	var err error
	if execErr := s.exec(ctx, func() {
		err = fn(s.editor)
		s.broadcastState()
	}); execErr != nil {
		return execErr
	}
	return err
}

// Apply is Do that also returns the snapshot taken right after fn.
func (s *Session) Apply(ctx context.Context, fn func(ed *composer.Composer) error) (Snapshot, error) {
	var out Snapshot
	err := s.Do(ctx, func(ed *composer.Composer) error {
		if err := fn(ed); err != nil {
			return err
		}
		out = s.snapshot()
		return nil
	})
	return out, err
}

// View runs fn on the session loop without broadcasting.
func (s *Session) View(ctx context.Context, fn func(ed *composer.Composer)) error {
	return s.exec(ctx, func() { fn(s.editor) })
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var out Snapshot
	err := s.View(ctx, func(*composer.Composer) { out = s.snapshot() })
	return out, err
}

// State returns a copy of the project state.
func (s *Session) State(ctx context.Context) (project.State, error) {
	var st project.State
	err := s.View(ctx, func(ed *composer.Composer) { st = ed.State() })
	return st, err
}

// Close flushes the pending autosave and stops the loop. It is safe to call
// more than once.
func (s *Session) Close() {
	s.quitOnce.Do(func() { close(s.quit) })
	<-s.done
}

// Idle reports whether nobody is connected and nothing happened since
// before cutoff.
func (s *Session) Idle(cutoff time.Time) bool {
	return s.clients.Load() == 0 && time.Unix(0, s.lastActive.Load()).Before(cutoff)
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		SessionID:  s.ID,
		State:      s.editor.State(),
		Dimensions: s.editor.Dimensions(),
		SelectedID: s.editor.SelectedID(),
		CanUndo:    s.editor.CanUndo(),
		CanRedo:    s.editor.CanRedo(),
	}
}

func (s *Session) autosave(st project.State) {
	if s.Manager.drafts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.Manager.drafts.SaveDraft(ctx, s.ID, st); err != nil {
		log.Printf("[Session %s] Autosave failed: %v", s.ID, err)
		s.notice("Sauvegarde automatique impossible")
	}
}

// InsertImage adds an image layer right away and resolves its size in the
// background. The layer id is returned as soon as the placeholder exists.
func (s *Session) InsertImage(ctx context.Context, src placement.Source, url string) (string, error) {
	if s.Manager.images != nil {
		if err := s.Manager.images.Check(url); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidImageInput, err)
		}
	}

	var id string
	var ok bool
	err := s.Do(ctx, func(ed *composer.Composer) error {
		id, ok = ed.BeginImage(src, url)
		return nil
	})
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrInvalidImageInput
	}

	go s.resolveImage(id, url)
	return id, nil
}

func (s *Session) resolveImage(id, url string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	w, h, err := 0.0, 0.0, ErrInvalidImageInput
	if s.Manager.images != nil {
		w, h, err = s.Manager.images.Dimensions(ctx, url)
	}
	s.post(func() {
		if err != nil {
			log.Printf("[Session %s] Image %s failed to load: %v", s.ID, id, err)
			if s.editor.FailImage(id) {
				s.notice("Impossible de charger l'image, elle a été placée en plein cadre")
				s.broadcastState()
			}
			return
		}
		if s.editor.ResolveImage(id, w, h) {
			s.broadcastState()
		}
	})
}

type outgoing struct {
	Action  string       `json:"action"`
	State   *Snapshot    `json:"state,omitempty"`
	LayerID string       `json:"layerId,omitempty"`
	Guides  *snap.Guides `json:"guides,omitempty"`
	Message string       `json:"message,omitempty"`
}

func (s *Session) stateMessage() []byte {
	snapshot := s.snapshot()
	data, err := json.Marshal(outgoing{Action: "state", State: &snapshot})
	if err != nil {
		log.Printf("[Session %s] Error marshalling state: %v", s.ID, err)
		return nil
	}
	return data
}

func (s *Session) broadcastState() {
	s.broadcast(s.stateMessage())
}

func (s *Session) broadcastGuides(layerID string, g snap.Guides) {
	data, _ := json.Marshal(outgoing{Action: "guides", LayerID: layerID, Guides: &g})
	s.broadcast(data)
}

func (s *Session) notice(msg string) {
	data, _ := json.Marshal(outgoing{Action: "notice", Message: msg})
	s.broadcast(data)
}

// broadcast must be called from the loop.
func (s *Session) broadcast(message []byte) {
	if message == nil {
		return
	}
	for client := range s.Clients {
		s.sendTo(client, message)
	}
}

func (s *Session) sendTo(client *Client, message []byte) {
	if message == nil {
		return
	}
	select {
	case client.Send <- message:
	default:
		close(client.Send)
		delete(s.Clients, client)
		s.clients.Store(int32(len(s.Clients)))
	}
}

// EditorManager holds all live editing sessions.
type EditorManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	drafts       DraftStore
	images       ImageSizer
	composerOpts []composer.Option
}

func NewEditorManager(drafts DraftStore, images ImageSizer, opts ...composer.Option) *EditorManager {
	return &EditorManager{
		sessions:     make(map[string]*Session),
		drafts:       drafts,
		images:       images,
		composerOpts: opts,
	}
}

// CreateSession starts a session from initial, or returns the live one with
// the same id.
func (m *EditorManager) CreateSession(sessionID string, initial project.State) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[sessionID]; ok {
		return s
	}

	s := NewSession(sessionID, initial, m)
	m.sessions[sessionID] = s
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	go s.Run()
	return s
}

// ResumeSession restarts a session from its saved work in progress.
func (m *EditorManager) ResumeSession(ctx context.Context, sessionID string) (*Session, error) {
	if s, ok := m.GetSession(sessionID); ok {
		return s, nil
	}
	if m.drafts == nil {
		return nil, ErrDraftNotFound
	}
	st, err := m.drafts.LoadDraft(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return m.CreateSession(sessionID, st), nil
}

func (m *EditorManager) GetSession(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// Lookup is GetSession with an error for handlers.
func (m *EditorManager) Lookup(sessionID string) (*Session, error) {
	s, ok := m.GetSession(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// DeleteSession closes the session and forgets it.
func (m *EditorManager) DeleteSession(sessionID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	if ok {
		s.Close()
	}
	return ok
}

func (m *EditorManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ReapIdle closes every session idle for longer than timeout and returns
// how many were closed.
func (m *EditorManager) ReapIdle(timeout time.Duration) int {
	cutoff := time.Now().Add(-timeout)

	m.mu.RLock()
	var idle []string
	for id, s := range m.sessions {
		if s.Idle(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	n := 0
	for _, id := range idle {
		if m.DeleteSession(id) {
			n++
		}
	}
	return n
}

// Shutdown closes every session, flushing their autosaves.
func (m *EditorManager) Shutdown() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	metrics.ActiveSessions.Set(0)
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
