package services

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"studioAPI/internal/composer"
	"studioAPI/internal/layers"
	"studioAPI/internal/metrics"
	"studioAPI/internal/placement"
	"studioAPI/internal/snap"
	"studioAPI/internal/types/assettype"
	"studioAPI/internal/types/layer"
	"studioAPI/internal/types/project"

	"github.com/gorilla/websocket"
)

// Client sits between one websocket connection and its session.
type Client struct {
	Session *Session
	Conn    *websocket.Conn
	Send    chan []byte

	// drag is only touched on the session loop.
	drag *composer.Drag
}

func NewClient(s *Session, conn *websocket.Conn) *Client {
	return &Client{Session: s, Conn: conn, Send: make(chan []byte, 256)}
}

// WsPayload is a message from an editor. Action selects the operation; the
// other fields are read as that operation needs them.
type WsPayload struct {
	Action    string              `json:"action"`
	LayerID   string              `json:"layerId,omitempty"`
	Patch     *layer.Patch        `json:"patch,omitempty"`
	X         float64             `json:"x,omitempty"`
	Y         float64             `json:"y,omitempty"`
	DX        float64             `json:"dx,omitempty"`
	DY        float64             `json:"dy,omitempty"`
	Direction layers.Direction    `json:"direction,omitempty"`
	Role      layer.Role          `json:"role,omitempty"`
	Value     string              `json:"value,omitempty"`
	Meta      *project.Metadata   `json:"meta,omitempty"`
	AssetType assettype.AssetType `json:"assetType,omitempty"`
	Template  string              `json:"template,omitempty"`
	Source    placement.Source    `json:"source,omitempty"`
	URL       string              `json:"url,omitempty"`
}

func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Session.Unregister <- c:
		case <-c.Session.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Session %s] Error reading msg: %v", c.Session.ID, err)
			}
			break
		}

		var payload WsPayload
		if err := json.Unmarshal(message, &payload); err != nil {
			c.Session.post(func() { c.Session.sendTo(c, noticeMessage("Message illisible")) })
			continue
		}
		c.Session.touch()
		c.Session.post(func() { c.Session.handle(c, payload) })
	}
}

// WritePump handles messages going TO the frontend
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The session closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func noticeMessage(msg string) []byte {
	data, _ := json.Marshal(outgoing{Action: "notice", Message: msg})
	return data
}

// handle applies one editor message. It runs on the session loop.
func (s *Session) handle(c *Client, p WsPayload) {
	if _, connected := s.Clients[c]; !connected {
		return
	}
	if err := s.apply(c, p); err != nil {
		s.sendTo(c, noticeMessage(err.Error()))
		return
	}
	s.broadcastState()
}

func (s *Session) apply(c *Client, p WsPayload) error {
	ed := s.editor
	switch p.Action {
	case "select":
		if p.LayerID == "" {
			ed.ClearSelection()
			return nil
		}
		ed.Select(p.LayerID)
	case "add_layer":
		if p.Patch == nil {
			return fmt.Errorf("add_layer: patch missing")
		}
		ed.AddLayer(*p.Patch)
	case "update_layer":
		if p.Patch == nil {
			return fmt.Errorf("update_layer: patch missing")
		}
		ed.UpdateLayer(p.LayerID, *p.Patch)
	case "remove_layer":
		ed.RemoveLayer(p.LayerID)
	case "duplicate_layer":
		ed.DuplicateLayer(p.LayerID)
	case "move_layer":
		ed.MoveLayer(p.LayerID, p.Direction)
	case "nudge":
		ed.Nudge(p.LayerID, p.DX, p.DY)
	case "copy":
		ed.Copy(p.LayerID)
	case "paste":
		ed.Paste()
	case "add_optional_layer":
		if !p.Role.Synced() {
			return fmt.Errorf("add_optional_layer: role %q cannot be added", p.Role)
		}
		ed.AddOptionalLayer(p.Role)
	case "set_meta":
		if p.Meta == nil {
			return fmt.Errorf("set_meta: meta missing")
		}
		ed.SetMeta(*p.Meta)
	case "set_meta_field":
		if !ed.SetMetaField(p.Role, p.Value) {
			return fmt.Errorf("set_meta_field: unknown field %q", p.Role)
		}
	case "set_transparent":
		ed.SetTransparent(p.Value == "true")
	case "set_asset_type":
		if !ed.SetAssetType(p.AssetType) {
			return fmt.Errorf("%w: %q", ErrUnknownAssetType, p.AssetType)
		}
	case "apply_template":
		ed.ApplyTemplate(p.Template)
	case "undo":
		ed.Undo()
	case "redo":
		ed.Redo()
	case "insert_image":
		id, ok := ed.BeginImage(p.Source, p.URL)
		if !ok {
			return ErrInvalidImageInput
		}
		go s.resolveImage(id, p.URL)
	case "drag_start":
		d, ok := ed.BeginDrag(p.LayerID)
		if !ok {
			return nil
		}
		c.drag = d
	case "drag_move":
		if c.drag == nil {
			return nil
		}
		res := c.drag.Move(p.X, p.Y)
		metrics.ObserveSnap(res.Guides.X != nil, res.Guides.Y != nil)
		s.broadcastGuides(c.drag.LayerID(), res.Guides)
	case "drag_end":
		if c.drag == nil {
			return nil
		}
		c.drag.End()
		s.broadcastGuides(c.drag.LayerID(), snap.Guides{})
		c.drag = nil
	default:
		return fmt.Errorf("unknown action %q", p.Action)
	}
	return nil
}
