package live

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State names the broadcast lifecycle phase of a studio.
type State string

const (
	StateStandby         State = "standby"
	StateRequestingToken State = "requesting_token"
	StateConnected       State = "connected"
)

// ChatMessage is one entry in the simulated studio chat overlay.
type ChatMessage struct {
	ID      int       `json:"id"`
	Author  string    `json:"author"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sentAt"`
}

// Snapshot is the externally visible studio state.
type Snapshot struct {
	State      State         `json:"state"`
	Room       string        `json:"room"`
	Token      string        `json:"token,omitempty"`
	URL        string        `json:"url,omitempty"`
	CameraOn   bool          `json:"cameraOn"`
	MicOn      bool          `json:"micOn"`
	LastError  string        `json:"lastError,omitempty"`
	Chat       []ChatMessage `json:"chat"`
	Reactions  int           `json:"reactions"`
	Offerings  int           `json:"offerings"`
}

// Minter signs room access tokens for a participant.
type Minter interface {
	Mint(identity, name, room string) (string, error)
}

// Controller drives one broadcaster's studio through standby, token request,
// and connected phases. Camera and microphone switches survive transitions so
// a dropped connection comes back with the same device setup. Chat, reactions,
// and offerings are local simulated overlay state only.
type Controller struct {
	minter    Minter
	serverURL string

	mu        sync.Mutex
	state     State
	room      string
	token     string
	cameraOn  bool
	micOn     bool
	lastError string
	chat      []ChatMessage
	nextMsgID int
	reactions int
	offerings int
}

// NewController returns a standby studio backed by minter, with devices on
// and the chat overlay pre-seeded.
func NewController(minter Minter, serverURL string) *Controller {
	c := &Controller{
		minter:    minter,
		serverURL: serverURL,
		state:     StateStandby,
		cameraOn:  true,
		micOn:     true,
	}
	c.seedChatLocked()
	return c
}

func (c *Controller) seedChatLocked() {
	now := time.Now()
	seed := []struct{ author, content string }{
		{"seeker_of_light", "Blessings from the other side of the world"},
		{"quiet_pilgrim", "The last broadcast changed my whole week"},
		{"morning_star", "Here early, candle lit"},
	}
	c.chat = c.chat[:0]
	c.nextMsgID = 0
	for i, m := range seed {
		c.nextMsgID++
		c.chat = append(c.chat, ChatMessage{
			ID:      c.nextMsgID,
			Author:  m.author,
			Content: m.content,
			SentAt:  now.Add(time.Duration(i-len(seed)) * time.Minute),
		})
	}
}

// GoLive transitions standby → requesting token → connected. Any failure
// surfaces as LastError and drops the studio back to standby. Calling GoLive
// while already connected is a no-op.
func (c *Controller) GoLive(ctx context.Context, identity, name, room string) (Snapshot, error) {
	c.mu.Lock()
	if c.state != StateStandby {
		snapshot := c.snapshotLocked()
		c.mu.Unlock()
		return snapshot, nil
	}
	if room == "" {
		room = DefaultRoom
	}
	c.state = StateRequestingToken
	c.room = room
	c.lastError = ""
	c.mu.Unlock()

	token, err := c.minter.Mint(identity, name, room)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.state = StateStandby
		c.token = ""
		c.lastError = err.Error()
		return c.snapshotLocked(), fmt.Errorf("go live: %w", err)
	}

	if err := ctx.Err(); err != nil {
		c.state = StateStandby
		c.token = ""
		c.lastError = err.Error()
		return c.snapshotLocked(), err
	}

	c.state = StateConnected
	c.token = token
	return c.snapshotLocked(), nil
}

// EndLive clears the token and returns to standby. Device switches and the
// overlay counters are retained.
func (c *Controller) EndLive() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateStandby
	c.token = ""
	c.room = ""
	return c.snapshotLocked()
}

// HandleDisconnect records a dropped connection and returns to standby.
func (c *Controller) HandleDisconnect(reason string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateStandby
	c.token = ""
	c.lastError = reason
	return c.snapshotLocked()
}

// SetCamera flips the camera switch.
func (c *Controller) SetCamera(on bool) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cameraOn = on
	return c.snapshotLocked()
}

// SetMic flips the microphone switch.
func (c *Controller) SetMic(on bool) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.micOn = on
	return c.snapshotLocked()
}

// PostChat appends a broadcaster message to the simulated overlay.
func (c *Controller) PostChat(author, content string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextMsgID++
	c.chat = append(c.chat, ChatMessage{
		ID:      c.nextMsgID,
		Author:  author,
		Content: content,
		SentAt:  time.Now(),
	})
	return c.snapshotLocked()
}

// AddReaction bumps the floating-reaction counter.
func (c *Controller) AddReaction() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reactions++
	return c.snapshotLocked()
}

// AddOffering bumps the offerings counter.
func (c *Controller) AddOffering() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offerings++
	return c.snapshotLocked()
}

// Snapshot returns the current studio state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	chat := make([]ChatMessage, len(c.chat))
	copy(chat, c.chat)
	return Snapshot{
		State:     c.state,
		Room:      c.room,
		Token:     c.token,
		URL:       c.serverURL,
		CameraOn:  c.cameraOn,
		MicOn:     c.micOn,
		LastError: c.lastError,
		Chat:      chat,
		Reactions: c.reactions,
		Offerings: c.offerings,
	}
}
