package ui

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"forumbot/platform"
	"forumbot/preview"
)

// DefaultIdleTimeout is how long a session waits for a qualifying
// reaction before its loop exits. Nodes left open simply stop
// responding; their messages are not deleted.
const DefaultIdleTimeout = 24 * time.Hour

// Node is one posted, independently closeable interactive message.
// A node exclusively owns its children; the parent back-reference is a
// node-ID key, never a strong pointer, so closing never chases a
// dangling parent.
type Node struct {
	id       string
	parentID string // "" for the root
	children []*Node

	OwnerID  string
	Msg      platform.Message
	Artifact *preview.Artifact

	controls []Control
	session  *Session
}

// ID returns the node's identity key.
func (n *Node) ID() string { return n.id }

// Controls returns the currently attached controls in order.
func (n *Node) Controls() []Control {
	return append([]Control(nil), n.controls...)
}

// AddControl attaches a control. A control of the same kind already
// attached is a no-op. The emoji is added to the posted message so the
// control is usable from the next event on.
func (n *Node) AddControl(ctx context.Context, c Control) error {
	for _, existing := range n.controls {
		if existing.Kind == c.Kind {
			return nil
		}
	}
	n.controls = append(n.controls, c)
	return n.session.client.AddReaction(ctx, n.Msg, c.Emoji)
}

// RemoveControl detaches the control of the given kind. Takes effect on
// the next event.
func (n *Node) RemoveControl(kind Kind) {
	kept := n.controls[:0]
	for _, c := range n.controls {
		if c.Kind != kind {
			kept = append(kept, c)
		}
	}
	n.controls = kept
}

func (n *Node) control(emoji string) *Control {
	for i := range n.controls {
		if n.controls[i].Emoji == emoji {
			return &n.controls[i]
		}
	}
	return nil
}

// resize recomputes the preview at the requested tier and edits the
// posted message only when the rendered text actually changed.
func (n *Node) resize(ctx context.Context, tier preview.Tier) error {
	if !n.Artifact.Resize(tier) {
		return nil
	}
	return n.session.client.EditEmbed(ctx, n.Msg, n.Artifact.Embed())
}

// Session owns one root interactive message and all of its descendants,
// and runs the single event loop that serves them. All tree mutation
// happens inside that loop, one event at a time.
type Session struct {
	id     string
	client platform.Client
	limits preview.Limits
	idle   time.Duration
	events chan platform.ReactionEvent

	root      *Node
	nodes     map[string]*Node // live set, keyed by node ID
	byMessage map[string]*Node // posted message ID -> node
}

// NewSession creates a session around the platform client. idle <= 0
// selects DefaultIdleTimeout.
func NewSession(client platform.Client, limits preview.Limits, idle time.Duration) *Session {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Session{
		id:        uuid.NewString(),
		client:    client,
		limits:    limits,
		idle:      idle,
		events:    make(chan platform.ReactionEvent, 16),
		nodes:     make(map[string]*Node),
		byMessage: make(map[string]*Node),
	}
}

// ID returns the session's identity key.
func (s *Session) ID() string { return s.id }

// Deliver hands a reaction event to the session's loop. Events for
// messages outside this session's forest are ignored there. Never
// blocks; a full queue drops the event.
func (s *Session) Deliver(ev platform.ReactionEvent) {
	select {
	case s.events <- ev:
	default:
		log.Printf("ui: session %s event queue full, dropping reaction %s", s.id, ev.Emoji)
	}
}

// PostRoot sends the artifact as the session's root message and attaches
// its control reactions in order.
func (s *Session) PostRoot(ctx context.Context, channelID, ownerID string, art *preview.Artifact, controls []Control) (*Node, error) {
	if s.root != nil {
		return nil, fmt.Errorf("session already has a root")
	}
	node, err := s.post(ctx, channelID, "", ownerID, art, controls)
	if err != nil {
		return nil, err
	}
	s.root = node
	return node, nil
}

func (s *Session) postChild(ctx context.Context, parent *Node, art *preview.Artifact, controls []Control) (*Node, error) {
	node, err := s.post(ctx, parent.Msg.ChannelID, parent.id, parent.OwnerID, art, controls)
	if err != nil {
		return nil, err
	}
	parent.children = append(parent.children, node)
	return node, nil
}

func (s *Session) post(ctx context.Context, channelID, parentID, ownerID string, art *preview.Artifact, controls []Control) (*Node, error) {
	msg, err := s.client.SendEmbed(ctx, channelID, art.Embed())
	if err != nil {
		return nil, fmt.Errorf("posting message: %w", err)
	}
	node := &Node{
		id:       uuid.NewString(),
		parentID: parentID,
		OwnerID:  ownerID,
		Msg:      msg,
		Artifact: art,
		controls: controls,
		session:  s,
	}
	s.nodes[node.id] = node
	s.byMessage[msg.ID] = node
	for _, c := range controls {
		if err := s.client.AddReaction(ctx, msg, c.Emoji); err != nil {
			log.Printf("ui: attaching %s control to %s: %v", c.Kind, msg.ID, err)
		}
	}
	return node, nil
}

// close removes the node and everything below it: descendants close
// depth-first, children before the node itself, so the node's own
// message is always deleted last.
func (s *Session) close(ctx context.Context, n *Node) error {
	for _, child := range append([]*Node(nil), n.children...) {
		if err := s.close(ctx, child); err != nil {
			log.Printf("ui: closing child node: %v", err)
		}
	}
	n.children = nil
	if parent := s.nodes[n.parentID]; parent != nil {
		parent.removeChild(n.id)
	}
	delete(s.nodes, n.id)
	delete(s.byMessage, n.Msg.ID)
	if err := s.client.DeleteMessage(ctx, n.Msg); err != nil {
		return fmt.Errorf("deleting message %s: %w", n.Msg.ID, err)
	}
	return nil
}

func (n *Node) removeChild(id string) {
	kept := n.children[:0]
	for _, c := range n.children {
		if c.id != id {
			kept = append(kept, c)
		}
	}
	n.children = kept
}

// LiveCount returns how many nodes are live, for inspection and tests.
func (s *Session) LiveCount() int { return len(s.nodes) }

// Run serves reaction events until the root closes, the idle timeout
// fires, or ctx is cancelled. Handler failures are logged per event and
// never end the loop.
func (s *Session) Run(ctx context.Context) error {
	timer := time.NewTimer(s.idle)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case ev := <-s.events:
			qualified, rootClosed := s.handle(ctx, ev)
			if rootClosed {
				return nil
			}
			if qualified {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(s.idle)
			}
		}
	}
}

// handle processes one reaction event. It reports whether the event
// qualified (passed the permission check against a node of this forest)
// and whether it closed the root.
func (s *Session) handle(ctx context.Context, ev platform.ReactionEvent) (qualified, rootClosed bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ui: control handler panic on %s: %v", ev.Message.ID, r)
		}
	}()

	node := s.byMessage[ev.Message.ID]
	if node == nil {
		return false, false
	}
	ok, err := s.authorized(ctx, node, ev)
	if err != nil {
		log.Printf("ui: permission lookup for %s: %v", ev.User.ID, err)
		return false, false
	}
	if !ok {
		// Unauthorized reactions are ignored without feedback.
		return false, false
	}

	ctl := node.control(ev.Emoji)
	if ctl == nil {
		// Reaction emoji not mapped to a control; ignored.
		return true, false
	}

	outcome, err := ctl.Handle(ctx, Action{Node: node, User: ev.User.ID, Emoji: ev.Emoji})
	if err != nil {
		log.Printf("ui: %s control on %s: %v", ctl.Kind, ev.Message.ID, err)
	}
	if outcome == CloseNode {
		isRoot := node == s.root
		if err := s.close(ctx, node); err != nil {
			log.Printf("ui: closing node: %v", err)
		}
		return true, isRoot
	}
	return true, false
}

// authorized applies the control-surface permission check: the acting
// user must be the original requester of the node's root, or hold
// administrator rights in the channel, and must not be a bot.
func (s *Session) authorized(ctx context.Context, node *Node, ev platform.ReactionEvent) (bool, error) {
	if ev.User.Bot {
		return false, nil
	}
	if s.rootOf(node).OwnerID == ev.User.ID {
		return true, nil
	}
	return s.client.IsAdmin(ctx, ev.Message.ChannelID, ev.User.ID)
}

// rootOf walks the parent keys to the ultimate ancestor. A missing
// parent (already closed) terminates the walk at the node itself.
func (s *Session) rootOf(n *Node) *Node {
	for n.parentID != "" {
		parent := s.nodes[n.parentID]
		if parent == nil {
			break
		}
		n = parent
	}
	return n
}
