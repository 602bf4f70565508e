// Package ui manages the tree of posted interactive messages: each node
// owns a reaction control surface with permission-gated resize, close,
// help and reveal actions, and a per-session event loop dispatches
// incoming reactions to the owning node.
package ui

import (
	"context"
	"fmt"
	"strings"

	"forumbot/preview"
)

// Kind is the tagged variant of a control. Dispatch goes through the
// control's handler, never through string lookup; unknown reaction
// emoji are simply ignored.
type Kind int

const (
	KindMaximize Kind = iota
	KindMinimize
	KindClose
	KindHelp
	KindSpoilers
)

func (k Kind) String() string {
	switch k {
	case KindMaximize:
		return "max"
	case KindMinimize:
		return "min"
	case KindClose:
		return "close"
	case KindHelp:
		return "help"
	case KindSpoilers:
		return "spoilers"
	default:
		return "unknown"
	}
}

// Outcome tells the event loop what to do with the node after a control
// handler ran.
type Outcome int

const (
	KeepOpen Outcome = iota
	CloseNode
)

// Action is the context a control handler receives.
type Action struct {
	Node  *Node
	User  string // acting user ID
	Emoji string
}

// Handler reacts to a control activation on a node.
type Handler func(ctx context.Context, a Action) (Outcome, error)

// Control is one interactive affordance on a posted message.
type Control struct {
	Kind   Kind
	Emoji  string
	Help   string
	Handle Handler
}

// Maximize switches the node's preview to the large size tier.
func Maximize() Control {
	return Control{
		Kind:  KindMaximize,
		Emoji: "➕",
		Help:  "show more of the post",
		Handle: func(ctx context.Context, a Action) (Outcome, error) {
			return KeepOpen, a.Node.resize(ctx, preview.TierMaximized)
		},
	}
}

// Minimize switches the node's preview back to the standard size tier.
func Minimize() Control {
	return Control{
		Kind:  KindMinimize,
		Emoji: "➖",
		Help:  "show less of the post",
		Handle: func(ctx context.Context, a Action) (Outcome, error) {
			return KeepOpen, a.Node.resize(ctx, preview.TierStandard)
		},
	}
}

// Close deletes the node's message, closing its descendants first.
func Close() Control {
	return Control{
		Kind:  KindClose,
		Emoji: "✖",
		Help:  "remove this preview",
		Handle: func(ctx context.Context, a Action) (Outcome, error) {
			return CloseNode, nil
		},
	}
}

// Help posts a closeable child message describing the node's attached
// controls, then removes itself from the node. One shot.
func Help() Control {
	return Control{
		Kind:  KindHelp,
		Emoji: "❓",
		Help:  "show this help",
		Handle: func(ctx context.Context, a Action) (Outcome, error) {
			node := a.Node
			var sb strings.Builder
			for _, c := range node.Controls() {
				fmt.Fprintf(&sb, "%s %s\n", c.Emoji, c.Help)
			}
			art := preview.Note("Preview controls", sb.String(), node.session.limits)
			if _, err := node.session.postChild(ctx, node, art, []Control{Close()}); err != nil {
				return KeepOpen, err
			}
			node.RemoveControl(KindHelp)
			return KeepOpen, nil
		},
	}
}

// Spoilers posts the masked spoiler texts as a closeable child message.
func Spoilers(spoilers []string) Control {
	return Control{
		Kind:  KindSpoilers,
		Emoji: "🙈",
		Help:  "reveal spoilers",
		Handle: func(ctx context.Context, a Action) (Outcome, error) {
			node := a.Node
			text := strings.Join(spoilers, "\n\n")
			art := preview.Note("Spoilers", text, node.session.limits)
			_, err := node.session.postChild(ctx, node, art, []Control{Close()})
			return KeepOpen, err
		},
	}
}

// Defaults is the standard control layout for a preview node.
func Defaults() []Control {
	return []Control{Maximize(), Minimize(), Close()}
}
