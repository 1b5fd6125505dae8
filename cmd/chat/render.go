package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/tenantry/tenantry/internal/chatsync"
	"github.com/tenantry/tenantry/internal/models"
)

const snippetWidth = 48

func printConversations(w io.Writer, conversations []models.ConversationSummary, currentUserID string) {
	if len(conversations) == 0 {
		fmt.Fprintln(w, "No conversations yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PEER\tUNREAD\tLAST\tMESSAGE")
	for _, c := range conversations {
		last, snippet := "-", ""
		if c.LastMessage != nil {
			last = formatTime(c.LastMessage.SentAt)
			snippet = truncate(c.LastMessage.Content, snippetWidth)
			if c.LastMessage.SenderID.ID == currentUserID {
				snippet = "you: " + snippet
			}
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", peerLabel(c.Peer), c.UnreadCount, last, snippet)
	}
	_ = tw.Flush()
}

func peerLabel(peer models.ParticipantRef) string {
	label := peer.ID
	if peer.Name != "" {
		label = peer.Name + " (" + peer.ID + ")"
	}
	if peer.Role != "" {
		label += " [" + peer.Role + "]"
	}
	return label
}

func formatTime(ts time.Time) string {
	return ts.Local().Format("2006-01-02 15:04")
}

func truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}

// renderer prints the open conversation incrementally: each message once,
// in merged order, plus notice transitions.
type renderer struct {
	mu       sync.Mutex
	out      io.Writer
	peerID   string
	printed  map[string]struct{}
	notice   string
	cooldown int
	failed   string
}

func newRenderer(out io.Writer) *renderer {
	return &renderer{out: out, printed: make(map[string]struct{})}
}

func (r *renderer) reset(peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peerID = peerID
	r.printed = make(map[string]struct{})
	r.failed = ""
	fmt.Fprintf(r.out, "--- conversation with %s ---\n", peerID)
}

func (r *renderer) render(view []chatsync.ViewMessage, loadErr error, notice string, cooldown int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if loadErr != nil {
		if msg := loadErr.Error(); msg != r.failed {
			r.failed = msg
			fmt.Fprintf(r.out, "! could not load messages: %s (type /refresh to retry)\n", msg)
		}
	} else {
		r.failed = ""
	}

	for _, m := range view {
		key := chatsync.DedupKey(m.Message)
		if _, seen := r.printed[key]; seen {
			continue
		}
		r.printed[key] = struct{}{}
		author := m.SenderID.ID
		if m.IsOwn {
			author = "you"
		}
		fmt.Fprintf(r.out, "[%s] %s: %s\n", formatTime(m.SentAt), author, m.Content)
	}

	// The countdown itself is not reprinted every second.
	countingDown := cooldown > 0 && r.cooldown > 0
	if notice != r.notice && notice != "" && !countingDown {
		fmt.Fprintf(r.out, "! %s\n", notice)
	}
	if cooldown == 0 && r.cooldown > 0 {
		fmt.Fprintln(r.out, "You can send messages again.")
	}
	r.notice = notice
	r.cooldown = cooldown
}
