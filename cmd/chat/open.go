package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tenantry/tenantry/internal/chatsync"
	"github.com/tenantry/tenantry/internal/drafts"
	chatws "github.com/tenantry/tenantry/internal/websocket"
)

const openHelp = `Commands:
  /open <peer>   switch conversation
  /retry         resend the saved draft
  /refresh       reload the conversation
  /list          show conversations
  /quit          leave
Anything else is sent as a message.`

func newOpenCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "open <peer-id>",
		Short: "Open a conversation and chat interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(opts)
			if err != nil {
				return err
			}
			defer sess.close()

			return runChat(cmd.Context(), sess, args[0], cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

type chatLoop struct {
	sess   *session
	client *chatsync.Client
	drafts *drafts.Store
	view   *renderer
	out    io.Writer
	logger *zap.Logger
}

func runChat(ctx context.Context, sess *session, peerID string, in io.Reader, out io.Writer) error {
	logger := sess.logger

	var push chatsync.PushChannel
	var pushDone <-chan struct{}
	conn, err := chatws.Dial(ctx, sess.opts.serverURL, sess.opts.token, chatws.WithDialLogger(logger.Named("push")))
	if err != nil {
		fmt.Fprintf(out, "! live updates unavailable: %v\n", err)
	} else {
		defer conn.Close()
		push = conn
		pushDone = conn.Done()
	}

	client, err := chatsync.New(chatsync.Options{
		API:           sess.api,
		Push:          push,
		CurrentUserID: sess.opts.userID,
		Logger:        logger.Named("sync"),
	})
	if err != nil {
		return err
	}
	client.Start(ctx)
	defer client.Close()

	loop := &chatLoop{
		sess:   sess,
		client: client,
		view:   newRenderer(out),
		out:    out,
		logger: logger,
	}

	store, err := drafts.Open(sess.opts.draftsPath)
	if err != nil {
		logger.Warn("drafts unavailable", zap.Error(err))
	} else {
		defer store.Close()
		loop.drafts = store
	}

	renderCtx, stopRender := context.WithCancel(ctx)
	defer stopRender()
	go loop.renderChanges(renderCtx)

	loop.open(ctx, peerID)
	fmt.Fprintln(out, openHelp)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			loop.saveDraft()
			return nil
		case <-pushDone:
			fmt.Fprintln(out, "! live updates disconnected; messages will appear after /refresh")
			pushDone = nil
		case line, ok := <-lines:
			if !ok {
				loop.saveDraft()
				return nil
			}
			if quit := loop.handleLine(ctx, line); quit {
				loop.saveDraft()
				return nil
			}
		}
	}
}

func (l *chatLoop) renderChanges(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.client.Changes():
			l.render()
		}
	}
}

func (l *chatLoop) render() {
	view, err := l.client.View()
	if err != nil {
		l.logger.Warn("merge view", zap.Error(err))
		return
	}
	sender := l.client.Sender()
	l.view.render(view, l.client.Store().Err(), sender.Notice(), sender.Cooldown())
}

func (l *chatLoop) open(ctx context.Context, peerID string) {
	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		fmt.Fprintln(l.out, "! peer id is required")
		return
	}
	l.saveDraft()
	l.view.reset(peerID)

	// A failed load is recorded on the store and rendered from there.
	if err := l.client.SelectConversation(ctx, peerID); err != nil {
		l.logger.Debug("select conversation", zap.String("peer", peerID), zap.Error(err))
	}

	l.client.Sender().SetDraft("")
	if l.drafts != nil {
		if draft, ok, err := l.drafts.Load(l.sess.opts.userID, peerID); err == nil && ok {
			l.client.Sender().SetDraft(draft.Content)
			fmt.Fprintf(l.out, "Unsent draft restored: %q (type /retry to send)\n", draft.Content)
		}
	}
	l.render()
}

func (l *chatLoop) handleLine(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return false
	case trimmed == "/quit" || trimmed == "/exit":
		return true
	case trimmed == "/help":
		fmt.Fprintln(l.out, openHelp)
	case trimmed == "/list":
		if err := l.client.RefreshConversations(ctx); err != nil {
			fmt.Fprintf(l.out, "! could not load conversations: %v\n", err)
			return false
		}
		printConversations(l.out, l.client.Store().Conversations(), l.sess.opts.userID)
	case trimmed == "/refresh":
		l.open(ctx, l.client.Store().ActivePeer())
	case strings.HasPrefix(trimmed, "/open"):
		l.open(ctx, strings.TrimSpace(strings.TrimPrefix(trimmed, "/open")))
	case trimmed == "/retry":
		draft := l.client.Sender().Draft()
		if strings.TrimSpace(draft) == "" {
			fmt.Fprintln(l.out, "! nothing to resend")
			return false
		}
		l.send(ctx, draft)
	default:
		l.send(ctx, line)
	}
	return false
}

func (l *chatLoop) send(ctx context.Context, content string) {
	err := l.client.Send(ctx, content)
	switch {
	case err == nil:
		l.deleteDraft()
	case errors.Is(err, chatsync.ErrCoolingDown):
		fmt.Fprintf(l.out, "! %s\n", l.client.Sender().Notice())
	case errors.Is(err, chatsync.ErrSendInFlight):
		fmt.Fprintln(l.out, "! still sending the previous message")
	case errors.Is(err, chatsync.ErrNoConversation):
		fmt.Fprintln(l.out, "! open a conversation first: /open <peer>")
	case errors.Is(err, chatsync.ErrEmptyContent):
	default:
		l.saveDraft()
	}
	l.render()
}

func (l *chatLoop) saveDraft() {
	if l.drafts == nil {
		return
	}
	peerID := l.client.Store().ActivePeer()
	if peerID == "" {
		return
	}
	if err := l.drafts.Save(l.sess.opts.userID, peerID, l.client.Sender().Draft()); err != nil {
		l.logger.Warn("save draft", zap.Error(err))
	}
}

func (l *chatLoop) deleteDraft() {
	if l.drafts == nil {
		return
	}
	peerID := l.client.Store().ActivePeer()
	if peerID == "" {
		return
	}
	if err := l.drafts.Delete(l.sess.opts.userID, peerID); err != nil {
		l.logger.Warn("delete draft", zap.Error(err))
	}
}
