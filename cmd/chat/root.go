package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/tenantry/tenantry/internal/config"
	"github.com/tenantry/tenantry/internal/logger"
	"github.com/tenantry/tenantry/internal/messagesapi"
	"github.com/tenantry/tenantry/pkg/utils"
)

type rootOptions struct {
	serverURL  string
	token      string
	userID     string
	draftsPath string
	logLevel   string
	timeout    time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "chat",
		Short:         "Landlord and tenant messaging from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.resolve(cmd.Flags())
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	bindRootFlags(root.PersistentFlags(), opts)

	root.AddCommand(
		newConversationsCmd(opts),
		newUnreadCmd(opts),
		newOpenCmd(opts),
	)
	return root
}

func bindRootFlags(fs *pflag.FlagSet, opts *rootOptions) {
	fs.StringVar(&opts.serverURL, "server", "", "messages API base URL (env CHAT_SERVER_URL)")
	fs.StringVar(&opts.token, "token", "", "bearer token (env CHAT_TOKEN)")
	fs.StringVar(&opts.userID, "user", "", "current user id, defaults to the token's user (env CHAT_USER_ID)")
	fs.StringVar(&opts.draftsPath, "drafts", "", "drafts database path (env CHAT_DRAFTS_PATH)")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level (env LOG_LEVEL)")
	fs.DurationVar(&opts.timeout, "timeout", 0, "per-request timeout (env CHAT_REQUEST_TIMEOUT)")
}

// resolve fills every option the command line left unset from the
// environment.
func (o *rootOptions) resolve(fs *pflag.FlagSet) error {
	cfg, err := config.LoadClientConfig()
	if err != nil {
		return err
	}
	if !fs.Changed("server") {
		o.serverURL = cfg.ServerURL
	}
	if !fs.Changed("token") {
		o.token = cfg.Token
	}
	if !fs.Changed("user") {
		o.userID = cfg.UserID
	}
	if !fs.Changed("drafts") {
		o.draftsPath = cfg.DraftsPath
	}
	if !fs.Changed("log-level") {
		o.logLevel = cfg.LogLevel
	}
	if !fs.Changed("timeout") || o.timeout <= 0 {
		o.timeout = cfg.RequestTimeout
	}

	if o.token == "" {
		return errors.New("a bearer token is required (--token or CHAT_TOKEN)")
	}
	if o.userID == "" {
		claims, err := utils.PeekClaims(o.token)
		if err != nil {
			return fmt.Errorf("cannot determine current user: %w", err)
		}
		o.userID = claims.UserID
	}
	return nil
}

type session struct {
	opts   *rootOptions
	api    *messagesapi.Client
	logger *zap.Logger
}

func newSession(opts *rootOptions) (*session, error) {
	zl, err := logger.New(opts.logLevel, "development")
	if err != nil {
		return nil, err
	}
	api, err := messagesapi.NewClient(opts.serverURL, opts.token,
		messagesapi.WithTimeout(opts.timeout),
		messagesapi.WithLogger(zl.Named("api")),
	)
	if err != nil {
		return nil, err
	}
	return &session{opts: opts, api: api, logger: zl}, nil
}

func (s *session) close() {
	_ = s.logger.Sync()
}

func newConversationsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "conversations",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := newSession(opts)
			if err != nil {
				return err
			}
			defer sess.close()

			conversations, err := sess.api.ListConversations(cmd.Context())
			if err != nil {
				return err
			}
			printConversations(cmd.OutOrStdout(), conversations, opts.userID)
			return nil
		},
	}
}

func newUnreadCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "Print the number of unread messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := newSession(opts)
			if err != nil {
				return err
			}
			defer sess.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			count, err := sess.api.UnreadCount(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), count)
			return nil
		},
	}
}
