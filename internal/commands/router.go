// Package commands parses and executes the staff prefix commands that run
// inside ticket channels.
package commands

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/dx-community/modmail/internal/auth"
	"github.com/dx-community/modmail/internal/gateway"
	"github.com/dx-community/modmail/internal/observability"
	"github.com/dx-community/modmail/internal/service"
)

// Context carries one invocation through a handler.
type Context struct {
	Ctx    context.Context
	Msg    gateway.InboundMessage
	Member *gateway.Member
	// Args are the whitespace-split arguments after the command name.
	Args []string
	// Rest is the raw text after the command name, whitespace-trimmed.
	Rest string
}

// HandlerFunc executes one command. Returned errors are translated into a
// user-visible reply by the router.
type HandlerFunc func(cctx *Context) error

type command struct {
	allow   auth.Predicate
	usage   string
	handler HandlerFunc
}

// Router dispatches prefixed guild messages to command handlers. Unknown
// names fall through to macro lookup so staff can invoke canned replies by
// key alone.
type Router struct {
	prefix      string
	client      gateway.Client
	checker     *auth.Checker
	lifecycle   *service.LifecycleService
	macros      *service.MacroService
	transcripts *service.TranscriptService
	tokens      *auth.TokenManager
	logger      *zap.Logger
	metrics     *observability.Metrics
	commands    map[string]command
}

// RouterDependencies bundles collaborators for the router.
type RouterDependencies struct {
	Prefix      string
	Client      gateway.Client
	Checker     *auth.Checker
	Lifecycle   *service.LifecycleService
	Macros      *service.MacroService
	Transcripts *service.TranscriptService
	Tokens      *auth.TokenManager
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// NewRouter constructs the router and registers every command.
func NewRouter(deps RouterDependencies) *Router {
	r := &Router{
		prefix:      deps.Prefix,
		client:      deps.Client,
		checker:     deps.Checker,
		lifecycle:   deps.Lifecycle,
		macros:      deps.Macros,
		transcripts: deps.Transcripts,
		tokens:      deps.Tokens,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
	}
	r.commands = map[string]command{
		"move":        {allow: deps.Checker.ManageChannels, usage: "move <category>", handler: r.handleMove},
		"newcc":       {allow: deps.Checker.ManageChannels, usage: "newcc <name>", handler: r.handleNewCategory},
		"close":       {allow: deps.Checker.StaffOrManageChannels, usage: "close [duration]", handler: r.handleClose},
		"cancelclose": {allow: deps.Checker.StaffOrManageChannels, usage: "cancelclose", handler: r.handleCancelClose},
		"log":         {allow: deps.Checker.StaffOrManageChannels, usage: "log", handler: r.handleLog},
		"suspend":     {allow: deps.Checker.StaffOrManageChannels, usage: "suspend", handler: r.handleSuspend},
		"notifyme":    {allow: deps.Checker.StaffOrManageChannels, usage: "notifyme", handler: r.handleNotifyMe},
		"transfer":    {allow: deps.Checker.StaffOrManageChannels, usage: "transfer <staff>", handler: r.handleTransfer},
		"contact":     {allow: deps.Checker.ManageGuild, usage: "contact <user_id> [reason]", handler: r.handleContact},
		"transcript":  {allow: deps.Checker.StaffOrManageChannels, usage: "transcript [user_id]", handler: r.handleTranscript},
		"dxadd":       {allow: deps.Checker.AuthorizedUser, usage: "dxadd <key> <text>", handler: r.handleMacroAdd},
		"dxremove":    {allow: deps.Checker.AuthorizedUser, usage: "dxremove <key>", handler: r.handleMacroRemove},
		"dx":          {allow: deps.Checker.StaffOrManageChannels, usage: "dx", handler: r.handleMacroList},
		"msg":         {allow: deps.Checker.StaffOrManageChannels, usage: "msg <key>", handler: r.handleMacroSend},
		"r":           {allow: deps.Checker.StaffOrManageChannels, usage: "r <text>", handler: r.handleReply},
		"re":          {allow: deps.Checker.StaffOrManageChannels, usage: "re <text>", handler: r.handleReplyEdit},
		"delete":      {allow: deps.Checker.StaffOrManageChannels, usage: "delete", handler: r.handleReplyDelete},
	}
	return r
}

// Handle routes an inbound guild message. Non-prefixed messages are
// ignored; handler failures never escape to the gateway loop.
func (r *Router) Handle(ctx context.Context, msg gateway.InboundMessage) {
	if msg.AuthorIsBot || !strings.HasPrefix(msg.Content, r.prefix) {
		return
	}
	body := strings.TrimPrefix(msg.Content, r.prefix)
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return
	}
	name := strings.ToLower(fields[0])

	member, err := r.client.Member(ctx, msg.AuthorID)
	if err != nil {
		r.logger.Warn("resolving command author failed",
			zap.String("user_id", msg.AuthorID), zap.Error(err))
		return
	}

	// Slice after the command name rather than TrimPrefix: leading
	// whitespace between prefix and name would defeat the trim.
	rest := ""
	if idx := strings.Index(body, fields[0]); idx >= 0 {
		rest = strings.TrimSpace(body[idx+len(fields[0]):])
	}

	cctx := &Context{
		Ctx:    ctx,
		Msg:    msg,
		Member: member,
		Args:   fields[1:],
		Rest:   rest,
	}

	cmd, ok := r.commands[name]
	if !ok {
		r.fallthroughMacro(cctx, name)
		return
	}

	if !cmd.allow(member) {
		r.reply(cctx, "You do not have permission to use this command.")
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("command panicked",
				zap.String("command", name), zap.Any("panic", rec))
			r.metrics.RecordCommand(name, true)
		}
	}()

	if err := cmd.handler(cctx); err != nil {
		r.metrics.RecordCommand(name, true)
		r.logger.Error("command failed",
			zap.String("command", name),
			zap.String("channel_id", msg.ChannelID),
			zap.Error(err))
		r.replyError(cctx, err)
		return
	}
	r.metrics.RecordCommand(name, false)
}

// fallthroughMacro treats an unknown command name as a macro key. Unknown
// keys stay silent so unrelated prefixed text is not answered.
func (r *Router) fallthroughMacro(cctx *Context, key string) {
	if !r.checker.StaffOrManageChannels(cctx.Member) {
		return
	}
	sent, err := r.macros.SendMacro(cctx.Ctx, cctx.Msg.ChannelID, cctx.Member.User.Username, key)
	if err != nil {
		r.metrics.RecordCommand("macro", true)
		r.logger.Error("macro send failed", zap.String("key", key), zap.Error(err))
		r.replyError(cctx, err)
		return
	}
	if !sent {
		return
	}
	r.metrics.RecordCommand("macro", false)
	r.deleteInvocation(cctx)
}

func (r *Router) deleteInvocation(cctx *Context) {
	if err := r.client.DeleteMessage(cctx.Ctx, cctx.Msg.ChannelID, cctx.Msg.MessageID); err != nil {
		r.logger.Debug("deleting command message failed", zap.Error(err))
	}
}
