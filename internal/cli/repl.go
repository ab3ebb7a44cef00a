// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// repl.go - Interactive chat loop for rigchat.
//
// Interactive Commands (prefix with /, \ or :):
//   help, h             Show available commands
//   models, m           List models and their availability
//   set, s <model>      Switch model
//   new, n              Start a new conversation
//   clear, c            Clear the current conversation
//   history, hi         Show the conversation so far
//   export, e <file>    Save the conversation (.json, .md or text)
//   import, i <file>    Load a saved JSON conversation
//   prompt, p <text>    Set the system prompt
//   save                Save to ~/.rigchat/conversations
//   saved               List saved conversations
//   load <id>           Load a saved conversation
//   stats               Show store statistics
//   quit, q, exit       Leave
//   Ctrl+C              Cancel the current reply
//   Ctrl+D              Exit

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/export"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/router"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/storage"
	"github.com/jeranaias/rigchat/internal/util"
)

const helpText = `Available commands (prefix with /, \ or :):
  help, h          Show this help information
  models, m        List all available models
  set, s <model>   Set current model
  new, n           Create new conversation
  clear, c         Clear current conversation
  history, hi      Show conversation history
  export, e <file> Export current conversation (.json, .md, otherwise text)
  import, i <file> Import a conversation exported as JSON
  prompt, p <text> Set system prompt
  save             Save current conversation to the conversations directory
  saved            List saved conversations
  load <id>        Load a saved conversation
  stats            Show conversation statistics
  quit, q, exit    Exit program

Type anything else to chat with the current model.`

// commandAliases maps every accepted spelling to its canonical command.
var commandAliases = map[string]string{
	"help": "help", "h": "help",
	"models": "models", "m": "models",
	"set": "set", "s": "set",
	"new": "new", "n": "new",
	"clear": "clear", "c": "clear",
	"history": "history", "hi": "history",
	"export": "export", "e": "export",
	"import": "import", "i": "import",
	"prompt": "prompt", "p": "prompt",
	"save": "save", "saved": "saved", "load": "load",
	"stats": "stats",
	"quit": "quit", "q": "quit", "exit": "quit",
}

// bareCommands may be typed without a prefix. Short aliases are excluded
// so that greetings like "hi" still reach the model.
var bareCommands = map[string]bool{
	"help": true, "models": true, "new": true, "clear": true,
	"history": true, "stats": true, "quit": true, "exit": true,
	"save": true, "saved": true,
}

// =============================================================================
// REPL STATE
// =============================================================================

// REPL is one interactive chat session.
type REPL struct {
	cfg    *config.Config
	store  session.Store
	reg    *router.Registry
	saved  *storage.Dir
	in     LineReader
	out    io.Writer
	logger *slog.Logger

	// markdown re-renders finished answers with glamour.
	markdown bool
	// interrupt scopes Ctrl+C to the reply being streamed.
	interrupt func(context.Context) (context.Context, context.CancelFunc)

	mu        sync.Mutex
	modelName string
	adapter   model.Adapter
	convID    string
	prompt    string
	running   bool
}

// NewREPL wires a session. The system prompt starts as the configured
// default.
func NewREPL(cfg *config.Config, store session.Store, reg *router.Registry, in LineReader, out io.Writer) *REPL {
	return &REPL{
		cfg:       cfg,
		store:     store,
		reg:       reg,
		in:        in,
		out:       out,
		logger:    slog.New(slog.DiscardHandler),
		interrupt: notifyInterrupt,
		modelName: cfg.Ollama.DefaultModel,
		prompt:    cfg.Chat.SystemPrompt,
		running:   true,
	}
}

// WithLogger sets the logger.
func (r *REPL) WithLogger(l *slog.Logger) *REPL {
	if l != nil {
		r.logger = l.With("component", "cli")
	}
	return r
}

// WithSavedDir enables the save, saved and load commands.
func (r *REPL) WithSavedDir(d *storage.Dir) *REPL {
	r.saved = d
	return r
}

// WithMarkdown enables glamour rendering of finished answers.
func (r *REPL) WithMarkdown(enabled bool) *REPL {
	r.markdown = enabled
	return r
}

func notifyInterrupt(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt)
}

// ConversationID returns the active conversation, or "".
func (r *REPL) ConversationID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.convID
}

// ModelName returns the selected model.
func (r *REPL) ModelName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.modelName
}

// =============================================================================
// MAIN LOOP
// =============================================================================

// Run starts the session with initialModel and initialPrompt (either may
// be empty for the configured defaults) and reads input until quit or
// end of input.
func (r *REPL) Run(ctx context.Context, initialModel, initialPrompt string) error {
	defer r.in.Close()

	r.println(BannerStyle.Render("rigchat - AI chat assistant\nLocal Ollama and hosted models"))

	if initialModel == "" {
		initialModel = r.ModelName()
	}
	r.SetModel(ctx, initialModel)
	if initialPrompt != "" {
		r.prompt = initialPrompt
	}
	r.NewConversation()

	r.println(SuccessStyle.Render("\nReady. Type 'help' to see available commands."))

	for r.isRunning() {
		line, err := r.in.ReadLine("\n> ")
		switch {
		case errors.Is(err, ErrInterrupted):
			r.println(WarningStyle.Render("\nProgram interrupted by user"))
			return nil
		case errors.Is(err, io.EOF):
			r.println(WarningStyle.Render("\nInput ended"))
			return nil
		case err != nil:
			return fmt.Errorf("read input: %w", err)
		}
		r.Handle(ctx, line)
	}
	return nil
}

// Handle processes one input line: a command or a chat message.
func (r *REPL) Handle(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	if cmd, args, ok := parseCommand(line); ok {
		r.Dispatch(ctx, cmd, args)
		return
	}
	r.Send(ctx, line)
}

// parseCommand recognizes prefixed commands and bare long command names.
func parseCommand(line string) (cmd string, args []string, ok bool) {
	if strings.ContainsRune(`/\:`, rune(line[0])) {
		fields := strings.Fields(line[1:])
		if len(fields) == 0 {
			return "", nil, true
		}
		return strings.ToLower(fields[0]), fields[1:], true
	}
	if lower := strings.ToLower(line); bareCommands[lower] {
		return lower, nil, true
	}
	return "", nil, false
}

func (r *REPL) isRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// =============================================================================
// COMMANDS
// =============================================================================

// Dispatch runs one command by name or alias.
func (r *REPL) Dispatch(ctx context.Context, name string, args []string) {
	switch commandAliases[name] {
	case "help":
		r.println(InfoStyle.Render(helpText))
	case "models":
		r.ShowModels(ctx)
	case "set":
		if len(args) == 0 {
			r.warn("Usage: set <model_name>")
			return
		}
		r.SetModel(ctx, args[0])
	case "new":
		r.NewConversation()
	case "clear":
		r.ClearConversation()
	case "history":
		r.ShowHistory()
	case "export":
		if len(args) == 0 {
			r.warn("Usage: export <filename>")
			return
		}
		r.Export(args[0])
	case "import":
		if len(args) == 0 {
			r.warn("Usage: import <filename>")
			return
		}
		r.Import(args[0])
	case "prompt":
		if len(args) == 0 {
			r.warn("Usage: prompt <prompt_content>")
			return
		}
		r.SetPrompt(strings.Join(args, " "))
	case "save":
		r.Save()
	case "saved":
		r.ListSaved()
	case "load":
		if len(args) == 0 {
			r.warn("Usage: load <id>")
			return
		}
		r.LoadSaved(args[0])
	case "stats":
		r.ShowStats()
	case "quit":
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		r.println(SuccessStyle.Render("Goodbye!"))
	default:
		r.errorf("Unknown command: %s", name)
		r.println("Type 'help' to see available commands")
	}
}

// ShowModels probes every model and prints a table.
func (r *REPL) ShowModels(ctx context.Context) {
	r.println(InfoStyle.Render("Checking models..."))
	writeModelTable(r.out, r.reg.ProbeAll(ctx, r.cfg), r.ModelName())
}

// SetModel switches to name if it is configured, constructible and
// available. The previous model stays selected otherwise.
func (r *REPL) SetModel(ctx context.Context, name string) bool {
	if !r.cfg.IsValidModel(name) {
		r.errorf("Invalid model name '%s'", name)
		return false
	}
	a, ok := r.reg.ForModel(ctx, r.cfg, name)
	if !ok {
		r.errorf("Failed to create model instance '%s'", name)
		return false
	}
	if !a.IsAvailable(ctx) {
		r.errorf("Model '%s' is not available", name)
		return false
	}

	r.mu.Lock()
	r.modelName = name
	r.adapter = a
	r.mu.Unlock()

	r.success("Model set to: %s", name)
	r.logger.Info("model selected", "model", name)
	return true
}

// NewConversation starts a conversation with the current prompt.
func (r *REPL) NewConversation() {
	id := r.store.Create(r.prompt)
	r.mu.Lock()
	r.convID = id
	r.mu.Unlock()

	r.success("New conversation created: %s", id)
	if r.prompt != "" {
		r.println(InfoStyle.Render("System prompt: " + r.prompt))
	}
}

// ClearConversation removes the current messages.
func (r *REPL) ClearConversation() {
	id := r.ConversationID()
	if id == "" {
		r.warn("No active conversation")
		return
	}
	if r.store.Clear(id) {
		r.success("Conversation cleared")
	} else {
		r.errorf("Failed to clear conversation")
	}
}

// ShowHistory prints the current conversation.
func (r *REPL) ShowHistory() {
	id := r.ConversationID()
	if id == "" {
		r.warn("No active conversation")
		return
	}
	msgs := r.store.Messages(id)
	if len(msgs) == 0 {
		r.warn("No messages in current conversation")
		return
	}

	r.println(SuccessStyle.Render(fmt.Sprintf("\nConversation history (%d messages total):", len(msgs))))
	r.println(RenderSeparator())
	for i, m := range msgs {
		label := UserStyle.Render(m.Role.DisplayName() + ":")
		if m.Role == model.RoleAssistant {
			label = AssistantStyle.Render(m.Role.DisplayName() + ":")
		}
		r.println(DimStyle.Render("["+m.Timestamp.Format("2006-01-02 15:04:05")+"]") + " " + label)
		r.println("  " + strings.ReplaceAll(WrapText(m.Content, GetTerminalWidth()-4), "\n", "\n  "))
		if i < len(msgs)-1 {
			r.println("")
		}
	}
	r.println(RenderSeparator())
}

// Export writes the current conversation to path.
func (r *REPL) Export(path string) {
	conv, ok := r.store.Get(r.ConversationID())
	if !ok {
		r.warn("No active conversation")
		return
	}
	if err := export.WriteFile(conv, path); err != nil {
		r.errorf("Export failed - %v", err)
		return
	}
	r.success("Conversation exported to: %s", path)
}

// Import loads a JSON export and makes it current.
func (r *REPL) Import(path string) {
	id, err := storage.LoadConversation(r.store, path)
	if err != nil {
		r.errorf("Import failed - %v", err)
		return
	}
	r.mu.Lock()
	r.convID = id
	r.mu.Unlock()

	conv, _ := r.store.Get(id)
	r.success("Imported %d messages as conversation %s", len(conv.Messages), id)
}

// SetPrompt updates the current conversation and future ones.
func (r *REPL) SetPrompt(prompt string) {
	id := r.ConversationID()
	if id == "" {
		r.warn("Please create a conversation first")
		return
	}
	if !r.store.UpdateSystemPrompt(id, prompt) {
		r.errorf("Failed to update system prompt")
		return
	}
	r.mu.Lock()
	r.prompt = prompt
	r.mu.Unlock()
	r.success("System prompt updated")
	r.println(InfoStyle.Render("New prompt: " + prompt))
}

// Save writes the current conversation to the conversations directory.
func (r *REPL) Save() {
	if r.saved == nil {
		r.warn("Saved conversations are not available")
		return
	}
	conv, ok := r.store.Get(r.ConversationID())
	if !ok {
		r.warn("No active conversation")
		return
	}
	path, err := r.saved.Save(conv)
	if err != nil {
		r.errorf("Save failed - %v", err)
		return
	}
	r.success("Conversation saved to: %s", path)
}

// ListSaved prints the conversations directory.
func (r *REPL) ListSaved() {
	if r.saved == nil {
		r.warn("Saved conversations are not available")
		return
	}
	summaries, err := r.saved.List()
	if err != nil {
		r.errorf("Listing failed - %v", err)
		return
	}
	fmt.Fprint(r.out, storage.FormatList(summaries))
}

// LoadSaved imports a saved conversation by id or unique id prefix and
// makes it current.
func (r *REPL) LoadSaved(ref string) {
	if r.saved == nil {
		r.warn("Saved conversations are not available")
		return
	}
	id, err := r.resolveSaved(ref)
	if err != nil {
		r.errorf("%v", err)
		return
	}
	newID, err := r.saved.Load(r.store, id)
	if err != nil {
		r.errorf("Load failed - %v", err)
		return
	}
	r.mu.Lock()
	r.convID = newID
	r.mu.Unlock()
	r.success("Loaded conversation %s", newID)
}

// resolveSaved expands the short ids printed by ListSaved.
func (r *REPL) resolveSaved(ref string) (string, error) {
	summaries, err := r.saved.List()
	if err != nil {
		return "", err
	}
	var match string
	for _, s := range summaries {
		if s.ID == ref {
			return s.ID, nil
		}
		if strings.HasPrefix(s.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("ambiguous id '%s'", ref)
			}
			match = s.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no saved conversation '%s'", ref)
	}
	return match, nil
}

// ShowStats prints store totals.
func (r *REPL) ShowStats() {
	st := r.store.Stats()
	r.println(fmt.Sprintf("Conversations: %d", st.TotalConversations))
	r.println(fmt.Sprintf("Messages:      %d", st.TotalMessages))
	r.println(fmt.Sprintf("Average:       %.1f per conversation", st.AverageMessages))
}

// =============================================================================
// CHAT
// =============================================================================

// Send appends the user message, streams the reply and stores it. A
// failed or cancelled reply is not stored.
func (r *REPL) Send(ctx context.Context, text string) {
	r.mu.Lock()
	adapter := r.adapter
	r.mu.Unlock()
	if adapter == nil {
		r.errorf("Please select a model first")
		return
	}
	if r.ConversationID() == "" {
		r.NewConversation()
	}
	id := r.ConversationID()

	text = util.SanitizeInput(text)
	if text == "" {
		return
	}
	if !r.store.AddMessage(id, model.RoleUser, text) {
		r.errorf("Failed to record message")
		return
	}

	conv, ok := r.store.Get(id)
	if !ok {
		r.errorf("Conversation not found")
		return
	}
	opts := r.cfg.ChatOptions(conv.SystemPrompt)

	sctx, stop := r.interrupt(ctx)
	defer stop()

	fmt.Fprint(r.out, "\n"+AssistantStyle.Render("Assistant:")+" ")

	var reply strings.Builder
	var failure string
	for chunk := range adapter.ChatStream(sctx, conv.Messages, opts) {
		if resp, isFailure := model.ParseStreamFailure(chunk); isFailure {
			failure = resp.ErrorMessage()
			break
		}
		reply.WriteString(chunk)
		fmt.Fprint(r.out, chunk)
	}
	r.println("")

	switch {
	case sctx.Err() != nil && ctx.Err() == nil:
		r.warn("[Cancelled]")
	case failure != "":
		r.errorf("%s", failure)
	case reply.Len() == 0:
		r.warn("(empty reply)")
	default:
		answer := reply.String()
		r.store.AddMessage(id, model.RoleAssistant, answer)
		if r.markdown && looksLikeMarkdown(answer) {
			r.println(RenderSeparator())
			fmt.Fprint(r.out, renderMarkdown(answer))
		}
	}
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func (r *REPL) println(s string) {
	fmt.Fprintln(r.out, s)
}

func (r *REPL) success(format string, a ...any) {
	r.println(SuccessStyle.Render("[OK] " + fmt.Sprintf(format, a...)))
}

func (r *REPL) errorf(format string, a ...any) {
	r.println(ErrorStyle.Render("Error: " + fmt.Sprintf(format, a...)))
}

func (r *REPL) warn(s string) {
	r.println(WarningStyle.Render(s))
}
