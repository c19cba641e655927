// Package command parses agent-typed slash commands and dispatches them
// to engine operations or template lookup.
//
// Contract: Execute never fails — malformed input always resolves to a
// Result carrying either a payload or a structured error naming the
// offending command.
package command

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"chatdesk-platform/internal/conversation"
	"chatdesk-platform/internal/sector"
	"chatdesk-platform/internal/template"
)

const Prefix = "/"

var ErrUnknownCommand = errors.New("command: unknown command")

// Kind discriminates interpreter results.
type Kind string

const (
	KindTransferred Kind = "transferred"
	KindFinished    Kind = "finished"
	KindOptions     Kind = "options"
	KindTemplate    Kind = "template"
	KindHelp        Kind = "help"
	KindError       Kind = "error"
)

// Option is a selectable item offered back to the agent UI.
type Option struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label"`
}

// HelpEntry documents one supported command.
type HelpEntry struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// Result is the tagged outcome of interpreting one input.
// Exactly the fields implied by Kind are set.
type Result struct {
	Kind    Kind
	Command string

	// Conversation is set for KindTransferred and KindFinished.
	Conversation *conversation.Conversation

	// Options and Prompt are set for KindOptions.
	Options []Option
	Prompt  string

	// TemplateName and Content are set for KindTemplate. Content is
	// handed back to the agent; it is never auto-sent.
	TemplateName string
	Content      string

	// Help is set for KindHelp.
	Help []HelpEntry

	// Err is set for KindError.
	Err error
}

// Actor identifies the agent issuing the command.
type Actor struct {
	UserID string
	Name   string
	Sector string
}

// Engine is the subset of conversation operations commands can trigger.
type Engine interface {
	TransferSector(ctx context.Context, id, newSector, actor string) (conversation.Conversation, error)
	Finish(ctx context.Context, id, actor string) (conversation.Conversation, error)
}

type Interpreter struct {
	engine    Engine
	sectors   *sector.Directory
	templates *template.Service
}

func NewInterpreter(engine Engine, sectors *sector.Directory, templates *template.Service) *Interpreter {
	return &Interpreter{engine: engine, sectors: sectors, templates: templates}
}

var helpEntries = []HelpEntry{
	{Command: "/transfer [setor]", Description: "Transfere a conversa para outro setor. Sem parâmetro, lista os setores disponíveis."},
	{Command: "/finish", Description: "Encerra a conversa atual."},
	{Command: "/template [nome] (atalho: /t)", Description: "Insere um modelo de mensagem. Sem parâmetro, lista os modelos visíveis."},
	{Command: "/ajuda (ou /help)", Description: "Mostra esta lista de comandos."},
}

// Execute interprets one agent input for the given conversation.
func (i *Interpreter) Execute(ctx context.Context, conversationID string, actor Actor, input string) Result {
	body := strings.TrimSpace(input)
	if !strings.HasPrefix(body, Prefix) {
		return Result{Kind: KindError, Command: body, Err: ErrUnknownCommand}
	}
	body = strings.TrimSpace(strings.TrimPrefix(body, Prefix))
	if body == "" {
		return Result{Kind: KindError, Command: Prefix, Err: ErrUnknownCommand}
	}

	cmd, param := splitCommand(body)

	switch strings.ToLower(cmd) {
	case "transfer":
		return i.transfer(ctx, conversationID, actor, param)
	case "finish":
		return i.finish(ctx, conversationID, actor)
	case "template", "t":
		return i.template(ctx, actor, param)
	case "help", "ajuda":
		return Result{Kind: KindHelp, Command: cmd, Help: helpEntries}
	default:
		// Unrecognized commands fall through to implicit template
		// lookup on the whole body.
		return i.implicitTemplate(ctx, actor, body)
	}
}

func (i *Interpreter) transfer(ctx context.Context, conversationID string, actor Actor, param string) Result {
	if param == "" {
		names, err := i.sectors.ActiveNames(ctx)
		if err != nil {
			return Result{Kind: KindError, Command: "transfer", Err: err}
		}
		opts := make([]Option, 0, len(names))
		for _, n := range names {
			opts = append(opts, Option{Label: n})
		}
		return Result{
			Kind:    KindOptions,
			Command: "transfer",
			Options: opts,
			Prompt:  "Informe o setor de destino: /transfer <setor>",
		}
	}

	conv, err := i.engine.TransferSector(ctx, conversationID, param, actor.Name)
	if err != nil {
		return Result{Kind: KindError, Command: "transfer", Err: err}
	}
	return Result{Kind: KindTransferred, Command: "transfer", Conversation: &conv}
}

func (i *Interpreter) finish(ctx context.Context, conversationID string, actor Actor) Result {
	conv, err := i.engine.Finish(ctx, conversationID, actor.Name)
	if err != nil {
		return Result{Kind: KindError, Command: "finish", Err: err}
	}
	return Result{Kind: KindFinished, Command: "finish", Conversation: &conv}
}

func (i *Interpreter) template(ctx context.Context, actor Actor, param string) Result {
	if param == "" {
		visible, err := i.templates.ListVisible(ctx, actor.UserID, actor.Sector)
		if err != nil {
			return Result{Kind: KindError, Command: "template", Err: err}
		}
		opts := make([]Option, 0, len(visible))
		for _, t := range visible {
			opts = append(opts, Option{ID: t.ID, Label: t.Name})
		}
		return Result{
			Kind:    KindOptions,
			Command: "template",
			Options: opts,
			Prompt:  "Informe o modelo: /template <nome>",
		}
	}

	t, err := i.templates.Resolve(ctx, actor.UserID, actor.Sector, param)
	if err != nil {
		return Result{Kind: KindError, Command: "template", Err: err}
	}
	return Result{Kind: KindTemplate, Command: "template", TemplateName: t.Name, Content: t.Content}
}

func (i *Interpreter) implicitTemplate(ctx context.Context, actor Actor, body string) Result {
	t, err := i.templates.Resolve(ctx, actor.UserID, actor.Sector, body)
	if err != nil {
		if errors.Is(err, template.ErrNotFound) {
			return Result{Kind: KindError, Command: body, Err: ErrUnknownCommand}
		}
		return Result{Kind: KindError, Command: body, Err: err}
	}
	return Result{Kind: KindTemplate, Command: body, TemplateName: t.Name, Content: t.Content}
}

// splitCommand separates the command token from its trailing parameter
// string at the first whitespace.
func splitCommand(body string) (cmd, param string) {
	idx := strings.IndexFunc(body, unicode.IsSpace)
	if idx < 0 {
		return body, ""
	}
	return body[:idx], strings.TrimSpace(body[idx:])
}
