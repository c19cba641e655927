package command

import (
	"context"
	"errors"
	"testing"

	"chatdesk-platform/internal/conversation"
	"chatdesk-platform/internal/sector"
	"chatdesk-platform/internal/template"
)

type stubEngine struct {
	transferred string
	finished    bool
	err         error
}

func (s *stubEngine) TransferSector(ctx context.Context, id, newSector, actor string) (conversation.Conversation, error) {
	if s.err != nil {
		return conversation.Conversation{}, s.err
	}
	s.transferred = newSector
	return conversation.Conversation{ID: id, Sector: newSector}, nil
}

func (s *stubEngine) Finish(ctx context.Context, id, actor string) (conversation.Conversation, error) {
	if s.err != nil {
		return conversation.Conversation{}, s.err
	}
	s.finished = true
	return conversation.Conversation{ID: id, Status: conversation.StatusResolved}, nil
}

func newTestInterpreter(engine *stubEngine) *Interpreter {
	sectors := sector.NewMemoryRepo()
	sectors.Add(sector.Sector{Name: "Vendas", Active: true})
	sectors.Add(sector.Sector{Name: "Suporte", Active: true})

	templates := template.NewMemoryRepo()
	templates.Add(template.Template{Name: "Horario", Content: "Atendemos das 8h às 18h.", Shared: true})
	templates.Add(template.Template{Name: "Boleto", Content: "Segue a segunda via.", Sector: "Financeiro"})

	return NewInterpreter(engine, sector.NewDirectory(sectors), template.NewService(templates))
}

var actor = Actor{UserID: "u1", Name: "Ana", Sector: "Vendas"}

func TestExecute_TransferWithSector(t *testing.T) {
	engine := &stubEngine{}
	i := newTestInterpreter(engine)
	res := i.Execute(context.Background(), "c1", actor, "/transfer Suporte")
	if res.Kind != KindTransferred {
		t.Fatalf("expected transferred, got %q (err=%v)", res.Kind, res.Err)
	}
	if engine.transferred != "Suporte" {
		t.Fatalf("engine received %q", engine.transferred)
	}
}

func TestExecute_TransferErrorIsStructured(t *testing.T) {
	engine := &stubEngine{err: conversation.ErrInvalidSector}
	i := newTestInterpreter(engine)
	res := i.Execute(context.Background(), "c1", actor, "/transfer NaoExiste")
	if res.Kind != KindError || res.Command != "transfer" {
		t.Fatalf("expected structured transfer error, got %+v", res)
	}
	if !errors.Is(res.Err, conversation.ErrInvalidSector) {
		t.Fatalf("expected ErrInvalidSector, got %v", res.Err)
	}
}

func TestExecute_TransferWithoutParamListsSectors(t *testing.T) {
	i := newTestInterpreter(&stubEngine{})
	res := i.Execute(context.Background(), "c1", actor, "/transfer")
	if res.Kind != KindOptions || res.Command != "transfer" {
		t.Fatalf("expected sector options, got %+v", res)
	}
	if len(res.Options) != 2 {
		t.Fatalf("expected 2 sectors, got %d", len(res.Options))
	}
}

func TestExecute_Finish(t *testing.T) {
	engine := &stubEngine{}
	i := newTestInterpreter(engine)
	res := i.Execute(context.Background(), "c1", actor, "/finish")
	if res.Kind != KindFinished || !engine.finished {
		t.Fatalf("expected finish dispatch, got %+v", res)
	}
}

func TestExecute_CommandsAreCaseInsensitive(t *testing.T) {
	engine := &stubEngine{}
	i := newTestInterpreter(engine)
	if res := i.Execute(context.Background(), "c1", actor, "/FINISH"); res.Kind != KindFinished {
		t.Fatalf("expected case-insensitive match, got %+v", res)
	}
}

func TestExecute_TemplateListAndResolve(t *testing.T) {
	i := newTestInterpreter(&stubEngine{})
	ctx := context.Background()

	list := i.Execute(ctx, "c1", actor, "/template")
	if list.Kind != KindOptions {
		t.Fatalf("expected options, got %+v", list)
	}
	// Only the shared template is visible to a Vendas agent.
	if len(list.Options) != 1 || list.Options[0].Label != "Horario" {
		t.Fatalf("unexpected visible templates: %+v", list.Options)
	}

	got := i.Execute(ctx, "c1", actor, "/t horario")
	if got.Kind != KindTemplate || got.Content != "Atendemos das 8h às 18h." {
		t.Fatalf("expected template content via alias, got %+v", got)
	}

	missing := i.Execute(ctx, "c1", actor, "/template Boleto")
	if missing.Kind != KindError || !errors.Is(missing.Err, template.ErrNotFound) {
		t.Fatalf("expected not found for out-of-scope template, got %+v", missing)
	}
}

func TestExecute_HelpAndAlias(t *testing.T) {
	i := newTestInterpreter(&stubEngine{})
	for _, in := range []string{"/help", "/ajuda"} {
		res := i.Execute(context.Background(), "c1", actor, in)
		if res.Kind != KindHelp || len(res.Help) == 0 {
			t.Fatalf("expected help for %q, got %+v", in, res)
		}
	}
}

func TestExecute_ImplicitTemplate(t *testing.T) {
	i := newTestInterpreter(&stubEngine{})
	res := i.Execute(context.Background(), "c1", actor, "/horario")
	if res.Kind != KindTemplate || res.TemplateName != "Horario" {
		t.Fatalf("expected implicit template resolution, got %+v", res)
	}
}

func TestExecute_UnknownCommand(t *testing.T) {
	i := newTestInterpreter(&stubEngine{})
	res := i.Execute(context.Background(), "c1", actor, "/abracadabra agora")
	if res.Kind != KindError || !errors.Is(res.Err, ErrUnknownCommand) {
		t.Fatalf("expected unknown command, got %+v", res)
	}
}

func TestExecute_MalformedInputNeverPanics(t *testing.T) {
	i := newTestInterpreter(&stubEngine{})
	for _, in := range []string{"/", "   /   ", "sem prefixo", ""} {
		res := i.Execute(context.Background(), "c1", actor, in)
		if res.Kind != KindError {
			t.Fatalf("expected error result for %q, got %+v", in, res)
		}
	}
}
