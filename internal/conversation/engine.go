package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatdesk-platform/internal/classifier"
	"chatdesk-platform/internal/sector"

	"github.com/google/uuid"
)

// affirmations are the client replies that confirm a suggested
// transfer. Matched case-insensitively against the whole trimmed
// message. Deliberately a fixed set; weighted or fuzzy matching is a
// possible followup if confirmation rates turn out poor.
var affirmations = []string{
	"sim", "s", "yes", "y", "ok", "claro", "pode", "confirmo",
	"quero", "aceito", "isso", "positivo",
}

// Suggestion is the result of a successful transfer suggestion.
type Suggestion struct {
	Sector string
	Prompt string
}

// Engine is the single authority for conversation state transitions and
// message insertion. Every mutation runs inside a per-conversation
// critical section, reads the document, rewrites it, and saves it as a
// whole; partial updates cannot be observed.
type Engine struct {
	repo      Repository
	sectors   *sector.Directory
	classify  classifier.Classifier
	gateway   Gateway
	broadcast Broadcaster
	clock     func() time.Time
	log       *slog.Logger
	locks     *keyedLocks
}

func NewEngine(repo Repository, sectors *sector.Directory, classify classifier.Classifier, gateway Gateway, broadcast Broadcaster, log *slog.Logger) *Engine {
	if classify == nil {
		classify = classifier.Disabled{}
	}
	if broadcast == nil {
		broadcast = NopBroadcaster{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		repo:      repo,
		sectors:   sectors,
		classify:  classify,
		gateway:   gateway,
		broadcast: broadcast,
		clock:     time.Now,
		log:       log,
		locks:     newKeyedLocks(),
	}
}

// WithClock overrides the engine clock. Test use only.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// IngestClientMessage routes an inbound channel message to its
// conversation, creating or reopening one as needed.
//
// Classifier failure never fails ingestion; routing falls back to the
// first active sector. Outbound delivery failures are logged and
// absorbed after the mutation is committed.
func (e *Engine) IngestClientMessage(ctx context.Context, phone, displayName, text string) (Conversation, error) {
	if strings.TrimSpace(phone) == "" {
		return Conversation{}, errors.New("conversation: phone is required")
	}
	now := e.clock().UTC()

	// The phone lock serializes creation; without it two racing inbound
	// messages could each create a conversation for the same client.
	release := e.locks.acquire("phone:" + phone)
	defer release()

	conv, err := e.repo.FindOpenByPhone(ctx, phone)
	switch {
	case err == nil:
		return e.ingestExisting(ctx, conv.ID, displayName, text, now)
	case errors.Is(err, ErrNotFound):
	default:
		return Conversation{}, err
	}

	conv, err = e.repo.FindLatestResolvedByPhone(ctx, phone)
	switch {
	case err == nil:
		return e.ingestExisting(ctx, conv.ID, displayName, text, now)
	case errors.Is(err, ErrNotFound):
	default:
		return Conversation{}, err
	}

	return e.create(ctx, phone, displayName, text, now)
}

func (e *Engine) create(ctx context.Context, phone, displayName, text string, now time.Time) (Conversation, error) {
	candidates, err := e.sectors.ActiveNames(ctx)
	if err != nil {
		return Conversation{}, err
	}
	if len(candidates) == 0 {
		return Conversation{}, sector.ErrNoActiveSectors
	}

	routed, ok := pickCandidate(e.classify.Identify(ctx, text, candidates), candidates)
	if !ok {
		def, err := e.sectors.Default(ctx)
		if err != nil {
			return Conversation{}, err
		}
		routed = def.Name
	}

	name := strings.TrimSpace(displayName)
	if name == "" {
		name = phone
	}

	greeting := fmt.Sprintf("Olá, %s! Recebemos sua mensagem e o time de %s vai te atender em instantes.", name, routed)

	conv := Conversation{
		ID:        uuid.NewString(),
		Client:    Client{Name: name, Phone: phone},
		Sector:    routed,
		Subject:   "Atendimento",
		Status:    StatusWaiting,
		StartedAt: now,
		UpdatedAt: now,
		Messages: []Message{
			{Text: text, Kind: KindClient, CreatedAt: now},
			{Text: greeting, Kind: KindSystem, CreatedAt: now},
		},
	}

	conv, err = e.repo.Create(ctx, conv)
	if err != nil {
		return Conversation{}, err
	}

	e.broadcast.Publish(ctx, Event{Type: EventNewConversation, Conversation: conv})
	e.deliver(ctx, phone, greeting)
	return conv, nil
}

func (e *Engine) ingestExisting(ctx context.Context, id, displayName, text string, now time.Time) (Conversation, error) {
	release := e.locks.acquire("conv:" + id)
	defer release()

	conv, err := e.repo.FindByID(ctx, id)
	if err != nil {
		return Conversation{}, err
	}
	if conv.Status == StatusArchived {
		// Archived after lookup; archived is terminal, so this message
		// starts a fresh conversation.
		return e.create(ctx, conv.Client.Phone, displayName, text, now)
	}

	// Pending transfer suggestion: an affirmative reply confirms it,
	// anything else clears it and proceeds as a normal message.
	if conv.Status == StatusWaiting && conv.Transfer != nil && conv.Transfer.AwaitingConfirmation {
		return e.resolveSuggestion(ctx, conv, text, now)
	}

	reopened := conv.Status == StatusResolved
	if reopened {
		conv.Status = StatusWaiting
	}
	if conv.Client.Name == "" && strings.TrimSpace(displayName) != "" {
		conv.Client.Name = strings.TrimSpace(displayName)
	}

	conv.append(Message{Text: text, Kind: KindClient, CreatedAt: now})

	var sug *Suggestion
	if !reopened {
		sug = e.applySuggestion(ctx, &conv, text, now)
	}

	conv.UpdatedAt = now
	conv, err = e.repo.Save(ctx, conv)
	if err != nil {
		return Conversation{}, err
	}

	if reopened {
		e.broadcast.Publish(ctx, Event{Type: EventNewConversation, Conversation: conv})
	} else {
		e.broadcast.Publish(ctx, Event{Type: EventNewMessage, Conversation: conv})
	}
	if sug != nil {
		e.deliver(ctx, conv.Client.Phone, sug.Prompt)
	}
	return conv, nil
}

func (e *Engine) resolveSuggestion(ctx context.Context, conv Conversation, text string, now time.Time) (Conversation, error) {
	suggested := conv.Transfer.SuggestedSector
	conv.Transfer = nil
	conv.append(Message{Text: text, Kind: KindClient, CreatedAt: now})

	confirmed := isAffirmative(text)
	var target sector.Sector
	if confirmed {
		var err error
		target, err = e.sectors.Resolve(ctx, suggested)
		if err != nil {
			// Sector deactivated while the client was deciding; treat
			// the reply as a normal message.
			confirmed = false
		}
	}

	oldSector := conv.Sector
	var confirmation string
	if confirmed {
		confirmation = fmt.Sprintf("Conversa transferida de %s para %s a pedido do cliente.", oldSector, target.Name)
		conv.Sector = target.Name
		conv.append(Message{Text: confirmation, Kind: KindSystem, CreatedAt: now})
	}

	conv.UpdatedAt = now
	conv, err := e.repo.Save(ctx, conv)
	if err != nil {
		return Conversation{}, err
	}

	if confirmed {
		e.broadcast.Publish(ctx, Event{Type: EventTransferred, Conversation: conv, OldSector: oldSector})
		e.deliver(ctx, conv.Client.Phone, fmt.Sprintf("Você foi transferido para o setor %s.", conv.Sector))
	} else {
		e.broadcast.Publish(ctx, Event{Type: EventNewMessage, Conversation: conv})
	}
	return conv, nil
}

// applySuggestion runs the classifier against the other active sectors
// and, on a confident answer, stages a transfer suggestion on the
// document. Mutates conv in place; the caller saves.
func (e *Engine) applySuggestion(ctx context.Context, conv *Conversation, text string, now time.Time) *Suggestion {
	if conv.Status != StatusWaiting {
		return nil
	}
	if conv.Transfer != nil && conv.Transfer.AwaitingConfirmation {
		return nil
	}

	names, err := e.sectors.ActiveNames(ctx)
	if err != nil {
		e.log.Warn("sector listing failed during suggestion", "err", err)
		return nil
	}
	candidates := make([]string, 0, len(names))
	for _, n := range names {
		if !strings.EqualFold(n, conv.Sector) {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	identified, ok := pickCandidate(e.classify.Identify(ctx, text, candidates), candidates)
	if !ok {
		return nil
	}

	prompt := fmt.Sprintf("Percebi que sua solicitação pode ser do setor %s. Quer que eu transfira? Responda \"sim\" para confirmar.", identified)
	conv.Transfer = &Transfer{AwaitingConfirmation: true, SuggestedSector: identified}
	conv.append(Message{Text: prompt, Kind: KindSystem, CreatedAt: now})
	return &Suggestion{Sector: identified, Prompt: prompt}
}

// SuggestTransferIfApplicable runs the suggestion flow for a waiting
// conversation outside of ingestion. Returns nil when no suggestion
// applies.
func (e *Engine) SuggestTransferIfApplicable(ctx context.Context, id, text string) (*Suggestion, error) {
	now := e.clock().UTC()
	release := e.locks.acquire("conv:" + id)
	defer release()

	conv, err := e.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	sug := e.applySuggestion(ctx, &conv, text, now)
	if sug == nil {
		return nil, nil
	}

	conv.UpdatedAt = now
	conv, err = e.repo.Save(ctx, conv)
	if err != nil {
		return nil, err
	}
	e.broadcast.Publish(ctx, Event{Type: EventUpdated, Conversation: conv})
	e.deliver(ctx, conv.Client.Phone, sug.Prompt)
	return sug, nil
}

// AppendAgentMessage appends an agent reply. The first agent touch on a
// waiting conversation moves it to in_progress.
func (e *Engine) AppendAgentMessage(ctx context.Context, id, agentName, text string) (Conversation, error) {
	now := e.clock().UTC()
	release := e.locks.acquire("conv:" + id)
	defer release()

	conv, err := e.repo.FindByID(ctx, id)
	if err != nil {
		return Conversation{}, err
	}
	if conv.Status == StatusArchived || conv.Status == StatusResolved {
		return Conversation{}, fmt.Errorf("%w: cannot reply to a %s conversation", ErrInvalidState, conv.Status)
	}

	if conv.Status == StatusWaiting {
		conv.Status = StatusInProgress
	}
	// An agent took over; any pending transfer suggestion is moot.
	conv.Transfer = nil

	conv.append(Message{Text: text, Kind: KindAgent, AgentName: agentName, CreatedAt: now})
	conv.UpdatedAt = now

	conv, err = e.repo.Save(ctx, conv)
	if err != nil {
		return Conversation{}, err
	}

	e.broadcast.Publish(ctx, Event{Type: EventAgentReply, Conversation: conv})
	e.deliver(ctx, conv.Client.Phone, text)
	return conv, nil
}

// TransferSector moves the conversation to another active sector.
func (e *Engine) TransferSector(ctx context.Context, id, newSector, actor string) (Conversation, error) {
	now := e.clock().UTC()
	release := e.locks.acquire("conv:" + id)
	defer release()

	conv, err := e.repo.FindByID(ctx, id)
	if err != nil {
		return Conversation{}, err
	}
	if conv.Status == StatusArchived {
		return Conversation{}, fmt.Errorf("%w: conversation is archived", ErrInvalidState)
	}

	target, err := e.sectors.Resolve(ctx, newSector)
	if err != nil {
		if errors.Is(err, sector.ErrNotFound) {
			return Conversation{}, fmt.Errorf("%w: %q", ErrInvalidSector, newSector)
		}
		return Conversation{}, err
	}
	if strings.EqualFold(target.Name, conv.Sector) {
		return Conversation{}, fmt.Errorf("%w: conversation already in sector %q", ErrNoOp, conv.Sector)
	}

	oldSector := conv.Sector
	conv.Sector = target.Name
	conv.Transfer = nil
	conv.append(Message{
		Text:      fmt.Sprintf("Conversa transferida de %s para %s por %s.", oldSector, target.Name, actor),
		Kind:      KindSystem,
		CreatedAt: now,
	})
	conv.UpdatedAt = now

	conv, err = e.repo.Save(ctx, conv)
	if err != nil {
		return Conversation{}, err
	}

	e.broadcast.Publish(ctx, Event{Type: EventTransferred, Conversation: conv, OldSector: oldSector})
	return conv, nil
}

// Finish resolves the conversation. Not idempotent: finishing an
// already-resolved conversation is an invalid transition.
func (e *Engine) Finish(ctx context.Context, id, actor string) (Conversation, error) {
	now := e.clock().UTC()
	release := e.locks.acquire("conv:" + id)
	defer release()

	conv, err := e.repo.FindByID(ctx, id)
	if err != nil {
		return Conversation{}, err
	}
	if conv.Status == StatusResolved {
		return Conversation{}, fmt.Errorf("%w: conversation already resolved", ErrInvalidState)
	}
	if conv.Status == StatusArchived {
		return Conversation{}, fmt.Errorf("%w: conversation is archived", ErrInvalidState)
	}

	conv.Status = StatusResolved
	if conv.FinishedAt == nil {
		ts := now
		conv.FinishedAt = &ts
	}
	if conv.HandlingDurationMs == nil {
		ms := conv.FinishedAt.Sub(conv.StartedAt).Milliseconds()
		conv.HandlingDurationMs = &ms
	}
	conv.UpdatedAt = now

	conv, err = e.repo.Save(ctx, conv)
	if err != nil {
		return Conversation{}, err
	}

	e.broadcast.Publish(ctx, Event{Type: EventFinished, Conversation: conv})
	return conv, nil
}

// Archive marks the conversation archived. Archived is terminal and
// reachable from any status; the store excludes archived conversations
// from routing, which is what enforces the dead end.
func (e *Engine) Archive(ctx context.Context, id, actor string) (Conversation, error) {
	now := e.clock().UTC()
	release := e.locks.acquire("conv:" + id)
	defer release()

	conv, err := e.repo.FindByID(ctx, id)
	if err != nil {
		return Conversation{}, err
	}

	conv.Status = StatusArchived
	conv.UpdatedAt = now

	conv, err = e.repo.Save(ctx, conv)
	if err != nil {
		return Conversation{}, err
	}

	e.broadcast.Publish(ctx, Event{Type: EventUpdated, Conversation: conv})
	return conv, nil
}

// List returns conversations matching the filter, newest first.
func (e *Engine) List(ctx context.Context, f ListFilter) ([]Conversation, error) {
	return e.repo.List(ctx, f)
}

// Find returns a single conversation by id.
func (e *Engine) Find(ctx context.Context, id string) (Conversation, error) {
	return e.repo.FindByID(ctx, id)
}

// ArchiveInactive archives open conversations with no activity for the
// given window. Returns the number archived.
func (e *Engine) ArchiveInactive(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := e.clock().UTC().Add(-olderThan)
	stale, err := e.repo.ListOpenInactiveSince(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	archived := 0
	for _, conv := range stale {
		if _, err := e.Archive(ctx, conv.ID, "system"); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return archived, err
		}
		archived++
	}
	return archived, nil
}

func (e *Engine) deliver(ctx context.Context, phone, text string) {
	if e.gateway == nil {
		return
	}
	if err := e.gateway.Send(ctx, phone, text); err != nil {
		// Delivery is bounded by the gateway's own timeout; the
		// conversation mutation already committed stands.
		e.log.Warn("outbound delivery failed", "phone", phone, "err", err)
	}
}

// pickCandidate accepts a classifier answer only when it names one of
// the candidates. Anything else counts as not identified.
func pickCandidate(answer string, candidates []string) (string, bool) {
	if answer == classifier.NotIdentified {
		return "", false
	}
	for _, c := range candidates {
		if strings.EqualFold(c, answer) {
			return c, true
		}
	}
	return "", false
}

func isAffirmative(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.TrimRight(text, "!.?,;")
	for _, a := range affirmations {
		if text == a {
			return true
		}
	}
	return false
}
