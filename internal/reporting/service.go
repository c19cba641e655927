package reporting

import (
	"context"
	"errors"
	"sort"

	"chatdesk-platform/internal/conversation"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository is the read surface reporting needs. Satisfied by the
// conversation repository.
type Repository interface {
	List(ctx context.Context, f conversation.ListFilter) ([]conversation.Conversation, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

// Summary aggregates conversations started inside the requested range,
// grouped by their current sector.
func (s *Service) Summary(ctx context.Context, req SummaryRequest) (Summary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return Summary{}, ErrInvalidRequest
	}

	convs, err := s.repo.List(ctx, conversation.ListFilter{Sector: req.Sector})
	if err != nil {
		return Summary{}, err
	}

	type acc struct {
		SectorSummary
		handlingMs    int64
		handlingCount int64
	}
	bySector := make(map[string]*acc)

	for _, c := range convs {
		if !req.Range.Contains(c.StartedAt) {
			continue
		}
		a, ok := bySector[c.Sector]
		if !ok {
			a = &acc{SectorSummary: SectorSummary{Sector: c.Sector}}
			bySector[c.Sector] = a
		}

		a.Total++
		switch c.Status {
		case conversation.StatusWaiting:
			a.Waiting++
		case conversation.StatusInProgress:
			a.InProgress++
		case conversation.StatusResolved:
			a.Resolved++
		case conversation.StatusArchived:
			a.Archived++
		}
		if c.HandlingDurationMs != nil {
			a.handlingMs += *c.HandlingDurationMs
			a.handlingCount++
		}
	}

	out := Summary{Range: req.Range}
	for _, a := range bySector {
		if a.handlingCount > 0 {
			a.AverageHandlingMs = a.handlingMs / a.handlingCount
		}
		out.Sectors = append(out.Sectors, a.SectorSummary)
	}
	sort.Slice(out.Sectors, func(i, j int) bool { return out.Sectors[i].Sector < out.Sectors[j].Sector })
	return out, nil
}
