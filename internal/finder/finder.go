// Package finder runs the "find my lost item" flow: probe image to the
// similarity service, correlate hits with the report store, remember the
// result per session and merge the user's edits back as favorites.
package finder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/your-org/lostfound/internal/match"
	"github.com/your-org/lostfound/internal/models"
	"github.com/your-org/lostfound/internal/observability"
)

type SimilarityClient interface {
	Match(ctx context.Context, image []byte, filename string) ([]models.MatchCandidate, error)
}

type EventPublisher interface {
	PublishReportEvent(ctx context.Context, evt *models.ReportEvent) error
}

type Service struct {
	client     SimilarityClient
	store      match.RecordStore
	correlator *match.Correlator
	events     EventPublisher
	now        func() time.Time

	results *sessionCache
}

type Option func(*options)

type options struct {
	maxSessions int
	sessionTTL  time.Duration
}

// WithSessionLimits bounds how many sessions are remembered and for how long
// after their last use.
func WithSessionLimits(maxSessions int, ttl time.Duration) Option {
	return func(o *options) {
		o.maxSessions = maxSessions
		o.sessionTTL = ttl
	}
}

// New wires the service; events may be nil.
func New(client SimilarityClient, store match.RecordStore, correlator *match.Correlator, events EventPublisher, opts ...Option) (*Service, error) {
	if client == nil || store == nil || correlator == nil {
		return nil, errors.New("finder: client, store and correlator are required")
	}
	o := options{maxSessions: DefaultMaxSessions, sessionTTL: DefaultSessionTTL}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Service{
		client:     client,
		store:      store,
		correlator: correlator,
		events:     events,
		now:        time.Now,
	}
	s.results = newSessionCache(o.maxSessions, o.sessionTTL, func() time.Time { return s.now() })
	return s, nil
}

// Search replaces the session's matches. A failed similarity call clears
// whatever the session showed before, so stale matches never survive a new
// search. Without a session id nothing is remembered.
func (s *Service) Search(ctx context.Context, session string, image []byte, filename string) ([]models.Match, error) {
	candidates, err := s.client.Match(ctx, image, filename)
	if err != nil {
		s.setResults(session, nil)
		observability.MatchSearches.WithLabelValues("upstream_error").Inc()
		return nil, fmt.Errorf("match image: %w", err)
	}
	observability.MatchCandidates.Observe(float64(len(candidates)))

	records, err := s.store.List(ctx)
	if err != nil {
		s.setResults(session, nil)
		observability.MatchSearches.WithLabelValues("store_error").Inc()
		return nil, fmt.Errorf("list reports: %w", err)
	}

	matches := s.correlator.CorrelateIndexed(candidates, match.NewIndex(records))
	observability.MatchedReports.Observe(float64(len(matches)))
	observability.MatchSearches.WithLabelValues("ok").Inc()

	slog.Debug("match search",
		"session", session,
		"candidates", len(candidates),
		"matched", len(matches),
	)

	s.setResults(session, matches)
	return cloneMatches(matches), nil
}

// Latest returns the session's last successful matches.
func (s *Service) Latest(session string) []models.Match {
	if session == "" {
		return []models.Match{}
	}
	matches, _ := s.results.get(session)
	return cloneMatches(matches)
}

// SaveFavorites merges the edited reports into the store and refreshes the
// session's remembered matches with the edited versions.
func (s *Service) SaveFavorites(ctx context.Context, session string, edited []models.Report) (match.MergeResult, error) {
	now := s.now().UTC()

	stamped := make([]models.Report, len(edited))
	for i := range edited {
		stamped[i] = edited[i].Clone()
		if stamped[i].CreatedAt.IsZero() {
			stamped[i].CreatedAt = now
		}
		stamped[i].UpdatedAt = now
	}

	res, err := match.Merge(ctx, s.store, stamped)
	observability.FavoritesMerged.WithLabelValues("inserted").Add(float64(res.Inserted))
	observability.FavoritesMerged.WithLabelValues("updated").Add(float64(res.Updated))
	if err != nil {
		return res, err
	}

	s.refresh(session, stamped)

	if s.events != nil {
		for i := range stamped {
			evt := &models.ReportEvent{
				Type:      models.FavoritesSaved,
				ReportID:  stamped[i].ID,
				Report:    &stamped[i],
				Timestamp: now,
			}
			if err := s.events.PublishReportEvent(ctx, evt); err != nil {
				slog.Warn("publish favorites event", "report_id", stamped[i].ID, "error", err)
			}
		}
	}
	return res, nil
}

func (s *Service) refresh(session string, edited []models.Report) {
	if session == "" {
		return
	}
	s.results.update(session, func(current []models.Match) {
		for i := range current {
			for j := range edited {
				if current[i].Report.ID == edited[j].ID {
					current[i].Report = edited[j].Clone()
				}
			}
		}
	})
}

func (s *Service) setResults(session string, matches []models.Match) {
	if session == "" {
		return
	}
	if matches == nil {
		s.results.remove(session)
		return
	}
	s.results.set(session, matches)
}

func cloneMatches(in []models.Match) []models.Match {
	out := make([]models.Match, len(in))
	for i := range in {
		out[i] = in[i]
		out[i].Report = in[i].Report.Clone()
	}
	return out
}
