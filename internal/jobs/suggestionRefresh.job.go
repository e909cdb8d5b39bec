package jobs

import (
	"context"
	"net/url"

	"sevadesk/internal/events"
	"sevadesk/internal/logger"
	"sevadesk/internal/models"
	"sevadesk/internal/services"
)

// SuggestionRefreshJob rebuilds the suggestion index from the server:
// the distinct service types in the document catalog plus every approved
// suggestion. It runs on its schedule and again whenever the suggestion
// channel asks for a refresh.
type SuggestionRefreshJob struct {
	gateway  *services.SyncGateway
	suggest  *services.SuggestService
	log      logger.Logger
	schedule services.Schedule
}

func NewSuggestionRefreshJob(
	gateway *services.SyncGateway,
	suggest *services.SuggestService,
	eventBus *events.EventBus,
	schedule services.Schedule,
) *SuggestionRefreshJob {
	j := &SuggestionRefreshJob{
		gateway:  gateway,
		suggest:  suggest,
		log:      logger.New("suggestionRefreshJob"),
		schedule: schedule,
	}

	eventBus.Subscribe(events.SUGGESTION_CHANNEL, func(event events.Event) error {
		if event.Type != events.INDEX_REFRESH_NEEDED {
			return nil
		}
		return j.Execute(context.Background())
	})

	return j
}

func (j *SuggestionRefreshJob) Name() string {
	return "SuggestionRefresh"
}

func (j *SuggestionRefreshJob) Schedule() services.Schedule {
	return j.schedule
}

func (j *SuggestionRefreshJob) Execute(ctx context.Context) error {
	log := j.log.Function("Execute")

	// Jobs run unattended, so they authenticate with the service key
	// rather than a staff session.
	session := services.Session{}

	documents, err := services.List[models.ServiceDocument](ctx, j.gateway, session, url.Values{})
	if err != nil {
		return log.Err("failed to load document catalog", err)
	}

	query := url.Values{}
	query.Set("status", "eq."+string(models.StatusApproved))
	approved, err := services.List[models.ServiceSuggestion](ctx, j.gateway, session, query)
	if err != nil {
		return log.Err("failed to load approved suggestions", err)
	}

	names := make([]string, 0, len(documents)+len(approved))
	for _, doc := range documents {
		names = append(names, doc.ServiceType)
	}
	for _, suggestion := range approved {
		names = append(names, suggestion.Name)
	}

	j.suggest.SetIndex(names)
	log.Info("Suggestion index refreshed",
		"documents", len(documents), "approved", len(approved))
	return nil
}
