package dashboard

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/event-content-agent/internal/agent/generator"
	"github.com/event-content-agent/internal/ai"
	"github.com/event-content-agent/internal/angles"
	"github.com/event-content-agent/internal/batch"
	"github.com/event-content-agent/internal/enrichment"
	"github.com/event-content-agent/internal/export"
	"github.com/event-content-agent/internal/models"
	"github.com/event-content-agent/internal/session"
	"github.com/event-content-agent/internal/storage"
)

func (s *Server) getSession(c *gin.Context) {
	Success(c, s.session.Status())
}

func (s *Server) resetSession(c *gin.Context) {
	s.session.Reset()
	s.log.Info().Msg("Session reset")
	Success(c, s.session.Status())
}

// EventSummary is an event as listed for selection
type EventSummary struct {
	EventID          string         `json:"event_id"`
	Artist           string         `json:"artist"`
	EventName        string         `json:"event_name"`
	Location         string         `json:"location"`
	Genre            string         `json:"genre"`
	Rank             int            `json:"rank"`
	Recent7dGMS      float64        `json:"recent_7d_gms"`
	CompletenessPct  float64        `json:"completeness_pct"`
	Angles           []models.Angle `json:"angles"`
	HighImpactAngles int            `json:"high_impact_angles"`
}

func summarize(events []*models.EnrichedEvent) []EventSummary {
	out := make([]EventSummary, 0, len(events))
	for _, e := range events {
		classified := angles.Classify(e)
		high := 0
		for _, a := range classified {
			if angles.IsHighImpact(a) {
				high++
			}
		}
		out = append(out, EventSummary{
			EventID:          e.EventID,
			Artist:           e.DisplayName(),
			EventName:        e.EventName,
			Location:         e.Location(),
			Genre:            e.Genre,
			Rank:             e.Rank,
			Recent7dGMS:      e.Recent7dGMS,
			CompletenessPct:  e.DataCompleteness.CompletenessScore * 100,
			Angles:           classified,
			HighImpactAngles: high,
		})
	}
	return out
}

func (s *Server) loadData(c *gin.Context) {
	loaded, err := s.pipeline.LoadEvents(c.Request.Context())
	if err != nil {
		s.session.SetError(err)
		Error(c, http.StatusBadGateway, "failed to load warehouse data", err.Error())
		return
	}

	s.session.LoadData(loaded.Tables, loaded.Events, s.now())
	s.log.Info().Int("events", len(loaded.Events)).Int("skipped", loaded.Skipped).Msg("Warehouse data loaded")

	Success(c, gin.H{
		"tables":     loaded.Tables.Counts(),
		"events":     len(loaded.Events),
		"skipped":    loaded.Skipped,
		"duplicates": loaded.Duplicates,
	})
}

func (s *Server) listEvents(c *gin.Context) {
	if !s.session.DataLoaded() {
		Error(c, http.StatusConflict, "no data loaded", "load warehouse data first")
		return
	}
	Success(c, gin.H{
		"events":   summarize(s.session.Events()),
		"selected": eventIDs(s.session.Selected()),
	})
}

func eventIDs(events []*models.EnrichedEvent) []string {
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.EventID
	}
	return ids
}

// SelectRequest picks events by id, or the top N when ids are empty
type SelectRequest struct {
	EventIDs []string `json:"event_ids"`
	Top      int      `json:"top"`
}

func (s *Server) selectEvents(c *gin.Context) {
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	var (
		selected []*models.EnrichedEvent
		err      error
	)
	if len(req.EventIDs) > 0 {
		selected, err = s.session.SelectEvents(req.EventIDs)
	} else {
		selected, err = s.session.SelectTop(req.Top)
	}
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, session.ErrNoData) {
			code = http.StatusConflict
		}
		Error(c, code, "failed to select events", err.Error())
		return
	}

	Success(c, gin.H{
		"selected":     eventIDs(selected),
		"angle_counts": angles.Count(selected, 0),
	})
}

func (s *Server) quality(c *gin.Context) {
	if !s.session.DataLoaded() {
		Error(c, http.StatusConflict, "no data loaded", "load warehouse data first")
		return
	}
	Success(c, enrichment.ValidateDataQuality(s.session.Events()))
}

func (s *Server) promptTemplates(c *gin.Context) {
	var classified []models.Angle
	for _, e := range s.session.Selected() {
		classified = append(classified, angles.Classify(e)...)
	}

	platform := models.ParsePlatform(c.DefaultQuery("platform", string(models.PlatformInstagram)))
	Success(c, gin.H{
		"system_prompt": ai.SystemPrompt(platform),
		"templates":     ai.EditorTemplatesFor(classified),
		"placeholders":  ai.PlaceholderNames(),
	})
}

func (s *Server) getPrompts(c *gin.Context) {
	Success(c, s.session.CustomPrompts())
}

func (s *Server) setPrompts(c *gin.Context) {
	var req ai.PromptOverrides
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		var pe *ai.PlaceholderError
		if errors.As(err, &pe) {
			Error(c, http.StatusUnprocessableEntity, "prompt template has an unknown placeholder", err.Error())
			return
		}
		Error(c, http.StatusBadRequest, "invalid prompt template", err.Error())
		return
	}

	s.session.SetCustomPrompts(req)
	Success(c, req)
}

// GenerateRequest overrides generation settings for one dashboard run
type GenerateRequest struct {
	Platform          string `json:"platform"`
	MaxAnglesPerEvent int    `json:"max_angles_per_event"`
}

func (s *Server) generate(c *gin.Context) {
	var req GenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			Error(c, http.StatusBadRequest, "invalid request", err.Error())
			return
		}
	}

	selected := s.session.Selected()
	if len(selected) == 0 {
		Error(c, http.StatusConflict, "no events selected", "select events before generating")
		return
	}

	prompts := s.session.CustomPrompts()
	res, err := s.pipeline.Run(c.Request.Context(), generator.RunOptions{
		Mode:              models.RunModeDashboard,
		Events:            selected,
		Platform:          req.Platform,
		MaxAnglesPerEvent: req.MaxAnglesPerEvent,
		Overrides:         &prompts,
		SkipFiles:         true,
	})
	if err != nil {
		s.session.SetError(err)
		Error(c, http.StatusInternalServerError, "generation failed", err.Error())
		return
	}

	s.session.SetContent(res.Run.RunID, res.Items)
	Success(c, gin.H{
		"run_id":    res.Run.RunID,
		"items":     len(res.Items),
		"processed": res.Batch.ProcessedCount,
		"errors":    res.Batch.ErrorCount,
		"duration":  res.Batch.Duration.String(),
		"metadata":  res.Metadata,
	})
}

// contentSorts maps the sort query value to a less function
var contentSorts = map[string]func(a, b *models.ContentItem) bool{
	"priority":  func(a, b *models.ContentItem) bool { return a.Priority < b.Priority },
	"artist":    func(a, b *models.ContentItem) bool { return a.ArtistName < b.ArtistName },
	"angle":     func(a, b *models.ContentItem) bool { return a.ContentAngle < b.ContentAngle },
	"quality":   func(a, b *models.ContentItem) bool { return a.DataQualityScore < b.DataQualityScore },
	"generated": func(a, b *models.ContentItem) bool { return a.GeneratedAt.Before(b.GeneratedAt) },
}

// FilterContent applies the dashboard's artist/angle filters and sort.
// Sorting is stable; order "asc" sorts ascending, anything else descending.
func FilterContent(items []*models.ContentItem, artist, angle, sortBy, order string, includeErrors bool) []*models.ContentItem {
	out := make([]*models.ContentItem, 0, len(items))
	for _, item := range items {
		if !includeErrors && item.IsError {
			continue
		}
		if artist != "" && !strings.EqualFold(item.ArtistName, artist) {
			continue
		}
		if angle != "" && string(item.ContentAngle) != angle {
			continue
		}
		out = append(out, item)
	}

	less, ok := contentSorts[sortBy]
	if !ok {
		less = contentSorts["priority"]
	}
	asc := order == "asc"
	sort.SliceStable(out, func(i, j int) bool {
		if asc {
			return less(out[i], out[j])
		}
		return less(out[j], out[i])
	})
	return out
}

func (s *Server) listContent(c *gin.Context) {
	if !s.session.ContentGenerated() {
		Error(c, http.StatusConflict, "no content generated", "generate content first")
		return
	}

	includeErrors := c.DefaultQuery("include_errors", "true") != "false"
	items := FilterContent(s.session.Content(),
		c.Query("artist"),
		c.Query("angle"),
		c.DefaultQuery("sort", "priority"),
		c.DefaultQuery("order", "desc"),
		includeErrors,
	)

	artists := map[string]bool{}
	for _, item := range s.session.Content() {
		artists[item.ArtistName] = true
	}
	artistList := make([]string, 0, len(artists))
	for a := range artists {
		artistList = append(artistList, a)
	}
	sort.Strings(artistList)

	Success(c, gin.H{
		"run_id":  s.session.RunID(),
		"total":   len(items),
		"artists": artistList,
		"items":   items,
	})
}

// RegenerateRequest optionally changes the platform of a regenerated item
type RegenerateRequest struct {
	Platform string `json:"platform"`
}

func (s *Server) regenerate(c *gin.Context) {
	contentID := c.Param("content_id")
	existing, ok := s.session.FindContent(contentID)
	if !ok {
		Error(c, http.StatusNotFound, "content not found", contentID)
		return
	}
	e, ok := s.session.FindEvent(existing.EventID)
	if !ok {
		Error(c, http.StatusNotFound, "event not found", existing.EventID)
		return
	}

	var req RegenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			Error(c, http.StatusBadRequest, "invalid request", err.Error())
			return
		}
	}
	platform := req.Platform
	if platform == "" {
		platform = string(existing.Platform)
	}

	prompts := s.session.CustomPrompts()
	prompts.Platform = ""
	item, err := s.pipeline.Regenerate(c.Request.Context(), e, existing.ContentAngle, generator.RunOptions{
		Platform:  platform,
		Overrides: &prompts,
	})
	if err != nil {
		Error(c, http.StatusInternalServerError, "regeneration failed", err.Error())
		return
	}

	runID := s.session.RunID()
	item.RunID = runID
	if err := s.session.ReplaceContent(item); err != nil {
		Error(c, http.StatusNotFound, "content not found", err.Error())
		return
	}
	if s.repo != nil && runID != "" {
		if err := s.repo.SaveContent(c.Request.Context(), runID, []*models.ContentItem{item}); err != nil {
			s.log.Warn().Err(err).Str("content_id", contentID).Msg("Failed to persist regenerated content")
		}
	}

	Success(c, item)
}

func (s *Server) schedule(c *gin.Context) {
	if !s.session.ContentGenerated() {
		Error(c, http.StatusConflict, "no content generated", "generate content first")
		return
	}

	postsPerDay, err := strconv.Atoi(c.DefaultQuery("posts_per_day", strconv.Itoa(batch.DefaultPostsPerDay)))
	if err != nil || postsPerDay <= 0 {
		Error(c, http.StatusBadRequest, "invalid posts_per_day", c.Query("posts_per_day"))
		return
	}

	start := s.now()
	if raw := c.Query("start"); raw != "" {
		start, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid start", err.Error())
			return
		}
	}

	Success(c, batch.CreatePostingSchedule(s.session.Content(), postsPerDay, start))
}

// ExportRequest selects the export formats
type ExportRequest struct {
	Formats []string `json:"formats"`
}

func (s *Server) exportContent(c *gin.Context) {
	var req ExportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			Error(c, http.StatusBadRequest, "invalid request", err.Error())
			return
		}
	}
	if len(req.Formats) == 0 {
		req.Formats = []string{string(export.FormatJSON), string(export.FormatCSV), string(export.FormatText)}
	}
	formats, err := export.ParseFormats(req.Formats)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid formats", err.Error())
		return
	}

	items := s.session.Content()
	now := s.now()
	md := batch.BuildMetadata(items, now, now)
	files, err := s.writer.SaveAll(items, md, formats, now)
	if err != nil {
		if errors.Is(err, export.ErrNoContent) {
			Error(c, http.StatusConflict, "no content to export", "generate content first")
			return
		}
		Error(c, http.StatusInternalServerError, "export failed", err.Error())
		return
	}

	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	s.session.RecordExport(session.ExportEntry{
		Timestamp: now,
		Files:     files,
		Formats:   names,
		ItemCount: len(items),
	})

	Success(c, gin.H{"files": files, "items": len(items)})
}

func (s *Server) exportHistory(c *gin.Context) {
	recent, err := s.writer.RecentExports(10)
	if err != nil {
		Error(c, http.StatusInternalServerError, "failed to list exports", err.Error())
		return
	}
	Success(c, gin.H{
		"session": s.session.ExportHistory(),
		"recent":  recent,
	})
}

func (s *Server) listRuns(c *gin.Context) {
	if s.repo == nil {
		Error(c, http.StatusNotImplemented, "run history is unavailable", "no repository configured")
		return
	}

	filter := storage.DefaultRunFilter()
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			Error(c, http.StatusBadRequest, "invalid limit", raw)
			return
		}
		filter.Limit = limit
	}
	if raw := c.Query("status"); raw != "" {
		status := models.RunStatus(raw)
		filter.Status = &status
	}

	runs, err := s.repo.ListRuns(c.Request.Context(), filter)
	if err != nil {
		Error(c, http.StatusInternalServerError, "failed to list runs", err.Error())
		return
	}
	Success(c, runs)
}

func (s *Server) getRun(c *gin.Context) {
	if s.repo == nil {
		Error(c, http.StatusNotImplemented, "run history is unavailable", "no repository configured")
		return
	}

	runID := c.Param("run_id")
	run, err := s.repo.GetRun(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			Error(c, http.StatusNotFound, "run not found", runID)
			return
		}
		Error(c, http.StatusInternalServerError, "failed to load run", err.Error())
		return
	}

	items, err := s.repo.ListContent(c.Request.Context(), storage.ContentFilter{RunID: runID, IncludeErrors: true, OrderBy: "priority", OrderDesc: true})
	if err != nil {
		Error(c, http.StatusInternalServerError, "failed to load content", err.Error())
		return
	}
	Success(c, gin.H{"run": run, "items": items})
}
