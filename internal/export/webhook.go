package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/event-content-agent/internal/batch"
	"github.com/event-content-agent/internal/config"
	"github.com/event-content-agent/internal/metrics"
	"github.com/event-content-agent/internal/models"
	"github.com/event-content-agent/pkg/logger"
	"github.com/event-content-agent/pkg/ratelimit"
	"github.com/event-content-agent/pkg/retry"
)

// DefaultWebhookMaxItems is how many posts a payload carries by default
const DefaultWebhookMaxItems = 20

const maxHashtags = 8

// WebhookPayload is the body POSTed to the automation webhook
type WebhookPayload struct {
	WebhookData WebhookData `json:"webhook_data"`
}

type WebhookData struct {
	Timestamp    time.Time     `json:"timestamp"`
	ContentCount int           `json:"content_count"`
	Posts        []WebhookPost `json:"posts"`
}

type WebhookPost struct {
	ID            string          `json:"id"`
	ArtistName    string          `json:"artist_name"`
	EventName     string          `json:"event_name"`
	VenueLocation string          `json:"venue_location"`
	VisualText    string          `json:"visual_text"`
	Caption       string          `json:"caption"`
	ContentAngle  models.Angle    `json:"content_angle"`
	PriorityScore int             `json:"priority_score"`
	Platform      models.Platform `json:"platform"`
	Hashtags      []string        `json:"hashtags"`
	Metrics       PostMetrics     `json:"metrics"`
}

type PostMetrics struct {
	Rank                int     `json:"rank"`
	InternationalPct    float64 `json:"international_pct"`
	CareerMultiple      float64 `json:"career_multiple"`
	PerformanceCategory string  `json:"performance_category"`
}

// BuildWebhookPayload takes the top maxItems publishable items by priority
func BuildWebhookPayload(items []*models.ContentItem, maxItems int, now time.Time) WebhookPayload {
	if maxItems <= 0 {
		maxItems = DefaultWebhookMaxItems
	}
	top := batch.FilterByCriteria(items, batch.Criteria{MinPriority: 0, MaxItems: maxItems})

	posts := make([]WebhookPost, 0, len(top))
	for _, item := range top {
		posts = append(posts, WebhookPost{
			ID:            item.ContentID(),
			ArtistName:    item.ArtistName,
			EventName:     item.EventName,
			VenueLocation: item.VenueLocation,
			VisualText:    item.VisualText,
			Caption:       item.Caption,
			ContentAngle:  item.ContentAngle,
			PriorityScore: item.Priority,
			Platform:      item.Platform,
			Hashtags:      Hashtags(item),
			Metrics: PostMetrics{
				Rank:                item.EventMetrics.Rank,
				InternationalPct:    item.EventMetrics.InternationalPct,
				CareerMultiple:      item.EventMetrics.VsCareerAvgMultiple,
				PerformanceCategory: item.EventMetrics.PerformanceCategory,
			},
		})
	}

	return WebhookPayload{WebhookData: WebhookData{
		Timestamp:    now,
		ContentCount: len(posts),
		Posts:        posts,
	}}
}

var angleHashtags = map[models.Angle][]string{
	models.AngleMajorSpike:              {"#trending", "#breakingnews"},
	models.AngleInternationalPhenomenon: {"#global", "#international"},
	models.AngleGenreLeader:             {"#leader", "#dominating"},
	models.AnglePricingSurge:            {"#demand", "#hottickets"},
	models.AngleTourStandout:            {"#tour", "#standout"},
}

// Hashtags builds up to eight tags from the genre, angle and artist
func Hashtags(item *models.ContentItem) []string {
	tags := []string{"#livemusic", "#concerts"}

	if genre := strings.ReplaceAll(strings.ToLower(item.Genre), " ", ""); genre != "" {
		tags = append(tags, "#"+genre)
	}
	tags = append(tags, angleHashtags[item.ContentAngle]...)

	artist := strings.ReplaceAll(strings.ReplaceAll(item.ArtistName, " ", ""), "&", "and")
	if len([]rune(artist)) <= 20 {
		tags = append(tags, "#"+artist)
	}

	if len(tags) > maxHashtags {
		tags = tags[:maxHashtags]
	}
	return tags
}

// WebhookSender posts payloads to the automation webhook
type WebhookSender struct {
	url        string
	httpClient *http.Client
	policy     retrypolicy.RetryPolicy[*http.Response]
	limiter    *ratelimit.MultiLimiter
	metrics    *metrics.Metrics
	log        *logger.Logger
}

// NewWebhookSender creates a sender for cfg.URL
func NewWebhookSender(cfg config.WebhookConfig, limiter *ratelimit.MultiLimiter, m *metrics.Metrics, log *logger.Logger) *WebhookSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rc := retry.DefaultConfig()
	rc.MaxRetries = cfg.MaxRetries

	return &WebhookSender{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
		policy:     retry.NewPolicy(rc, retry.ShouldRetryHTTP),
		limiter:    limiter,
		metrics:    m,
		log:        log.WithComponent("webhook"),
	}
}

// Send POSTs payload as JSON, retrying transport errors, 5xx and 429
func (s *WebhookSender) Send(ctx context.Context, payload WebhookPayload) error {
	if s.url == "" {
		return fmt.Errorf("webhook url is not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	resp, err := retry.Do(ctx, s.policy, func() (*http.Response, error) {
		if err := s.limiter.Wait(ctx, ratelimit.LimiterWebhook); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.log.Warn().Err(err).Msg("Webhook request failed")
			return nil, err
		}
		// only the status is needed; release the connection before any retry
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return resp, nil
	})
	if err != nil {
		s.metrics.WebhookPost("error")
		return fmt.Errorf("webhook post failed: %w", err)
	}

	s.metrics.WebhookPost(strconv.Itoa(resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	s.log.Info().
		Int("posts", payload.WebhookData.ContentCount).
		Int("status", resp.StatusCode).
		Msg("Webhook payload delivered")
	return nil
}
