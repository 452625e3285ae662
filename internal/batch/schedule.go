package batch

import (
	"time"

	"github.com/event-content-agent/internal/models"
)

// Criteria selects the content worth publishing
type Criteria struct {
	MinPriority     int
	MaxItems        int // 0 means no cap
	PreferredAngles []models.Angle
}

// DefaultCriteria keeps items of priority 6 and above
func DefaultCriteria() Criteria {
	return Criteria{MinPriority: 6}
}

// FilterByCriteria drops error items and items below the bar, keeps only
// preferred angles when any are given, and returns the rest highest priority first
func FilterByCriteria(items []*models.ContentItem, c Criteria) []*models.ContentItem {
	preferred := make(map[models.Angle]bool, len(c.PreferredAngles))
	for _, a := range c.PreferredAngles {
		preferred[a] = true
	}

	out := make([]*models.ContentItem, 0, len(items))
	for _, item := range items {
		if item.IsError || item.Priority < c.MinPriority {
			continue
		}
		if len(preferred) > 0 && !preferred[item.ContentAngle] {
			continue
		}
		out = append(out, item)
	}

	SortByPriority(out)
	if c.MaxItems > 0 && len(out) > c.MaxItems {
		out = out[:c.MaxItems]
	}
	return out
}

const (
	DefaultPostsPerDay = 3
	slotSpacing        = 8 * time.Hour
	previewLength      = 100
)

// Slot is one scheduled post
type Slot struct {
	PostTime       string       `json:"post_time"`
	ContentID      string       `json:"content_id"`
	Artist         string       `json:"artist"`
	Event          string       `json:"event"`
	Angle          models.Angle `json:"angle"`
	Priority       int          `json:"priority"`
	ContentPreview string       `json:"content_preview"`
}

// Schedule is a day-by-day posting plan keyed by YYYY-MM-DD
type Schedule struct {
	Schedule    map[string][]Slot `json:"schedule"`
	TotalDays   int               `json:"total_days"`
	TotalPosts  int               `json:"total_posts"`
	PostsPerDay int               `json:"posts_per_day"`
	StartDate   string            `json:"start_date"`
}

// CreatePostingSchedule spreads publishable items across days, highest
// priority first. Each day holds postsPerDay posts spaced 8 hours apart
// from the start time of day.
func CreatePostingSchedule(items []*models.ContentItem, postsPerDay int, start time.Time) Schedule {
	if postsPerDay <= 0 {
		postsPerDay = DefaultPostsPerDay
	}

	s := Schedule{
		Schedule:    map[string][]Slot{},
		PostsPerDay: postsPerDay,
		StartDate:   start.Format("2006-01-02"),
	}

	ordered := make([]*models.ContentItem, 0, len(items))
	for _, item := range items {
		if item.Publishable() {
			ordered = append(ordered, item)
		}
	}
	SortByPriority(ordered)

	day := start
	for _, item := range ordered {
		key := day.Format("2006-01-02")
		slot := len(s.Schedule[key])
		s.Schedule[key] = append(s.Schedule[key], Slot{
			PostTime:       day.Add(time.Duration(slot) * slotSpacing).Format("15:04"),
			ContentID:      item.ContentID(),
			Artist:         item.ArtistName,
			Event:          item.EventName,
			Angle:          item.ContentAngle,
			Priority:       item.Priority,
			ContentPreview: preview(item.Caption),
		})
		if len(s.Schedule[key]) >= postsPerDay {
			day = day.AddDate(0, 0, 1)
		}
	}

	s.TotalDays = len(s.Schedule)
	s.TotalPosts = len(ordered)
	return s
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength]) + "..."
}
