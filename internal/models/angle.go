package models

import "strings"

// Angle identifies the narrative a piece of content is built around
type Angle string

const (
	AngleMajorSpike              Angle = "major_spike"
	AngleSignificantSpike        Angle = "significant_spike"
	AngleNotablePerformance      Angle = "notable_performance"
	AngleInternationalPhenomenon Angle = "international_phenomenon"
	AngleInternationalAppeal     Angle = "international_appeal"
	AngleGenreLeader             Angle = "genre_leader"
	AngleTopPerformer            Angle = "top_performer"
	AnglePricingSurge            Angle = "pricing_surge"
	AngleDemandIndicator         Angle = "demand_indicator"
	AngleTourStandout            Angle = "tour_standout"
	AngleTopPerformance          Angle = "top_performance"
	AngleTrendingEvent           Angle = "trending_event"
)

// AllAngles lists every angle in classifier order
var AllAngles = []Angle{
	AngleMajorSpike,
	AngleSignificantSpike,
	AngleNotablePerformance,
	AngleInternationalPhenomenon,
	AngleInternationalAppeal,
	AngleGenreLeader,
	AngleTopPerformer,
	AnglePricingSurge,
	AngleDemandIndicator,
	AngleTourStandout,
	AngleTopPerformance,
	AngleTrendingEvent,
}

// Valid reports whether a is one of the known angles
func (a Angle) Valid() bool {
	for _, known := range AllAngles {
		if a == known {
			return true
		}
	}
	return false
}

// Title renders the angle for humans, e.g. "Major Spike"
func (a Angle) Title() string {
	return TitleCase(string(a))
}

// Platform is a target social network
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformTwitter   Platform = "twitter"
)

// ParsePlatform normalizes a platform name, falling back to instagram
func ParsePlatform(s string) Platform {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case PlatformInstagram, PlatformTikTok, PlatformTwitter:
		return p
	default:
		return PlatformInstagram
	}
}

// Title renders the platform name capitalized, e.g. "Tiktok"
func (p Platform) Title() string {
	return TitleCase(string(p))
}

// TitleCase turns snake_case words into capitalized words separated by spaces
func TitleCase(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
