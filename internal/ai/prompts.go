package ai

import (
	"fmt"
	"strings"

	"github.com/event-content-agent/internal/models"
)

// Platform system prompts
const (
	baseSystemPrompt = `You are a Gen Z social media expert creating viral content for live events and entertainment.
Your content should be data-driven but never boring, optimized for discovery, and designed to make people stop scrolling.

CRITICAL RULES:
1. NEVER share actual dollar amounts or GMS numbers - use relative terms like "massive surge" or "top performer"
2. Always provide TWO separate outputs: VISUAL TEXT and CAPTION
3. Write like Gen Z (but not cringe) - authentic, direct, no millennial energy
4. Front-load artist/team names for SEO and discovery`

	instagramSystemPrompt = `For Instagram:
- VISUAL TEXT: Punchy, data-forward, shareable. Think billboard text - immediate impact, no context needed
- CAPTION: Keyword-optimized, artist name first, context for fans, discovery-friendly hashtags
- Make it something fans want to repost to their Stories with their own reaction`

	tiktokSystemPrompt = `For TikTok:
- VISUAL TEXT: Hook them in 3 seconds. Bold claims, clear data points, fandom-specific language when relevant
- CAPTION: Artist/team name upfront, trending keywords, context that drives engagement
- Think viral potential - what would make someone duet or stitch this?`

	twitterSystemPrompt = `For Twitter:
- VISUAL TEXT: Tweet-length, concise but impactful
- CAPTION: Extended context, hashtags, threading potential`
)

// SystemPrompt returns the base rules plus the platform section; unknown platforms get instagram
func SystemPrompt(platform models.Platform) string {
	section := instagramSystemPrompt
	switch models.ParsePlatform(string(platform)) {
	case models.PlatformTikTok:
		section = tiktokSystemPrompt
	case models.PlatformTwitter:
		section = twitterSystemPrompt
	}
	return baseSystemPrompt + "\n\n" + section
}

// Per-angle user prompt templates
const (
	majorSpikeTemplate = `Create viral {platform} content about this MASSIVE performance spike. Remember: NO dollar amounts!

EVENT: {artist} - {event_name} in {location}
KEY INSIGHT: Performing {career_multiple:.1f}x above career average - this is HUGE
SUPPORTING DATA: {intl_pct:.0f}% international buyers, #{rank} trending this week

{fandom_context}

VISUAL TEXT (for the asset):
- Keep it under 15 words max
- Lead with the shocking stat
- Make it instantly shareable
- No context needed - pure data impact
- Example style: "{artist} {location} show BREAKS CAREER RECORDS"

CAPTION (for discovery):
- Start with "{artist}" for SEO
- Include city/venue names early
- Add context about why this matters
- Use terms like "demand surge" instead of dollar amounts
- End with engaging question or call-out
- Include relevant hashtags

Make it feel like breaking news that fans need to share immediately.`

	internationalPhenomenonTemplate = `Create an engaging post about this event's incredible international draw:

🌍 GLOBAL PHENOMENON: {intl_pct:.0f}% of buyers for {artist} in {location} are traveling internationally!

TOP BUYER COUNTRIES: {top_countries}

ADDITIONAL CONTEXT:
- Total recent sales: ${recent_7d_gms:,.0f}
- Genre: {genre}
- Career performance: {career_multiple:.1f}x above average

Create a post that:
1. Emphasizes the global/travel angle (use 🌍✈️ emojis)
2. Highlights specific countries and percentages
3. Creates amazement at the international reach
4. Suggests this shows the artist's global appeal
5. Asks followers about their travel experiences for shows

Make it feel like a testament to the artist's worldwide fanbase.`

	genreLeaderTemplate = `Create a celebration post about this genre leadership achievement:

👑 GENRE LEADER: {artist} is #{genre_rank} in {genre} this year!

DOMINATION STATS:
- Overall market rank: #{overall_rank}
- Recent 7-day sales: ${recent_7d_gms:,.0f}
- vs Genre average: {genre_multiple:.1f}x above typical
- Market share: {market_share:.2f}%

Create a post that:
1. Celebrates the leadership position (use 👑🏆 emojis)
2. Puts the ranking in context (genre dominance)
3. Uses power words like "crushing," "dominating," "leading"
4. Shows the numbers that prove market leadership
5. Invites fans to celebrate the achievement

Make it feel like a victory lap that fans would want to share.`

	pricingSurgeTemplate = `Create an insightful post about this pricing surge:

📈 DEMAND INDICATOR: Ticket prices for {artist} have surged {price_appreciation:.0f}% in recent weeks!

MARKET SIGNALS:
- Current average ticket: ${avg_ticket_cost:,.0f}
- Recent sales momentum: ${recent_7d_gms:,.0f}
- International demand: {intl_pct:.0f}%
- vs Career average: {career_multiple:.1f}x above typical

Create a post that:
1. Frames price increases as demand validation (use 📈💰 emojis)
2. Explains what this signals about fan enthusiasm
3. Connects pricing to broader success metrics
4. Avoids being too sales-y or promotional
5. Educates about market dynamics

Make it feel like valuable market insight that reveals the story behind the numbers.`

	tourStandoutTemplate = `Create an exciting post about this tour standout performance:

⭐ TOUR STANDOUT: {artist}'s {location} show is {tour_multiple:.1f}x above their {tour_name} average!

WHY THIS STOP IS SPECIAL:
- Recent sales: ${recent_7d_gms:,.0f}
- Tour performance: {tour_multiple:.1f}x above other stops
- International appeal: {intl_pct:.0f}% international buyers
- Market rank: #{rank} this week

Create a post that:
1. Highlights what makes this tour stop special (use ⭐🎯 emojis)
2. Compares to other tour performances
3. Speculates on why this location is performing so well
4. Creates excitement for the tour
5. Asks fans about their favorite tour stops

Make it feel like insider knowledge about tour dynamics.`

	defaultTemplate = `Create an engaging post highlighting this event's strong performance:

🎵 TRENDING: {artist} - {event_name} in {location}

PERFORMANCE HIGHLIGHTS:
- Ranked #{rank} in last 7 days
- Recent sales: ${recent_7d_gms:,.0f}
- vs Career average: {career_multiple:.1f}x above typical
- International interest: {intl_pct:.0f}%
- Genre: {genre}

Create a post that:
1. Highlights what makes this event notable
2. Uses specific metrics for credibility
3. Appeals to both fans and industry watchers
4. Creates interest without overhyping
5. Includes a relevant question for engagement

Keep it informative but exciting - think "industry insider sharing cool data."`
)

// angleTemplate pairs a base template with the word swaps applied to its rendered text
type angleTemplate struct {
	base  string
	swaps []string // old, new pairs
}

var angleTemplates = map[models.Angle]angleTemplate{
	models.AngleMajorSpike:              {base: majorSpikeTemplate},
	models.AngleSignificantSpike:        {base: majorSpikeTemplate, swaps: []string{"MASSIVE", "SIGNIFICANT", "🔥", "📈"}},
	models.AngleNotablePerformance:      {base: majorSpikeTemplate, swaps: []string{"MASSIVE", "NOTABLE", "🔥", "⚡"}},
	models.AngleInternationalPhenomenon: {base: internationalPhenomenonTemplate},
	models.AngleInternationalAppeal:     {base: internationalPhenomenonTemplate, swaps: []string{"PHENOMENON", "APPEAL", "incredible", "strong"}},
	models.AngleGenreLeader:             {base: genreLeaderTemplate},
	models.AngleTopPerformer:            {base: genreLeaderTemplate, swaps: []string{"LEADER", "TOP PERFORMER", "👑", "🏆"}},
	models.AnglePricingSurge:            {base: pricingSurgeTemplate},
	models.AngleDemandIndicator:         {base: pricingSurgeTemplate, swaps: []string{"surged", "increased", "📈", "📊"}},
	models.AngleTourStandout:            {base: tourStandoutTemplate},
	models.AngleTopPerformance:          {base: defaultTemplate, swaps: []string{"TRENDING", "TOP PERFORMANCE", "🎵", "🏆"}},
	models.AngleTrendingEvent:           {base: defaultTemplate},
}

func templateFor(angle models.Angle) angleTemplate {
	if t, ok := angleTemplates[angle]; ok {
		return t
	}
	return angleTemplate{base: defaultTemplate}
}

// BuildUserPrompt renders the built-in template for angle against e.
// Word swaps run on the rendered text.
func BuildUserPrompt(e *models.EnrichedEvent, angle models.Angle, platform models.Platform) (string, error) {
	t := templateFor(angle)
	out, err := Render(t.base, TemplateValues(e, platform))
	if err != nil {
		return "", err
	}
	if len(t.swaps) > 0 {
		out = strings.NewReplacer(t.swaps...).Replace(out)
	}
	return out, nil
}

// FandomContext returns genre-specific guidance, or "" when none applies
func FandomContext(genre string) string {
	g := strings.ToLower(genre)
	switch {
	case strings.Contains(g, "hip hop") || strings.Contains(g, "rap"):
		return "Consider adding hip-hop culture references if relevant"
	case strings.Contains(g, "rock"):
		return "Consider rock/metal culture references if relevant"
	case strings.Contains(g, "country"):
		return "Consider country music culture references if relevant"
	case strings.Contains(g, "pop"):
		return "Consider pop culture references if relevant"
	case strings.Contains(g, "sports"):
		return "Consider sports culture and team loyalty references if relevant"
	default:
		return ""
	}
}

// TemplateValues exposes an event's fields under the names templates reference
func TemplateValues(e *models.EnrichedEvent, platform models.Platform) map[string]any {
	tourName := e.TourContext.TourName
	if tourName == "" {
		tourName = "Current Tour"
	}
	return map[string]any{
		"artist":             e.DisplayName(),
		"event_name":         e.EventName,
		"location":           e.Location(),
		"rank":               e.Rank,
		"genre":              e.Genre,
		"venue_city":         e.VenueCity,
		"venue_country":      e.VenueCountry,
		"career_multiple":    e.CareerContext.VsCareerAvgMultiple,
		"intl_pct":           e.InternationalPct,
		"genre_rank":         e.MarketPosition.YTDGenreRank,
		"overall_rank":       e.MarketPosition.YTDOverallRank,
		"tour_name":          tourName,
		"tour_multiple":      e.TourContext.VsTourAvgMultiple,
		"fandom_context":     FandomContext(e.Genre),
		"platform":           string(platform),
		"recent_7d_gms":      e.Recent7dGMS,
		"avg_ticket_cost":    e.AvgTicketCost,
		"price_appreciation": e.TrendInsights.PriceAppreciationPct,
		"genre_multiple":     e.GenreContext.VsGenreAvgMultiple,
		"market_share":       e.MarketPosition.Last7dMarketSharePct,
		"top_countries":      topCountries(e.GeographicInsights.TopBuyerCountries),
	}
}

// PlaceholderNames lists every placeholder available to custom templates
func PlaceholderNames() []string {
	return []string{
		"artist", "event_name", "location", "rank", "genre", "venue_city", "venue_country",
		"career_multiple", "intl_pct", "genre_rank", "overall_rank", "tour_name", "tour_multiple",
		"fandom_context", "platform", "recent_7d_gms", "avg_ticket_cost", "price_appreciation",
		"genre_multiple", "market_share", "top_countries",
	}
}

func topCountries(countries []models.BuyerCountry) string {
	parts := make([]string, 0, len(countries))
	for i, c := range countries {
		if i == 3 {
			break
		}
		parts = append(parts, fmt.Sprintf("%s (%.0f%%)", c.Country, c.Percentage))
	}
	return strings.Join(parts, ", ")
}

// EditorTemplate is a short starting template offered in the prompt editor
type EditorTemplate struct {
	Angle    models.Angle `json:"angle"`
	Name     string       `json:"name"`
	Template string       `json:"template"`
}

// EditorTemplates are the compact templates operators start from when customizing prompts
var EditorTemplates = []EditorTemplate{
	{models.AngleMajorSpike, "🚀 Major Spike (5x+ Career Average)", `Create viral {platform} content about this MASSIVE performance spike. Remember: NO dollar amounts!
EVENT: {artist} - {event_name} in {location}
KEY INSIGHT: Performing {career_multiple:.1f}x above career average - this is HUGE
SUPPORTING DATA: {intl_pct:.0f}% international buyers, #{rank} trending this week
{fandom_context}`},
	{models.AngleSignificantSpike, "📈 Significant Spike (3-5x Career Average)", `Create viral {platform} content about this SIGNIFICANT performance spike. Remember: NO dollar amounts!
EVENT: {artist} - {event_name} in {location}
KEY INSIGHT: Performing {career_multiple:.1f}x above career average - this is significant
SUPPORTING DATA: {intl_pct:.0f}% international buyers, #{rank} trending this week
{fandom_context}`},
	{models.AngleGenreLeader, "👑 Genre Leader", `Create viral {platform} content celebrating this genre-leading performance. Remember: NO dollar amounts!
EVENT: {artist} - {event_name} in {location}
KEY INSIGHT: #{genre_rank} in {genre} this year, #{overall_rank} overall
SUPPORTING DATA: Genre-leading performance, top tier positioning
{fandom_context}`},
	{models.AngleTourStandout, "🔥 Tour Standout", `Create viral {platform} content about this standout tour performance. Remember: NO dollar amounts!
EVENT: {artist} - {event_name} in {location}
KEY INSIGHT: {tour_multiple:.1f}x above tour average for {tour_name}
SUPPORTING DATA: Standout performance in tour, exceptional demand
{fandom_context}`},
	{models.AngleInternationalPhenomenon, "🌍 International Phenomenon", `Create viral {platform} content about this international phenomenon. Remember: NO dollar amounts!
EVENT: {artist} - {event_name} in {location}
KEY INSIGHT: {intl_pct:.0f}% international buyers - incredible global appeal
SUPPORTING DATA: Worldwide demand, cross-cultural appeal
{fandom_context}`},
	{models.AngleTopPerformer, "🏆 Top Performer", `Create viral {platform} content about this top-tier performance. Remember: NO dollar amounts!
EVENT: {artist} - {event_name} in {location}
KEY INSIGHT: #{rank} performer this week, consistent excellence
SUPPORTING DATA: Top-tier positioning, strong market performance
{fandom_context}`},
	{models.AngleTrendingEvent, "📈 Trending Event (Default)", `Create viral {platform} content about this trending event. Remember: NO dollar amounts!
EVENT: {artist} - {event_name} in {location}
KEY INSIGHT: Trending #{rank} this week, strong performance
SUPPORTING DATA: Market momentum, fan engagement
{fandom_context}`},
}

// EditorTemplatesFor returns the editor templates relevant to the given angles,
// falling back to the trending template
func EditorTemplatesFor(angles []models.Angle) []EditorTemplate {
	wanted := make(map[models.Angle]bool, len(angles))
	for _, a := range angles {
		wanted[a] = true
	}
	var out []EditorTemplate
	for _, t := range EditorTemplates {
		if wanted[t.Angle] {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		out = append(out, EditorTemplates[len(EditorTemplates)-1])
	}
	return out
}
