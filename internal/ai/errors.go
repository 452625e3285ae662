package ai

import (
	"fmt"
	"strings"
)

// Error kinds assigned to failed generations
const (
	KindRateLimit        = "rate_limit"
	KindAuth             = "auth"
	KindModelUnavailable = "model_unavailable"
	KindNetwork          = "network"
	KindTimeout          = "timeout"
	KindBilling          = "billing"
	KindUnknown          = "unknown"
	KindTemplate         = "template"
)

// Classification is the operator-facing reading of a provider error
type Classification struct {
	Kind        string `json:"kind"`
	Message     string `json:"message"`
	LikelyCause string `json:"likely_cause"`
}

// ClassifyError maps an error to a kind and message. Rules are checked in
// order against the lowercased error text; the first match wins.
func ClassifyError(err error, model string) Classification {
	if err == nil {
		return Classification{}
	}
	text := err.Error()
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "rate_limit"):
		return Classification{
			Kind:        KindRateLimit,
			Message:     "Rate limit exceeded. Please wait a moment and try again.",
			LikelyCause: "API rate limit hit - too many requests",
		}
	case strings.Contains(lower, "invalid_api_key") || strings.Contains(lower, "unauthorized"):
		return Classification{
			Kind:        KindAuth,
			Message:     "Invalid API key. Please check your API key configuration.",
			LikelyCause: "API key not set or rejected by the provider",
		}
	case strings.Contains(lower, "model") && strings.Contains(lower, "does not exist"):
		return Classification{
			Kind:        KindModelUnavailable,
			Message:     fmt.Sprintf("Model '%s' not available. Check your plan or use a different model.", model),
			LikelyCause: fmt.Sprintf("Model %s not accessible with this API key", model),
		}
	case strings.Contains(lower, "connection") || strings.Contains(lower, "network"):
		return Classification{
			Kind:        KindNetwork,
			Message:     "Network connection error. External API calls may be blocked.",
			LikelyCause: "Network restrictions between this host and the provider",
		}
	case strings.Contains(lower, "timeout"):
		return Classification{
			Kind:        KindTimeout,
			Message:     "Request timeout. This may indicate network restrictions.",
			LikelyCause: "API call timed out - possible network restrictions",
		}
	case strings.Contains(lower, "billing") || strings.Contains(lower, "quota"):
		return Classification{
			Kind:        KindBilling,
			Message:     "Billing or quota issue. Check your account status.",
			LikelyCause: "Provider account billing or usage limits",
		}
	default:
		return Classification{
			Kind:        KindUnknown,
			Message:     "API error: " + text,
			LikelyCause: "Unknown error - check provider status",
		}
	}
}

// retryableKind reports whether a failure of this kind may succeed on retry
func retryableKind(kind string) bool {
	switch kind {
	case KindRateLimit, KindNetwork, KindTimeout:
		return true
	default:
		return false
	}
}
