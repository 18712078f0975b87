package quality

import (
	"regexp"
	"strings"

	"contentpipeline/internal/utils/text"
)

// Detection names, surfacing which signal fired (§12 full-detections-list
// supplement) for operator debugging on a rejected item.
const (
	DetectionPaywall     = "paywall"
	DetectionComparison  = "comparison"
	DetectionListicle    = "listicle"
	DetectionPoorLength  = "poor_length"
	DetectionInvalidInput = "invalid_input"
)

// paywallDomains is a blocklist of publications known to hard-wall content.
var paywallDomains = []string{
	"wired.com", "ft.com", "wsj.com", "nytimes.com", "economist.com",
	"bloomberg.com", "newyorker.com",
}

var paywallKeywords = []string{
	"subscriber only", "subscribers only", "members only", "member-only",
	"sign up to continue reading", "this content is for subscribers",
	"subscribe to continue",
}

var comparisonKeywords = []string{
	" vs ", " vs. ", "versus", "best products", "buying guide", "comparison",
	"pros and cons", "which is better",
}

var comparisonRegex = []*regexp.Regexp{
	regexp.MustCompile(`\$\d+[\s-]*(?:to|-)[\s-]*\$\d+`),
	regexp.MustCompile(`\bpros?\b.{0,20}\bcons?\b`),
}

var listicleRegex = []*regexp.Regexp{
	regexp.MustCompile(`^\d+\s+(ways|things|reasons|tips|tricks|tools)\b`),
	regexp.MustCompile(`^top\s+\d+\b`),
	regexp.MustCompile(`^(the\s+)?best\s+\d+\b`),
	regexp.MustCompile(`^here\s+are\s+\d+\b`),
}

func isPaywallDomain(sourceURL string) bool {
	u := strings.ToLower(sourceURL)
	for _, d := range paywallDomains {
		if strings.Contains(u, d) {
			return true
		}
	}
	return false
}

func hasPaywallKeyword(text string) bool {
	for _, kw := range paywallKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// DetectPaywall reports whether an article is behind a paywall, plus a
// signal strength (1.0 for a blocklisted domain, 0.8 for a keyword hit).
// CalculateQualityScore uses only the boolean and applies its own fixed
// paywall penalty.
func DetectPaywall(title, content, sourceURL string) (bool, float64) {
	if isPaywallDomain(sourceURL) {
		return true, 1.0
	}
	combined := strings.ToLower(title + " " + content)
	if hasPaywallKeyword(combined) {
		return true, 0.8
	}
	return false, 0.0
}

// DetectComparison reports whether an article is a product-comparison
// listicle ("X vs Y", buying guides, pros/cons sections).
func DetectComparison(title, content string) (bool, float64) {
	combined := strings.ToLower(title + " " + content)

	for _, kw := range comparisonKeywords {
		if strings.Contains(combined, kw) {
			return true, 0.7
		}
	}
	for _, re := range comparisonRegex {
		if re.MatchString(combined) {
			return true, 0.7
		}
	}
	return false, 0.0
}

// DetectListicle reports whether the title matches a "top N"/"N ways to..."
// pattern.
func DetectListicle(title string) (bool, float64) {
	t := strings.ToLower(strings.TrimSpace(title))
	for _, re := range listicleRegex {
		if re.MatchString(t) {
			return true, 0.5
		}
	}
	return false, 0.0
}

// DetectContentLength scores content length suitability: too short is a
// spam/stub penalty, the optimal band gets a small bonus, and overly long
// content gets a small bloat penalty.
func DetectContentLength(content string) (bool, float64) {
	length := text.CountRunes(strings.TrimSpace(content))
	switch {
	case length < 300:
		return false, -0.15
	case length <= 1500:
		return true, 0.10
	default:
		return true, -0.10
	}
}

// Detection is the full result of running every detector over one item,
// surfacing both the combined suitability verdict and which specific
// signals fired.
type Detection struct {
	IsPaywalled         bool
	IsComparison        bool
	IsListicle          bool
	ContentLengthScore  float64
	Detections          []string
	Suitable            bool
}

// DetectContentQuality runs every detector and returns the combined result
// used by ScoreItem.
func DetectContentQuality(title, content, sourceURL string) Detection {
	isPaywalled, _ := DetectPaywall(title, content, sourceURL)
	isComparison, _ := DetectComparison(title, content)
	isListicle, _ := DetectListicle(title)
	lengthOK, lengthScore := DetectContentLength(content)

	var detections []string
	if isPaywalled {
		detections = append(detections, DetectionPaywall)
	}
	if isComparison {
		detections = append(detections, DetectionComparison)
	}
	if isListicle {
		detections = append(detections, DetectionListicle)
	}
	if !lengthOK {
		detections = append(detections, DetectionPoorLength)
	}

	return Detection{
		IsPaywalled:        isPaywalled,
		IsComparison:       isComparison,
		IsListicle:         isListicle,
		ContentLengthScore: lengthScore,
		Detections:         detections,
		Suitable:           !isPaywalled && !isComparison && !isListicle && lengthOK,
	}
}
