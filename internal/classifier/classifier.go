package classifier

import (
	"math"
	"strings"

	"github.com/spec-kit/complaint-service/internal/domain"
)

const (
	baseConfidence  = 0.3
	keywordWeight   = 0.4
	sentimentWeight = 0.2
	urgencyBonus    = 0.1
	maxConfidence   = 0.95
	maxSuggestions  = 3
)

// Result is the outcome of classifying complaint text.
type Result struct {
	Category   domain.Category       `json:"category"`
	Sentiment  domain.Sentiment      `json:"sentiment"`
	Priority   domain.TicketPriority `json:"priority"`
	Confidence float64               `json:"confidence"`
	Keywords   []string              `json:"keywords"`
}

// Classifier maps free text to a category, sentiment and priority.
type Classifier interface {
	Classify(text string) Result
}

type bucket struct {
	category domain.Category
	keywords []string
}

// KeywordClassifier scores text by case-insensitive substring matches against
// fixed vocabularies. It is safe for concurrent use.
type KeywordClassifier struct {
	buckets  []bucket
	urgent   []string
	negative []string
	positive []string
}

// NewKeywordClassifier returns a classifier with the default vocabularies.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		buckets: []bucket{
			{domain.CategoryBilling, []string{"bill", "charge", "payment", "refund", "invoice", "money", "cost", "price", "fee", "subscription", "credit", "debit"}},
			{domain.CategoryTechnical, []string{"error", "bug", "crash", "login", "password", "app", "website", "connection", "loading", "server", "database", "api"}},
			{domain.CategoryService, []string{"support", "staff", "representative", "customer service", "help", "agent", "response time", "waiting", "queue"}},
			{domain.CategoryProduct, []string{"defective", "broken", "quality", "delivery", "shipping", "wrong item", "damaged", "missing", "packaging"}},
		},
		urgent:   []string{"urgent", "emergency", "critical", "down", "outage", "immediately", "asap", "loss", "security breach"},
		negative: []string{"angry", "frustrated", "terrible", "worst", "hate", "disappointed", "unacceptable", "furious", "disgusted"},
		positive: []string{"thank", "great", "excellent", "satisfied", "good", "appreciate", "helpful", "amazing", "wonderful"},
	}
}

// Classify never fails; text with no matches yields GENERAL, NEUTRAL, LOW.
func (c *KeywordClassifier) Classify(text string) Result {
	lower := strings.ToLower(text)
	words := len(strings.Fields(lower))
	if words == 0 {
		words = 1
	}

	kw := newKeywordSet()

	category := domain.CategoryGeneral
	best, leading := 0, 0
	for _, b := range c.buckets {
		found := matches(lower, b.keywords)
		kw.add(found...)
		if len(found) > best {
			best = len(found)
			category = b.category
			// every bucket that took the lead counts toward density
			leading += len(found)
		}
	}

	urgent := matches(lower, c.urgent)
	negative := matches(lower, c.negative)
	positive := matches(lower, c.positive)
	kw.add(urgent...)
	kw.add(negative...)
	kw.add(positive...)

	sentiment := domain.SentimentNeutral
	switch {
	case len(negative) > len(positive):
		sentiment = domain.SentimentNegative
	case len(positive) > len(negative):
		sentiment = domain.SentimentPositive
	}

	techOrBilling := category == domain.CategoryTechnical || category == domain.CategoryBilling
	priority := domain.TicketPriorityLow
	switch {
	case len(urgent) > 0 || hasCompoundUrgency(lower):
		priority = domain.TicketPriorityUrgent
	case sentiment == domain.SentimentNegative && techOrBilling:
		priority = domain.TicketPriorityHigh
	case sentiment == domain.SentimentNegative || techOrBilling:
		priority = domain.TicketPriorityMedium
	}

	confidence := baseConfidence +
		keywordWeight*float64(leading)/float64(words) +
		sentimentWeight*math.Abs(float64(len(negative)-len(positive)))/float64(words)
	if len(urgent) > 0 {
		confidence += urgencyBonus
	}

	return Result{
		Category:   category,
		Sentiment:  sentiment,
		Priority:   priority,
		Confidence: math.Min(maxConfidence, confidence),
		Keywords:   kw.list(),
	}
}

// Suggest returns up to three candidate categories: the classified one first,
// then every other bucket with at least one match in scan order.
func (c *KeywordClassifier) Suggest(text string) []domain.Category {
	lower := strings.ToLower(text)
	winner := c.Classify(text).Category
	out := []domain.Category{winner}
	for _, b := range c.buckets {
		if len(out) == maxSuggestions {
			break
		}
		if b.category == winner {
			continue
		}
		if len(matches(lower, b.keywords)) > 0 {
			out = append(out, b.category)
		}
	}
	return out
}

// data loss, security terms, or money lost/charged.
func hasCompoundUrgency(lower string) bool {
	has := func(s string) bool { return strings.Contains(lower, s) }
	dataLoss := has("data") && (has("lost") || has("missing"))
	security := has("security") || has("breach") || has("hack")
	financial := has("money") && (has("lost") || has("charged"))
	return dataLoss || security || financial
}

func matches(lower string, keywords []string) []string {
	var found []string
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			found = append(found, k)
		}
	}
	return found
}

type keywordSet struct {
	seen  map[string]struct{}
	order []string
}

func newKeywordSet() *keywordSet {
	return &keywordSet{seen: make(map[string]struct{})}
}

func (s *keywordSet) add(words ...string) {
	for _, w := range words {
		if _, ok := s.seen[w]; ok {
			continue
		}
		s.seen[w] = struct{}{}
		s.order = append(s.order, w)
	}
}

func (s *keywordSet) list() []string {
	if s.order == nil {
		return []string{}
	}
	return s.order
}
