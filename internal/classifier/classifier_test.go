package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/complaint-service/internal/domain"
)

func TestClassify(t *testing.T) {
	c := NewKeywordClassifier()

	tests := []struct {
		name      string
		text      string
		category  domain.Category
		sentiment domain.Sentiment
		priority  domain.TicketPriority
	}{
		{
			name:      "technical with urgent keyword",
			text:      "The app crashes every time I try to login, this is urgent!",
			category:  domain.CategoryTechnical,
			sentiment: domain.SentimentNeutral,
			priority:  domain.TicketPriorityUrgent,
		},
		{
			name:      "no matches falls back to defaults",
			text:      "Just wanted to say hi",
			category:  domain.CategoryGeneral,
			sentiment: domain.SentimentNeutral,
			priority:  domain.TicketPriorityLow,
		},
		{
			name:      "empty text",
			text:      "",
			category:  domain.CategoryGeneral,
			sentiment: domain.SentimentNeutral,
			priority:  domain.TicketPriorityLow,
		},
		{
			name:      "negative billing is high",
			text:      "I am furious about this invoice",
			category:  domain.CategoryBilling,
			sentiment: domain.SentimentNegative,
			priority:  domain.TicketPriorityHigh,
		},
		{
			name:      "negative service is medium",
			text:      "Terrible staff at the counter",
			category:  domain.CategoryService,
			sentiment: domain.SentimentNegative,
			priority:  domain.TicketPriorityMedium,
		},
		{
			name:      "neutral billing is medium",
			text:      "Question about my invoice",
			category:  domain.CategoryBilling,
			sentiment: domain.SentimentNeutral,
			priority:  domain.TicketPriorityMedium,
		},
		{
			name:      "positive product is low",
			text:      "Thank you, the packaging was excellent",
			category:  domain.CategoryProduct,
			sentiment: domain.SentimentPositive,
			priority:  domain.TicketPriorityLow,
		},
		{
			name:      "data loss compound rule",
			text:      "All my data is lost after the update",
			category:  domain.CategoryGeneral,
			sentiment: domain.SentimentNeutral,
			priority:  domain.TicketPriorityUrgent,
		},
		{
			name:      "security compound rule",
			text:      "I think my account was hacked",
			category:  domain.CategoryGeneral,
			sentiment: domain.SentimentNeutral,
			priority:  domain.TicketPriorityUrgent,
		},
		{
			name:      "financial compound rule",
			text:      "Money was charged twice",
			category:  domain.CategoryBilling,
			sentiment: domain.SentimentNeutral,
			priority:  domain.TicketPriorityUrgent,
		},
		{
			name:      "tie keeps first bucket",
			text:      "refund for the broken thing",
			category:  domain.CategoryBilling,
			sentiment: domain.SentimentNeutral,
			priority:  domain.TicketPriorityMedium,
		},
		{
			name:      "equal sentiment is neutral",
			text:      "terrible queue but helpful people",
			category:  domain.CategoryService,
			sentiment: domain.SentimentNeutral,
			priority:  domain.TicketPriorityLow,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Classify(tc.text)
			assert.Equal(t, tc.category, got.Category)
			assert.Equal(t, tc.sentiment, got.Sentiment)
			assert.Equal(t, tc.priority, got.Priority)
			assert.GreaterOrEqual(t, got.Confidence, 0.0)
			assert.LessOrEqual(t, got.Confidence, maxConfidence)
		})
	}
}

func TestClassifyKeywordsAndConfidence(t *testing.T) {
	c := NewKeywordClassifier()

	got := c.Classify("The app crashes every time I try to login, this is urgent!")

	assert.Equal(t, []string{"crash", "login", "app", "urgent"}, got.Keywords)
	// 12 words, 3 technical matches, no sentiment, urgency bonus.
	assert.InDelta(t, 0.3+0.4*3.0/12.0+0.1, got.Confidence, 1e-9)
}

func TestClassifyDensityCountsEveryLeadingBucket(t *testing.T) {
	c := NewKeywordClassifier()

	// billing leads with 1, then technical overtakes with 2: density is 3/3.
	got := c.Classify("bill error crash")
	assert.Equal(t, domain.CategoryTechnical, got.Category)
	assert.InDelta(t, 0.7, got.Confidence, 1e-9)

	// a later bucket that only ties does not add to the density.
	got = c.Classify("refund broken")
	assert.Equal(t, domain.CategoryBilling, got.Category)
	assert.InDelta(t, 0.3+0.4*1.0/2.0, got.Confidence, 1e-9)
}

func TestClassifyKeywordsAreDeduplicated(t *testing.T) {
	c := NewKeywordClassifier()

	// "missing" is both a product keyword and part of the data-loss rule; "bill"
	// and "billing" collapse to one match.
	got := c.Classify("billing bill missing missing")

	seen := map[string]int{}
	for _, k := range got.Keywords {
		seen[k]++
	}
	for k, n := range seen {
		assert.Equal(t, 1, n, "keyword %q repeated", k)
	}
	assert.Contains(t, got.Keywords, "bill")
	assert.Contains(t, got.Keywords, "missing")
}

func TestClassifyConfidenceIsCapped(t *testing.T) {
	c := NewKeywordClassifier()

	got := c.Classify("urgent")
	assert.InDelta(t, 0.4, got.Confidence, 1e-9)

	got = c.Classify("angry bill")
	// 0.3 + 0.4*1/2 + 0.2*1/2 = 0.6
	assert.InDelta(t, 0.6, got.Confidence, 1e-9)

	got = c.Classify("paymentrefundinvoice")
	assert.Equal(t, maxConfidence, got.Confidence)
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := NewKeywordClassifier()
	text := "Furious! The website is down and my payment failed, refund asap"

	first := c.Classify(text)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, c.Classify(text))
	}
}

func TestSuggest(t *testing.T) {
	c := NewKeywordClassifier()

	got := c.Suggest("Payment error from the support agent, package damaged")
	require.Len(t, got, 3)
	assert.Equal(t, domain.CategoryService, got[0])
	assert.Equal(t, []domain.Category{domain.CategoryService, domain.CategoryBilling, domain.CategoryTechnical}, got)

	assert.Equal(t, []domain.Category{domain.CategoryGeneral}, c.Suggest("hello there"))
}
