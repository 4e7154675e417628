package source

import (
	"context"
	"strconv"
	"strings"

	"github.com/FranksOps/haggle/internal/listing"
)

// Mock is an offline source returning three deterministic listings around a
// base price derived from the query. It makes no network calls.
type Mock struct {
	name string
}

var _ Source = (*Mock)(nil)

// NewMock builds a Mock source; an empty name becomes "Mock".
func NewMock(name string) *Mock {
	if name == "" {
		name = "Mock"
	}
	return &Mock{name: name}
}

func (m *Mock) Name() string { return m.name }

func (m *Mock) Search(ctx context.Context, query string) Outcome {
	if err := ctx.Err(); err != nil {
		return failed(m.name, ReasonCanceled, err)
	}

	base := 5000
	if strings.Contains(strings.ToLower(query), "iphone") {
		base = 100000
	}

	return Outcome{
		Source: m.name,
		Listings: []listing.Listing{
			{
				Source:   m.name,
				Title:    query + " - Genuine (Mock Result)",
				Price:    rupees(base),
				Location: "Karachi",
				Link:     DefaultFeedEndpoint,
			},
			{
				Source:   m.name,
				Title:    "Used " + query + " Good Condition",
				Price:    rupees(base * 8 / 10),
				Location: "Lahore",
				Link:     DefaultMarkupBaseURL,
			},
			{
				Source:   m.name,
				Title:    "New " + query + " with Warranty",
				Price:    rupees(base * 11 / 10),
				Location: "Islamabad",
				Link:     DefaultFeedEndpoint,
			},
		},
	}
}

// rupees formats n as "Rs. 12,345".
func rupees(n int) string {
	digits := strconv.Itoa(n)
	var b strings.Builder
	b.WriteString("Rs. ")
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}
