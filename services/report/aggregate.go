package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"smallbiznis-reputation/pkg/errutil"
	"smallbiznis-reputation/services/business"
	"smallbiznis-reputation/services/customer"
	"smallbiznis-reputation/services/review"
)

const (
	recentLimit      = 5
	recentCommentLen = 100
	issueCommentLen  = 150
	dateLayout       = "January 02, 2006"
)

type SentimentCount struct {
	Sentiment string
	Count     int
}

// Entry is one review line in the recent or attention sections.
type Entry struct {
	Rating       int
	CustomerName string
	Comment      string
	Sentiment    string
	CreatedAt    time.Time
}

// Data is everything a rendered report shows.
type Data struct {
	BusinessID    string
	BusinessName  string
	Frequency     business.ReportFrequency
	Start         time.Time
	End           time.Time
	TotalReviews  int
	AverageRating float64
	NewCustomers  int64
	// Histogram is indexed by rating-1.
	Histogram  [5]int
	Sentiments []SentimentCount
	Recent     []Entry
	Attention  []Entry
}

func (d *Data) Title() string {
	return fmt.Sprintf("%s Review Report - %s", d.Frequency.Title(), d.BusinessName)
}

func (d *Data) PeriodLine() string {
	return fmt.Sprintf("Report Period: %s - %s", d.Start.Format(dateLayout), d.End.Format(dateLayout))
}

// SummaryRows is the summary table body, highest rating first.
func (d *Data) SummaryRows() [][]string {
	rows := [][]string{
		{"Total Reviews", fmt.Sprint(d.TotalReviews)},
		{"Average Rating", fmt.Sprintf("%.1f/5.0", d.AverageRating)},
		{"New Customers", fmt.Sprint(d.NewCustomers)},
	}
	for rating := 5; rating >= 1; rating-- {
		rows = append(rows, []string{fmt.Sprintf("%d-Star Reviews", rating), fmt.Sprint(d.Histogram[rating-1])})
	}
	return rows
}

// Aggregate collects the report data for businessID over the cadence
// window ending at now. The attention list is not windowed: it holds every
// low rating still waiting for a response.
func (s *Service) Aggregate(ctx context.Context, businessID string, freq business.ReportFrequency, now time.Time) (*Data, error) {
	if freq.String() == "" {
		return nil, errutil.BadRequest("invalid report period", fmt.Errorf("unknown period %q", freq))
	}
	b, err := s.businesses.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}

	start := now.AddDate(0, 0, -WindowDays(freq))
	d := &Data{
		BusinessID:   b.ID,
		BusinessName: b.Name,
		Frequency:    freq,
		Start:        start,
		End:          now,
	}

	var reviews []*review.Review
	if err := s.db.WithContext(ctx).
		Where("business_id = ? AND created_at >= ? AND created_at <= ?", businessID, start, now).
		Order("created_at asc").
		Find(&reviews).Error; err != nil {
		return nil, errutil.Internal("failed to load reviews", err)
	}

	if err := s.db.WithContext(ctx).Model(&customer.Customer{}).
		Where("business_id = ? AND created_at >= ? AND created_at <= ?", businessID, start, now).
		Count(&d.NewCustomers).Error; err != nil {
		return nil, errutil.Internal("failed to count customers", err)
	}

	var attention []*review.Review
	if err := s.db.WithContext(ctx).
		Where("business_id = ? AND rating <= ? AND status = ?", businessID, 3, string(review.StatusPending)).
		Order("created_at asc").
		Find(&attention).Error; err != nil {
		return nil, errutil.Internal("failed to load pending reviews", err)
	}

	names, err := s.customerNames(ctx, reviews, attention)
	if err != nil {
		return nil, err
	}

	sum := 0
	sentiments := map[string]int{}
	for _, r := range reviews {
		sum += r.Rating
		if r.Rating >= 1 && r.Rating <= 5 {
			d.Histogram[r.Rating-1]++
		}
		if r.Sentiment != "" {
			sentiments[r.Sentiment]++
		}
	}
	d.TotalReviews = len(reviews)
	if d.TotalReviews > 0 {
		d.AverageRating = float64(sum) / float64(d.TotalReviews)
	}

	for k, v := range sentiments {
		d.Sentiments = append(d.Sentiments, SentimentCount{Sentiment: titleCase(k), Count: v})
	}
	sort.Slice(d.Sentiments, func(i, j int) bool {
		if d.Sentiments[i].Count != d.Sentiments[j].Count {
			return d.Sentiments[i].Count > d.Sentiments[j].Count
		}
		return d.Sentiments[i].Sentiment < d.Sentiments[j].Sentiment
	})

	recent := reviews
	if len(recent) > recentLimit {
		recent = recent[len(recent)-recentLimit:]
	}
	for _, r := range recent {
		d.Recent = append(d.Recent, Entry{
			Rating:       r.Rating,
			CustomerName: names[r.CustomerID],
			Comment:      truncate(r.Comment, recentCommentLen),
			Sentiment:    titleCase(r.Sentiment),
			CreatedAt:    r.CreatedAt,
		})
	}
	for _, r := range attention {
		d.Attention = append(d.Attention, Entry{
			Rating:       r.Rating,
			CustomerName: names[r.CustomerID],
			Comment:      truncate(r.Comment, issueCommentLen),
			CreatedAt:    r.CreatedAt,
		})
	}

	return d, nil
}

func (s *Service) customerNames(ctx context.Context, lists ...[]*review.Review) (map[string]string, error) {
	seen := map[string]bool{}
	var ids []string
	for _, list := range lists {
		for _, r := range list {
			if !seen[r.CustomerID] {
				seen[r.CustomerID] = true
				ids = append(ids, r.CustomerID)
			}
		}
	}
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var customers []*customer.Customer
	if err := s.db.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&customers).Error; err != nil {
		return nil, errutil.Internal("failed to load customers", err)
	}
	for _, c := range customers {
		names[c.ID] = c.Name
	}
	return names, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func titleCase(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
