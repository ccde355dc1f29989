package customer

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SegmentFor maps a rating onto its satisfaction segment.
func SegmentFor(rating int) string {
	switch {
	case rating >= 4:
		return TagPromoter
	case rating == 3:
		return TagPassive
	default:
		return TagDetractor
	}
}

// withSegment replaces any satisfaction segment in tags, keeping other tags.
func withSegment(tags []string, segment string) []string {
	out := make([]string, 0, len(tags)+1)
	for _, t := range tags {
		switch t {
		case TagPromoter, TagPassive, TagDetractor:
			continue
		}
		out = append(out, t)
	}
	return append(out, segment)
}

func lockCustomer(ctx context.Context, tx *gorm.DB, id string) (*Customer, error) {
	var c Customer
	q := tx.WithContext(ctx)
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.Where("id = ?", id).First(&c).Error; err != nil {
		return nil, fmt.Errorf("load customer %s: %w", id, err)
	}
	return &c, nil
}

// LockForUpdate loads the customer inside tx, holding a row lock until the
// transaction ends on dialects that support it.
func LockForUpdate(ctx context.Context, tx *gorm.DB, id string) (*Customer, error) {
	return lockCustomer(ctx, tx, id)
}

// ApplyRating folds a new review rating into the customer's aggregates
// and segment tag. It must run inside the review transaction.
func ApplyRating(ctx context.Context, tx *gorm.DB, customerID string, rating int) error {
	c, err := lockCustomer(ctx, tx, customerID)
	if err != nil {
		return err
	}

	avg := float64(rating)
	if c.AverageRating != nil && c.ReviewCount > 0 {
		avg = (*c.AverageRating*float64(c.ReviewCount) + float64(rating)) / float64(c.ReviewCount+1)
	}

	return tx.WithContext(ctx).Model(&Customer{}).Where("id = ?", c.ID).Updates(map[string]any{
		"review_count":   c.ReviewCount + 1,
		"average_rating": avg,
		"last_rating":    rating,
		"segment_tags":   datatypes.JSONSlice[string](withSegment(c.SegmentTags, SegmentFor(rating))),
	}).Error
}

// AddTag appends tag to the customer's segment tags if missing.
func AddTag(ctx context.Context, tx *gorm.DB, customerID, tag string) error {
	c, err := lockCustomer(ctx, tx, customerID)
	if err != nil {
		return err
	}
	if c.HasTag(tag) {
		return nil
	}

	tags := append([]string{}, c.SegmentTags...)
	return tx.WithContext(ctx).Model(&Customer{}).Where("id = ?", c.ID).
		Update("segment_tags", datatypes.JSONSlice[string](append(tags, tag))).Error
}

// MarkReviewRequested records that a review request went out at at and
// counts the service it follows.
func MarkReviewRequested(ctx context.Context, tx *gorm.DB, customerID string, at time.Time) error {
	return tx.WithContext(ctx).Model(&Customer{}).Where("id = ?", customerID).Updates(map[string]any{
		"review_requested":    true,
		"review_request_date": at,
		"total_services":      gorm.Expr("total_services + 1"),
	}).Error
}
