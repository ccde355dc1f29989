package customer

import (
	"context"
	"testing"
	"time"

	"smallbiznis-reputation/pkg/db/pagination"
	"smallbiznis-reputation/pkg/errutil"
	"smallbiznis-reputation/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t, Models()...)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(ServiceParams{DB: db, Node: node}), db
}

func TestCreateCustomer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, "biz_1", CreateInput{Name: " Ana ", Email: "ana@example.com"})
	require.NoError(t, err)
	require.Equal(t, "Ana", c.Name)
	require.Equal(t, 1, c.TotalServices)

	got, err := svc.Get(ctx, "biz_1", c.ID)
	require.NoError(t, err)
	require.Equal(t, c.Email, got.Email)

	_, err = svc.Get(ctx, "biz_2", c.ID)
	require.True(t, errutil.HasStatus(err, errutil.StatusNotFound))

	_, err = svc.Create(ctx, "biz_1", CreateInput{Name: "Bob", Email: "bob"})
	require.True(t, errutil.HasStatus(err, errutil.StatusValidationFailed))
}

func TestApplyRatingUpdatesAggregatesAndSegment(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, "biz_1", CreateInput{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	require.NoError(t, AddTag(ctx, db, c.ID, TagReferrer))

	require.NoError(t, ApplyRating(ctx, db, c.ID, 5))
	require.NoError(t, ApplyRating(ctx, db, c.ID, 2))

	got, err := svc.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.ReviewCount)
	require.NotNil(t, got.AverageRating)
	require.InDelta(t, 3.5, *got.AverageRating, 0.001)
	require.NotNil(t, got.LastRating)
	require.Equal(t, 2, *got.LastRating)
	require.ElementsMatch(t, []string{TagReferrer, TagDetractor}, []string(got.SegmentTags))
}

func TestAddTagIsIdempotent(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, "biz_1", CreateInput{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)

	require.NoError(t, AddTag(ctx, db, c.ID, TagReferrer))
	require.NoError(t, AddTag(ctx, db, c.ID, TagReferrer))

	got, err := svc.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, []string{TagReferrer}, []string(got.SegmentTags))
}

func TestSegmentFor(t *testing.T) {
	require.Equal(t, TagPromoter, SegmentFor(5))
	require.Equal(t, TagPromoter, SegmentFor(4))
	require.Equal(t, TagPassive, SegmentFor(3))
	require.Equal(t, TagDetractor, SegmentFor(2))
	require.Equal(t, TagDetractor, SegmentFor(1))
}

func TestListPaginates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		_, err := svc.Create(ctx, "biz_1", CreateInput{Name: name, Email: name + "@example.com"})
		require.NoError(t, err)
	}

	page, info, err := svc.List(ctx, "biz_1", ListInput{Pagination: pagination.Pagination{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.True(t, info.HasMore)

	rest, info, err := svc.List(ctx, "biz_1", ListInput{Pagination: pagination.Pagination{Limit: 2, Cursor: info.NextCursor}})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.False(t, info.HasMore)
}

func TestListFiltersByTagBeforePaging(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	tagged, err := svc.Create(ctx, "biz_1", CreateInput{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	require.NoError(t, AddTag(ctx, db, tagged.ID, TagReferrer))

	for _, name := range []string{"B", "C", "D", "E"} {
		_, err := svc.Create(ctx, "biz_1", CreateInput{Name: name, Email: name + "@example.com"})
		require.NoError(t, err)
	}
	other, err := svc.Create(ctx, "biz_2", CreateInput{Name: "Zed", Email: "zed@example.com"})
	require.NoError(t, err)
	require.NoError(t, AddTag(ctx, db, other.ID, TagReferrer))

	page, info, err := svc.List(ctx, "biz_1", ListInput{Pagination: pagination.Pagination{Limit: 2}, Tag: TagReferrer})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, tagged.ID, page[0].ID)
	require.False(t, info.HasMore)

	page, _, err = svc.List(ctx, "biz_1", ListInput{Pagination: pagination.Pagination{Limit: 2}, Tag: TagPromoter})
	require.NoError(t, err)
	require.Empty(t, page)
}

func TestRecordVisit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.Create(ctx, "biz_1", CreateInput{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)

	out, err := svc.RecordVisit(ctx, "biz_1", c.ID)
	require.NoError(t, err)
	require.Equal(t, 2, out.TotalServices)
}

func TestMarkReviewRequestedCountsService(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	c, err := svc.Create(ctx, "biz_1", CreateInput{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)

	require.NoError(t, MarkReviewRequested(ctx, db, c.ID, at))
	require.NoError(t, MarkReviewRequested(ctx, db, c.ID, at.Add(time.Hour)))

	got, err := svc.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, got.ReviewRequested)
	require.NotNil(t, got.ReviewRequestDate)
	require.True(t, got.ReviewRequestDate.Equal(at.Add(time.Hour)))
	require.Equal(t, 3, got.TotalServices)
}
