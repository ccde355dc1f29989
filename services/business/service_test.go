package business

import (
	"context"
	"testing"

	"smallbiznis-reputation/pkg/errutil"
	"smallbiznis-reputation/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := testutil.NewTestDB(t, Models()...)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(ServiceParams{DB: db, Node: node})
}

func TestCreateBusinessSeedsSettingsAndTemplates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	b, err := svc.CreateBusiness(ctx, CreateBusinessInput{Name: "Bright Smile Dental", OwnerEmail: "owner@example.com"})
	require.NoError(t, err)
	require.Equal(t, "bright-smile-dental", b.Slug)

	settings, err := svc.GetSettings(ctx, b.ID)
	require.NoError(t, err)
	require.True(t, settings.FollowUpEnabled)
	require.Equal(t, [3]int{3, 7, 14}, settings.Delays())
	require.Equal(t, ToneProfessional, settings.AITone)
	require.Equal(t, ReportWeekly, settings.ReportFrequency)
	require.Empty(t, settings.Recipients())
	require.Equal(t, DefaultRewardValue, settings.RewardValue())

	templates, err := svc.ListTemplates(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, templates, 5)
	require.Equal(t, "Professional Classic", templates[0].Name)
	require.True(t, templates[0].IsDefault)
	for _, tpl := range templates[1:] {
		require.False(t, tpl.IsDefault)
	}
}

func TestCreateBusinessDisambiguatesSlug(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateBusiness(ctx, CreateBusinessInput{Name: "Corner Cafe", OwnerEmail: "a@example.com"})
	require.NoError(t, err)
	second, err := svc.CreateBusiness(ctx, CreateBusinessInput{Name: "Corner Cafe", OwnerEmail: "b@example.com"})
	require.NoError(t, err)

	require.NotEqual(t, first.Slug, second.Slug)
	require.Contains(t, second.Slug, "corner-cafe-")
}

func TestCreateBusinessValidation(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateBusiness(context.Background(), CreateBusinessInput{Name: " ", OwnerEmail: "a@example.com"})
	require.True(t, errutil.HasStatus(err, errutil.StatusValidationFailed))

	_, err = svc.CreateBusiness(context.Background(), CreateBusinessInput{Name: "Cafe", OwnerEmail: "not-an-email"})
	require.True(t, errutil.HasStatus(err, errutil.StatusValidationFailed))
}

func TestUpdateSettings(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	b, err := svc.CreateBusiness(ctx, CreateBusinessInput{Name: "Cafe", OwnerEmail: "owner@example.com"})
	require.NoError(t, err)

	disabled := false
	zero := 0
	monthly := "Monthly"
	recipients := []string{"owner@example.com", " ", "manager@example.com"}

	updated, err := svc.UpdateSettings(ctx, b.ID, SettingsUpdate{
		FollowUpEnabled:  &disabled,
		FollowUpDelay2:   &zero,
		ReportFrequency:  &monthly,
		ReportRecipients: &recipients,
	})
	require.NoError(t, err)
	require.False(t, updated.FollowUpEnabled)
	require.Equal(t, [3]int{3, 0, 14}, updated.Delays())
	require.Equal(t, ReportMonthly, updated.ReportFrequency)
	require.Equal(t, []string{"owner@example.com", "manager@example.com"}, updated.Recipients())
	require.True(t, updated.AIAutoReplyEnabled)
}

func TestUpdateSettingsRejectsInvalidValues(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	b, err := svc.CreateBusiness(ctx, CreateBusinessInput{Name: "Cafe", OwnerEmail: "owner@example.com"})
	require.NoError(t, err)

	negative := -1
	_, err = svc.UpdateSettings(ctx, b.ID, SettingsUpdate{FollowUpDelay1: &negative})
	require.True(t, errutil.HasStatus(err, errutil.StatusValidationFailed))

	tone := "sarcastic"
	_, err = svc.UpdateSettings(ctx, b.ID, SettingsUpdate{AITone: &tone})
	require.True(t, errutil.HasStatus(err, errutil.StatusValidationFailed))
	require.Equal(t, []errutil.Detail{{Field: "ai_tone", Message: `ai_tone "sarcastic" is not supported`}}, errutil.From(err).Details)

	bad := []string{"nobody"}
	_, err = svc.UpdateSettings(ctx, b.ID, SettingsUpdate{ReportRecipients: &bad})
	require.True(t, errutil.HasStatus(err, errutil.StatusValidationFailed))

	_, err = svc.UpdateSettings(ctx, "missing", SettingsUpdate{})
	require.True(t, errutil.HasStatus(err, errutil.StatusNotFound))
}

func TestResolveTemplate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	b, err := svc.CreateBusiness(ctx, CreateBusinessInput{Name: "Cafe", OwnerEmail: "owner@example.com"})
	require.NoError(t, err)

	def, err := svc.ResolveTemplate(ctx, b.ID, "")
	require.NoError(t, err)
	require.Equal(t, "Professional Classic", def.Name)

	custom, err := svc.CreateTemplate(ctx, b.ID, TemplateInput{
		Name:      "Short",
		Subject:   "Hi {customer_name}",
		Message:   "Review us: {review_link}",
		IsDefault: true,
	})
	require.NoError(t, err)

	def, err = svc.ResolveTemplate(ctx, b.ID, "")
	require.NoError(t, err)
	require.Equal(t, custom.ID, def.ID)

	_, err = svc.ResolveTemplate(ctx, b.ID, "unknown")
	require.True(t, errutil.HasStatus(err, errutil.StatusNotFound))

	_, err = svc.CreateTemplate(ctx, b.ID, TemplateInput{Name: "No link", Subject: "s", Message: "no link here"})
	require.True(t, errutil.HasStatus(err, errutil.StatusValidationFailed))
}

func TestRender(t *testing.T) {
	out := Render("Dear {customer_name}, visit {business_name}: {review_link} {unknown}", Vars{
		CustomerName: "Ana",
		BusinessName: "Cafe",
		ReviewLink:   "https://x/r/abc",
	})
	require.Equal(t, "Dear Ana, visit Cafe: https://x/r/abc {unknown}", out)
}

func TestReportFrequencyTitle(t *testing.T) {
	require.Equal(t, "Weekly", ReportWeekly.Title())
	require.Equal(t, "Monthly", ReportMonthly.Title())
	require.Equal(t, "", ReportFrequency("daily").Title())
}
