package featureflags

import (
	"context"

	"smallbiznis-reputation/pkg/config"

	"github.com/Flagsmith/flagsmith-go-client/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// AIEnrichment gates sentiment, categorisation and reply drafting per business.
const AIEnrichment = "ai_enrichment"

var Module = fx.Module("featureflags", fx.Provide(ProvideFeatureFlag))

type FeatureFlag interface {
	// Enabled reports whether feature is on for identifier. Lookups that
	// fail, or run without a configured client, default to enabled.
	Enabled(ctx context.Context, identifier, feature string) bool
}

type featureflag struct {
	client *flagsmith.Client
}

type FeatureParams struct {
	fx.In
	Config *config.Config
}

func ProvideFeatureFlag(p FeatureParams) FeatureFlag {
	if p.Config.Flagsmith.ApiKey == "" {
		return &featureflag{}
	}

	opts := []flagsmith.Option{
		flagsmith.WithAnalytics(),
	}
	if p.Config.Flagsmith.Addr != "" {
		opts = append(opts, flagsmith.WithBaseURL(p.Config.Flagsmith.Addr))
	}

	return &featureflag{
		client: flagsmith.NewClient(p.Config.Flagsmith.ApiKey, opts...),
	}
}

func (s *featureflag) Enabled(ctx context.Context, identifier, feature string) bool {
	if s.client == nil {
		return true
	}

	flags, err := s.client.GetIdentityFlags(identifier, nil)
	if err != nil {
		zap.L().Warn("[FeatureFlag] lookup failed, defaulting to enabled", zap.String("feature", feature), zap.Error(err))
		return true
	}

	on, err := flags.IsFeatureEnabled(feature)
	if err != nil {
		return true
	}
	return on
}
