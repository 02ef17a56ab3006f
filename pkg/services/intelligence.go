package services

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/adpulse-io/insight-engine/pkg/jsonutil"
	"github.com/adpulse-io/insight-engine/pkg/llm"
	"github.com/adpulse-io/insight-engine/pkg/logging"
	"github.com/adpulse-io/insight-engine/pkg/models"
	"github.com/adpulse-io/insight-engine/pkg/prompts"
	"github.com/adpulse-io/insight-engine/pkg/retry"
)

// ImpactAssessment is one qualitative judgment of a visual element group.
type ImpactAssessment struct {
	Impact         string `json:"impact"`
	Recommendation string `json:"recommendation"`
}

// UnmarshalJSON tolerates models answering with bare numbers or booleans
// where strings were asked for.
func (a *ImpactAssessment) UnmarshalJSON(data []byte) error {
	var raw struct {
		Impact         json.RawMessage `json:"impact"`
		Recommendation json.RawMessage `json:"recommendation"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.Impact = jsonutil.FlexibleStringValue(raw.Impact)
	a.Recommendation = jsonutil.FlexibleStringValue(raw.Recommendation)
	return nil
}

// Intelligence assesses the performance impact of visual element groups. A
// provider failure degrades to a fixed fallback assessment, never to a
// pipeline error.
type Intelligence interface {
	AssessImpact(ctx context.Context, group prompts.ElementGroupContext) ImpactAssessment
}

type intelligence struct {
	client   llm.LLMClient
	retryCfg *retry.Config
	logger   *zap.Logger
}

// NewIntelligence creates a new Intelligence. client may be nil, which makes
// every assessment use the fallback.
func NewIntelligence(client llm.LLMClient, logger *zap.Logger) Intelligence {
	return &intelligence{client: client, retryCfg: retry.DefaultConfig(), logger: logger}
}

var _ Intelligence = (*intelligence)(nil)

func (s *intelligence) AssessImpact(ctx context.Context, group prompts.ElementGroupContext) ImpactAssessment {
	if s.client == nil {
		return fallbackAssessment(group.ElementType)
	}

	prompt := prompts.BuildImpactAssessmentPrompt(group)

	response, err := retry.DoWithResult(ctx, s.retryCfg, func() (string, error) {
		return s.client.GenerateResponse(ctx, prompt, prompts.ImpactAssessmentSystemMessage, 0.3)
	})
	if err != nil {
		s.logger.Warn("impact assessment failed, using fallback",
			zap.String("element_type", group.ElementType.String()),
			zap.String("error", logging.SanitizeError(err)))
		return fallbackAssessment(group.ElementType)
	}

	assessment, err := llm.ParseJSONResponse[ImpactAssessment](response)
	if err != nil || assessment.Recommendation == "" {
		s.logger.Warn("impact assessment unparseable, using fallback",
			zap.String("element_type", group.ElementType.String()))
		return fallbackAssessment(group.ElementType)
	}

	return assessment
}

// fallbackRecommendations are the stock suggestions used when no model is
// available or it fails. Keyed by the recognized element vocabulary.
var fallbackRecommendations = map[models.ElementType]ImpactAssessment{
	models.ElementCTAButton: {
		Impact:         "Call-to-action styling commonly moves click and conversion rates.",
		Recommendation: "A/B test button color and placement above the fold.",
	},
	models.ElementHeroImage: {
		Impact:         "Hero imagery sets first impression and affects engagement.",
		Recommendation: "Test product-focused versus lifestyle hero imagery.",
	},
	models.ElementProductImage: {
		Impact:         "Product imagery drives purchase intent in promotional sends.",
		Recommendation: "Show products in use rather than on plain backgrounds.",
	},
	models.ElementLogo: {
		Impact:         "Logo placement anchors brand recognition.",
		Recommendation: "Keep the logo top-left and consistent across campaigns.",
	},
	models.ElementNavigation: {
		Impact:         "Navigation density trades discoverability against focus.",
		Recommendation: "Trim navigation to three or four links in promotional emails.",
	},
}

func fallbackAssessment(elementType models.ElementType) ImpactAssessment {
	if a, ok := fallbackRecommendations[elementType]; ok {
		return a
	}
	return ImpactAssessment{
		Impact:         fmt.Sprintf("Insufficient data to judge %s elements.", elementType),
		Recommendation: fmt.Sprintf("Collect more campaigns featuring %s elements before acting.", elementType),
	}
}
