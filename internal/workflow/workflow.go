package workflow

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/mitsuke/internal/ai"
	"github.com/hyperjump/mitsuke/internal/models"
	"github.com/hyperjump/mitsuke/internal/planner"
	"github.com/hyperjump/mitsuke/internal/retrieval"
	"github.com/hyperjump/mitsuke/internal/store"
)

const (
	welcomeMessage     = "Hi! I can help you find fashion products. Describe what you are looking for, upload a photo of an item you like, or ask for an outfit suggestion."
	rejectTextMessage  = "I can only help with fashion and shopping questions. Try asking for clothing, footwear, or accessories."
	rejectImageMessage = "That image does not look like a fashion item, so I cannot search with it. Try a photo of clothing, shoes, or an accessory."
	unavailableMessage = "The product catalog is not available right now. Please try again in a moment."
)

// Deps are the collaborators the orchestrator drives.
type Deps struct {
	Store           *store.ProductStore
	Planner         *planner.Planner
	Engine          *retrieval.Engine
	Encoder         ai.Encoder
	ImageClassifier ai.ImageClassifier
	Describer       ai.Describer
	TextClassifier  ai.TextClassifier
	Logger          *zap.Logger
}

// Orchestrator runs requests through the conversation graph. Run never
// returns an error to the transport layer; every outcome, including
// rejections and infrastructure failures, is a response.
type Orchestrator struct {
	deps   Deps
	logger *zap.Logger
}

// NewOrchestrator creates an orchestrator from its collaborators.
func NewOrchestrator(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{deps: deps, logger: logger}
}

// Run executes one request. The stage driver follows the transition
// table and refuses edges outside it, so a buggy stage cannot loop.
func (o *Orchestrator) Run(ctx context.Context, req *models.QueryRequest) *models.QueryResponse {
	req.Normalize()
	requestID := uuid.New().String()

	if !o.deps.Store.Loaded() {
		o.logger.Warn("request refused, product store not loaded",
			zap.String("request_id", requestID))
		return &models.QueryResponse{
			Success:   false,
			RequestID: requestID,
			Response:  unavailableMessage,
			SessionID: req.SessionID,
		}
	}

	st := models.NewConversationState(req)
	st.Tracef("request %s accepted", requestID)

	visited := map[Stage]bool{}
	current := StageValidateImage
	for current != StageEnd {
		if visited[current] {
			o.logger.Error("stage revisit blocked", zap.Stringer("stage", current))
			st.Tracef("stage %s revisited, stopping", current)
			break
		}
		visited[current] = true

		next := o.step(ctx, current, st)
		if !allowed(current, next) {
			o.logger.Error("illegal stage transition blocked",
				zap.Stringer("from", current), zap.Stringer("to", next))
			st.Tracef("illegal transition %s -> %s, stopping", current, next)
			break
		}
		st.Tracef("%s -> %s", current, next)
		current = next
	}

	return &models.QueryResponse{
		Success:      true,
		RequestID:    requestID,
		Response:     st.Response,
		Groups:       st.Groups,
		Mode:         st.Mode,
		IntentType:   st.IntentType,
		Gender:       st.Gender,
		GenderSource: st.GenderSource,
		SessionID:    req.SessionID,
		Trace:        st.Trace,
	}
}

func (o *Orchestrator) step(ctx context.Context, stage Stage, st *models.ConversationState) Stage {
	switch stage {
	case StageValidateImage:
		return o.validateImage(ctx, st)
	case StageDescribeImage:
		return o.describeImage(ctx, st)
	case StageRejectImage:
		st.Response = rejectImageMessage
		return StageEnd
	case StageClassifyIntent:
		return o.classifyIntent(ctx, st)
	case StageWelcome:
		st.Response = welcomeMessage
		return StageEnd
	case StageRejectText:
		st.Response = rejectTextMessage
		return StageEnd
	case StagePlanQuery:
		o.deps.Planner.Plan(ctx, st)
		return StageRetrieve
	case StageRetrieve:
		o.deps.Engine.Retrieve(ctx, st)
		return StageEnd
	default:
		return StageEnd
	}
}

// validateImage embeds the uploaded image and gates it through the
// fashion classifier. Requests without an image pass straight through.
func (o *Orchestrator) validateImage(ctx context.Context, st *models.ConversationState) Stage {
	if !st.HasImage() {
		return StageClassifyIntent
	}

	emb, err := o.deps.Encoder.EmbedImage(ctx, st.ImagePath)
	if err != nil {
		o.logger.Warn("image embedding failed", zap.Error(err))
		st.ImageReason = "image could not be processed"
		st.Tracef("image embedding failed: %v", err)
		return StageRejectImage
	}
	st.ImageEmbedding = emb

	verdict, err := o.deps.ImageClassifier.ClassifyImage(ctx, st.ImagePath)
	if err != nil {
		o.logger.Warn("image gate failed", zap.Error(err))
		st.ImageReason = "image could not be classified"
		st.Tracef("image gate failed: %v", err)
		return StageRejectImage
	}
	st.ImageChecked = true
	st.FashionImage = verdict.IsFashion
	st.ImageReason = verdict.Evidence
	st.Tracef("image gate: fashion=%v evidence=%q score=%.3f",
		verdict.IsFashion, verdict.Evidence, verdict.Score)

	if !verdict.IsFashion {
		return StageRejectImage
	}
	return StageDescribeImage
}

// describeImage produces the searchable description of a validated
// image. Description failures degrade, they do not reject.
func (o *Orchestrator) describeImage(ctx context.Context, st *models.ConversationState) Stage {
	desc, err := o.deps.Describer.DescribeImage(ctx, st.ImagePath)
	if err != nil {
		o.logger.Warn("image description failed", zap.Error(err))
		st.Tracef("image description failed: %v", err)
		return StageClassifyIntent
	}
	st.ImageDescription = desc
	st.Tracef("image described as %q", desc)
	return StageClassifyIntent
}

// classifyIntent routes the text: greetings to the welcome response,
// off-topic text to rejection, everything fashion-related to planning.
// A validated fashion image always earns planning, whatever the text.
func (o *Orchestrator) classifyIntent(ctx context.Context, st *models.ConversationState) Stage {
	text := st.RawText

	if st.FashionImage {
		return StagePlanQuery
	}
	if text == "" {
		st.Tracef("empty query with no image")
		return StageRejectText
	}
	if isPureGreeting(text) {
		return StageWelcome
	}

	if o.deps.TextClassifier != nil {
		label, confidence, err := o.deps.TextClassifier.ClassifyText(ctx, text)
		if err == nil {
			st.Tracef("text classified as %s (%.2f)", label, confidence)
			if label == ai.LabelFashion {
				return StagePlanQuery
			}
			return StageRejectText
		}
		o.logger.Warn("text classification failed, using keyword fallback", zap.Error(err))
		st.Tracef("text classification failed: %v", err)
	}

	if hasFashionSignal(text) {
		return StagePlanQuery
	}
	return StageRejectText
}
