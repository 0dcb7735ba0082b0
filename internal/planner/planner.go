// Package planner turns a raw request into a retrieval plan: it merges
// short follow-ups with session memory, resolves the target gender,
// classifies the search mode, and expands the query into sub-queries
// either through the expansion model or deterministic fallback rules.
package planner

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/mitsuke/internal/ai"
	"github.com/hyperjump/mitsuke/internal/models"
	"github.com/hyperjump/mitsuke/internal/session"
)

// Planner mutates the conversation state in place. A nil expander means
// rule-based planning only.
type Planner struct {
	memory        *session.Memory
	expander      ai.Expander
	maxSubQueries int
	logger        *zap.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithMaxSubQueries caps the plan length. Zero keeps the default of 10.
func WithMaxSubQueries(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.maxSubQueries = n
		}
	}
}

// WithLogger sets the planner's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Planner) { p.logger = logger }
}

// New creates a planner over the session memory and expander.
func New(memory *session.Memory, expander ai.Expander, opts ...Option) *Planner {
	p := &Planner{
		memory:        memory,
		expander:      expander,
		maxSubQueries: 10,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan fills in the state's query, gender, mode, and sub-queries, and
// writes the turn back to session memory. It never fails; when the
// expander is unavailable the deterministic rules take over.
func (p *Planner) Plan(ctx context.Context, st *models.ConversationState) {
	p.mergeFollowUp(st)
	p.resolveGender(st)
	p.classifyMode(st)

	if st.Mode != models.ModeImageOnly {
		p.expand(ctx, st)
	} else {
		st.IntentType = models.IntentImageSearch
		st.Tracef("image-only search, skipping expansion")
	}

	p.writeBack(st)
}

// mergeFollowUp rewrites a short attribute-only refinement against the
// item type remembered for the session. "in black" after "show me jeans"
// becomes "in black jeans".
func (p *Planner) mergeFollowUp(st *models.ConversationState) {
	st.Query = strings.ToLower(strings.TrimSpace(st.RawText))
	if st.HasImage() || st.SessionID == "" {
		return
	}
	tokens := strings.Fields(st.Query)
	if len(tokens) == 0 || len(tokens) > 2 {
		return
	}
	if !containsAny(st.Query, attributeKeywords) {
		return
	}
	remembered, ok := p.memory.Get(st.SessionID)
	if !ok || remembered.LastItemType == "" {
		return
	}
	st.Query = st.Query + " " + remembered.LastItemType
	st.Tracef("merged follow-up with remembered item %q", remembered.LastItemType)
}

// resolveGender applies the priority: gender words in the query beat the
// caller's selection, which beats the default of both.
func (p *Planner) resolveGender(st *models.ConversationState) {
	tokens := strings.Fields(st.Query)
	male := hasToken(tokens, maleKeywords)
	female := hasToken(tokens, femaleKeywords)

	switch {
	case male && female:
		st.Gender = models.GenderBoth
		st.GenderSource = models.GenderFromQuery
	case male:
		st.Gender = models.GenderMen
		st.GenderSource = models.GenderFromQuery
	case female:
		st.Gender = models.GenderWomen
		st.GenderSource = models.GenderFromQuery
	case st.SelectedGender == models.GenderMen || st.SelectedGender == models.GenderWomen:
		st.Gender = st.SelectedGender
		st.GenderSource = models.GenderFromSelection
	default:
		st.Gender = models.GenderBoth
		st.GenderSource = models.GenderDefaultBoth
	}
}

// classifyMode picks the retrieval path. An image with no meaningful
// text is a pure visual search; an image plus a real query is hybrid.
func (p *Planner) classifyMode(st *models.ConversationState) {
	if st.HasImage() {
		tokens := strings.Fields(st.Query)
		if isImageOnlyPhrase(st.Query) || len(tokens) <= 2 {
			st.Mode = models.ModeImageOnly
			return
		}
		st.Mode = models.ModeHybrid
		return
	}
	st.Mode = models.ModeTextOnly
}

func (p *Planner) expand(ctx context.Context, st *models.ConversationState) {
	if p.expander != nil {
		result, err := p.expander.ExpandQuery(ctx, &ai.ExpansionRequest{
			Query:   st.Query,
			Gender:  st.Gender,
			Context: p.expansionContext(st),
		})
		if err == nil {
			subs := p.fromExpansion(result)
			if len(subs) > 0 {
				st.SubQueries = subs
				st.IntentType = result.Intent
				st.PlanSource = models.PlanSourceGenerator
				return
			}
		} else {
			p.logger.Warn("query expansion failed, using fallback rules", zap.Error(err))
			st.Tracef("expansion failed: %v", err)
		}
	}

	subs, intent := fallbackPlan(st.Query, st.Gender)
	st.SubQueries = p.cap(subs)
	st.IntentType = intent
	st.PlanSource = models.PlanSourceFallback
}

// expansionContext gives the expander what the session remembers and
// what the image showed.
func (p *Planner) expansionContext(st *models.ConversationState) string {
	var parts []string
	if st.ImageDescription != "" {
		parts = append(parts, "uploaded image shows: "+st.ImageDescription)
	}
	if st.SessionID != "" {
		if remembered, ok := p.memory.Get(st.SessionID); ok {
			if remembered.LastItemType != "" {
				parts = append(parts, "previously discussed item: "+remembered.LastItemType)
			}
			if remembered.LastQuery != "" {
				parts = append(parts, "previous query: "+remembered.LastQuery)
			}
		}
	}
	return strings.Join(parts, "; ")
}

func (p *Planner) fromExpansion(result *ai.ExpansionResult) []models.SubQuery {
	var subs []models.SubQuery
	switch result.Intent {
	case ai.ExpandDirect:
		for _, q := range result.Queries {
			if q = strings.TrimSpace(q); q != "" {
				subs = append(subs, models.SubQuery{Text: q, Category: "general"})
			}
		}
	case ai.ExpandRecommendation:
		for _, cat := range result.Categories {
			for _, q := range cat.Queries {
				if q = strings.TrimSpace(q); q != "" {
					subs = append(subs, models.SubQuery{Text: q, Category: cat.Category})
				}
			}
		}
	}
	return p.cap(subs)
}

func (p *Planner) cap(subs []models.SubQuery) []models.SubQuery {
	if len(subs) > p.maxSubQueries {
		return subs[:p.maxSubQueries]
	}
	return subs
}

// fallbackPlan is the deterministic expansion used when no generator is
// available. Occasion queries get the full outfit template; everything
// else becomes one query per target gender.
func fallbackPlan(query, gender string) ([]models.SubQuery, string) {
	if query == "" {
		query = "fashion items"
	}
	prefixes := genderPrefixes(gender)

	if containsAny(query, occasionKeywords) {
		var subs []models.SubQuery
		for _, tpl := range outfitTemplate {
			for _, prefix := range prefixes {
				subs = append(subs, models.SubQuery{
					Text:     prefix + " " + tpl.query,
					Category: tpl.category,
				})
			}
		}
		return subs, models.IntentRecommendation
	}

	subs := make([]models.SubQuery, 0, len(prefixes))
	for _, prefix := range prefixes {
		subs = append(subs, models.SubQuery{
			Text:     prefix + " " + query,
			Category: "general",
		})
	}
	return subs, models.IntentDirectSearch
}

func genderPrefixes(gender string) []string {
	switch gender {
	case models.GenderMen:
		return []string{"men"}
	case models.GenderWomen:
		return []string{"women"}
	default:
		return []string{"men", "women"}
	}
}

// writeBack records the turn in session memory. The remembered item type
// only changes when the query names one; old values stay sticky.
func (p *Planner) writeBack(st *models.ConversationState) {
	if st.SessionID == "" {
		return
	}
	item := firstItemType(st.Query)
	p.memory.Update(st.SessionID, st.Query,
		session.WithItemType(item),
		session.WithGender(st.Gender))
}
