package retrieval

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/hyperjump/mitsuke/internal/ai"
	"github.com/hyperjump/mitsuke/internal/config"
	"github.com/hyperjump/mitsuke/internal/models"
	"github.com/hyperjump/mitsuke/internal/store"
	"github.com/hyperjump/mitsuke/internal/vector"
)

// Engine runs the retrieval phase of a conversation: one visual search
// for image-only requests, otherwise one search per planned sub-query.
// A failed sub-query yields an empty group and never aborts the others.
type Engine struct {
	store   *store.ProductStore
	encoder ai.Encoder
	cfg     config.SearchConfig
	logger  *zap.Logger
}

// NewEngine creates a retrieval engine.
func NewEngine(st *store.ProductStore, encoder ai.Encoder, cfg config.SearchConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: st, encoder: encoder, cfg: cfg, logger: logger}
}

// Retrieve fills the state's result groups and response text.
func (e *Engine) Retrieve(ctx context.Context, st *models.ConversationState) {
	switch {
	case st.Mode == models.ModeImageOnly:
		e.searchImage(ctx, st)
	case len(st.SubQueries) > 0:
		for i, sq := range st.SubQueries {
			group := e.searchText(ctx, st, i+1, sq)
			st.Groups = append(st.Groups, group)
		}
	default:
		st.Tracef("nothing to retrieve")
	}
	st.Response = buildResponse(st)
}

// searchImage runs the pure visual path: deeper probe, similarity
// cutoff, then the group cap.
func (e *Engine) searchImage(ctx context.Context, st *models.ConversationState) {
	if len(st.ImageEmbedding) == 0 {
		st.Tracef("image search without an embedding")
		return
	}
	hits, err := e.store.Search(ctx, st.ImageEmbedding, e.cfg.ImageTopK)
	if err != nil {
		e.logger.Warn("visual search failed", zap.Error(err))
		st.Tracef("visual search failed: %v", err)
		return
	}
	kept := make([]vector.Hit, 0, len(hits))
	for _, h := range hits {
		if h.Score >= e.cfg.MinImageScore {
			kept = append(kept, h)
		}
	}
	items := e.resolve(st, kept, models.GenderBoth)
	st.Groups = append(st.Groups, models.ResultGroup{
		QueryNumber: 1,
		QueryText:   "Similar items (visual search)",
		Category:    "similar",
		ItemCount:   len(items),
		Items:       items,
	})
}

// searchText runs one planned sub-query, fusing in the image embedding
// for hybrid requests.
func (e *Engine) searchText(ctx context.Context, st *models.ConversationState, number int, sq models.SubQuery) models.ResultGroup {
	group := models.ResultGroup{
		QueryNumber:  number,
		QueryText:    sq.Text,
		Category:     sq.Category,
		GenderFilter: st.Gender,
	}

	query, err := e.encoder.EmbedText(ctx, sq.Text)
	if err != nil {
		e.logger.Warn("sub-query embedding failed",
			zap.String("query", sq.Text), zap.Error(err))
		st.Tracef("sub-query %d failed: %v", number, err)
		return group
	}
	if st.Mode == models.ModeHybrid && len(st.ImageEmbedding) > 0 {
		query, err = Fuse(query, st.ImageEmbedding, e.cfg.TextWeight, e.cfg.ImageWeight)
		if err != nil {
			st.Tracef("sub-query %d fusion failed: %v", number, err)
			return group
		}
	}

	hits, err := e.store.Search(ctx, query, e.cfg.TextTopK)
	if err != nil {
		e.logger.Warn("sub-query search failed",
			zap.String("query", sq.Text), zap.Error(err))
		st.Tracef("sub-query %d failed: %v", number, err)
		return group
	}

	group.Items = e.resolve(st, hits, st.Gender)
	group.ItemCount = len(group.Items)
	return group
}

// resolve maps hits to catalog items, applying the gender filter and the
// missing-image check before the group cap so filtered rows do not eat
// the cap.
func (e *Engine) resolve(st *models.ConversationState, hits []vector.Hit, gender string) []models.ResultItem {
	items := make([]models.ResultItem, 0, e.cfg.GroupItemCap)
	for _, h := range hits {
		if len(items) >= e.cfg.GroupItemCap {
			break
		}
		item, err := e.store.Metadata(h.Row)
		if err != nil {
			st.Tracef("row %d metadata unavailable: %v", h.Row, err)
			continue
		}
		if !genderAllowed(gender, item.Gender) {
			continue
		}
		if _, err := os.Stat(item.ImagePath); err != nil {
			continue
		}
		items = append(items, models.ResultItem{
			ExternalID:  item.ExternalID,
			Title:       item.Title,
			Brand:       item.Brand,
			Price:       item.Price,
			Color:       item.Color,
			ArticleType: item.ArticleType,
			Gender:      item.Gender,
			Snippet:     item.Snippet,
			ImagePath:   item.ImagePath,
			Score:       h.Score,
		})
	}
	return items
}
