package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/mitsuke/internal/ai"
	"github.com/hyperjump/mitsuke/internal/config"
	"github.com/hyperjump/mitsuke/internal/models"
	"github.com/hyperjump/mitsuke/internal/planner"
	"github.com/hyperjump/mitsuke/internal/retrieval"
	"github.com/hyperjump/mitsuke/internal/session"
	"github.com/hyperjump/mitsuke/internal/store"
)

type fixture struct {
	orch  *Orchestrator
	store *store.ProductStore
}

type fixtureOpts struct {
	imageFashion    bool
	imageGateErr    error
	classifierLabel string
	classifierErr   error
	loaded          bool
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()
	dir := t.TempDir()
	encoder := ai.NewMockEncoder(8)

	s, err := store.NewProductStore(filepath.Join(dir, "products.vec"), filepath.Join(dir, "catalog.db"), 8)
	if err != nil {
		t.Fatal(err)
	}
	if opts.loaded {
		imgPath := filepath.Join(dir, "1001.jpg")
		if err := os.WriteFile(imgPath, []byte("jpg"), 0600); err != nil {
			t.Fatal(err)
		}
		items := []*models.CatalogItem{{
			ExternalID:  "1001",
			Title:       "Tshirts - Blue",
			Gender:      "men",
			ArticleType: "tshirts",
			Color:       "blue",
			ImagePath:   imgPath,
		}}
		if err := s.Build(context.Background(), items, encoder); err != nil {
			t.Fatal(err)
		}
	}

	mem := session.NewMemory(0, 0, 0)
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	deps := Deps{
		Store:   s,
		Planner: planner.New(mem, nil),
		Engine:  retrieval.NewEngine(s, encoder, cfg.Search, nil),
		Encoder: encoder,
		ImageClassifier: ai.ImageClassifierFunc(func(context.Context, string) (*ai.ImageVerdict, error) {
			if opts.imageGateErr != nil {
				return nil, opts.imageGateErr
			}
			return &ai.ImageVerdict{IsFashion: opts.imageFashion, Evidence: "test"}, nil
		}),
		Describer: ai.DescriberFunc(func(context.Context, string) (string, error) {
			return "men blue tshirts", nil
		}),
		TextClassifier: ai.TextClassifierFunc(func(_ context.Context, text string) (string, float64, error) {
			if opts.classifierErr != nil {
				return "", 0, opts.classifierErr
			}
			label := opts.classifierLabel
			if label == "" {
				label = ai.LabelFashion
			}
			return label, 0.9, nil
		}),
	}
	return &fixture{orch: NewOrchestrator(deps), store: s}
}

func TestOrchestrator_StoreNotLoaded(t *testing.T) {
	f := newFixture(t, fixtureOpts{loaded: false})
	resp := f.orch.Run(context.Background(), &models.QueryRequest{Text: "blue shirt"})
	if resp.Success {
		t.Error("success should be false when the store is unavailable")
	}
	if resp.Response == "" {
		t.Error("response text should explain the unavailability")
	}
	if resp.RequestID == "" {
		t.Error("request id should be set")
	}
}

func TestOrchestrator_Greeting(t *testing.T) {
	f := newFixture(t, fixtureOpts{loaded: true})
	resp := f.orch.Run(context.Background(), &models.QueryRequest{Text: "hello"})
	if !resp.Success {
		t.Fatal("greeting should succeed")
	}
	if resp.Response != welcomeMessage {
		t.Errorf("response = %q", resp.Response)
	}
	if len(resp.Groups) != 0 {
		t.Errorf("greeting should return no results, got %d groups", len(resp.Groups))
	}
}

func TestOrchestrator_GreetingWithFashionSignalSearches(t *testing.T) {
	f := newFixture(t, fixtureOpts{loaded: true})
	resp := f.orch.Run(context.Background(), &models.QueryRequest{Text: "hi, show me tshirts"})
	if resp.Response == welcomeMessage {
		t.Error("fashion signal should override the greeting pattern")
	}
	if resp.Mode != models.ModeTextOnly {
		t.Errorf("mode = %s, want text_only", resp.Mode)
	}
}

func TestOrchestrator_OffTopicRejected(t *testing.T) {
	f := newFixture(t, fixtureOpts{loaded: true, classifierLabel: ai.LabelNonFashion})
	resp := f.orch.Run(context.Background(), &models.QueryRequest{Text: "what is the weather tomorrow"})
	if !resp.Success {
		t.Fatal("rejection is still a successful response")
	}
	if resp.Response != rejectTextMessage {
		t.Errorf("response = %q", resp.Response)
	}
}

func TestOrchestrator_ClassifierFailureKeywordFallback(t *testing.T) {
	f := newFixture(t, fixtureOpts{loaded: true, classifierErr: errors.New("down")})

	resp := f.orch.Run(context.Background(), &models.QueryRequest{Text: "looking for blue tshirts"})
	if resp.Response == rejectTextMessage {
		t.Error("fashion keywords should pass the fallback gate")
	}

	resp = f.orch.Run(context.Background(), &models.QueryRequest{Text: "tell me a joke"})
	if resp.Response != rejectTextMessage {
		t.Errorf("off-topic text should be rejected by the fallback gate, got %q", resp.Response)
	}
}

func TestOrchestrator_EmptyRequestRejected(t *testing.T) {
	f := newFixture(t, fixtureOpts{loaded: true})
	resp := f.orch.Run(context.Background(), &models.QueryRequest{})
	if resp.Response != rejectTextMessage {
		t.Errorf("response = %q", resp.Response)
	}
}

func TestOrchestrator_NonFashionImageRejected(t *testing.T) {
	f := newFixture(t, fixtureOpts{loaded: true, imageFashion: false})
	resp := f.orch.Run(context.Background(), &models.QueryRequest{
		Text:      "find this",
		ImagePath: "/tmp/car.jpg",
	})
	if resp.Response != rejectImageMessage {
		t.Errorf("response = %q", resp.Response)
	}
	if len(resp.Groups) != 0 {
		t.Error("rejected image must not produce results")
	}
}

func TestOrchestrator_ImageGateErrorRejects(t *testing.T) {
	f := newFixture(t, fixtureOpts{loaded: true, imageGateErr: errors.New("service down")})
	resp := f.orch.Run(context.Background(), &models.QueryRequest{
		ImagePath: "/tmp/x.jpg",
	})
	if resp.Response != rejectImageMessage {
		t.Errorf("gate failure should reject the image, got %q", resp.Response)
	}
}

func TestOrchestrator_ImageOnlySearch(t *testing.T) {
	f := newFixture(t, fixtureOpts{loaded: true, imageFashion: true})
	resp := f.orch.Run(context.Background(), &models.QueryRequest{
		Text:      "similar",
		ImagePath: "/tmp/q.jpg",
	})
	if !resp.Success {
		t.Fatal("image-only search should succeed")
	}
	if resp.Mode != models.ModeImageOnly {
		t.Errorf("mode = %s, want image_only", resp.Mode)
	}
	if resp.IntentType != models.IntentImageSearch {
		t.Errorf("intent = %s", resp.IntentType)
	}
	if len(resp.Groups) != 1 || resp.Groups[0].Category != "similar" {
		t.Errorf("groups = %+v", resp.Groups)
	}
}

func TestOrchestrator_TextSearchEndToEnd(t *testing.T) {
	f := newFixture(t, fixtureOpts{loaded: true})
	resp := f.orch.Run(context.Background(), &models.QueryRequest{
		Text:      "blue tshirts for men",
		SessionID: "s1",
	})
	if !resp.Success {
		t.Fatal("search should succeed")
	}
	if resp.Mode != models.ModeTextOnly {
		t.Errorf("mode = %s", resp.Mode)
	}
	if resp.Gender != models.GenderMen || resp.GenderSource != models.GenderFromQuery {
		t.Errorf("gender = %s (%s)", resp.Gender, resp.GenderSource)
	}
	if len(resp.Groups) == 0 {
		t.Fatal("expected result groups")
	}
	if resp.Response == "" {
		t.Error("response text should be set")
	}
}

func TestOrchestrator_HybridSearch(t *testing.T) {
	f := newFixture(t, fixtureOpts{loaded: true, imageFashion: true})
	resp := f.orch.Run(context.Background(), &models.QueryRequest{
		Text:      "something like this but in blue",
		ImagePath: "/tmp/q.jpg",
	})
	if resp.Mode != models.ModeHybrid {
		t.Errorf("mode = %s, want hybrid", resp.Mode)
	}
}

func TestTransitionTable_AllPathsReachEnd(t *testing.T) {
	// Walk every edge set; the graph must be acyclic and terminate.
	var walk func(s Stage, seen map[Stage]bool)
	walk = func(s Stage, seen map[Stage]bool) {
		if s == StageEnd {
			return
		}
		if seen[s] {
			t.Fatalf("cycle through stage %s", s)
		}
		seen[s] = true
		nexts := transitions[s]
		if len(nexts) == 0 {
			t.Fatalf("stage %s has no outgoing edges", s)
		}
		for _, next := range nexts {
			branch := map[Stage]bool{}
			for k, v := range seen {
				branch[k] = v
			}
			walk(next, branch)
		}
	}
	walk(StageValidateImage, map[Stage]bool{})
}

func TestAllowed(t *testing.T) {
	if !allowed(StagePlanQuery, StageRetrieve) {
		t.Error("plan_query -> retrieve should be allowed")
	}
	if allowed(StageRetrieve, StagePlanQuery) {
		t.Error("retrieve -> plan_query should be blocked")
	}
	if allowed(StageWelcome, StageRetrieve) {
		t.Error("welcome -> retrieve should be blocked")
	}
}

func TestIsPureGreeting(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"hello", true},
		{"Hey!", true},
		{"good morning", true},
		{"thanks", true},
		{"whats up", true},
		{"hi, show me shirts", false},
		{"hello I need an outfit", false},
		{"blue jeans", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := isPureGreeting(tc.text); got != tc.want {
			t.Errorf("isPureGreeting(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
