package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/mitsuke/internal/models"
)

// stubEmbedder returns a fixed-dimension vector derived from the path.
type stubEmbedder struct {
	dims    int
	failFor map[string]bool
	calls   int
}

func (e *stubEmbedder) EmbedImage(_ context.Context, path string) ([]float32, error) {
	e.calls++
	if e.failFor[path] {
		return nil, errors.New("embed failed")
	}
	vec := make([]float32, e.dims)
	for i := 0; i < e.dims; i++ {
		vec[i] = float32((len(path)+i)%7) + 1
	}
	return vec, nil
}

func writeTestItems(t *testing.T, dir string, n int) []*models.CatalogItem {
	t.Helper()
	items := make([]*models.CatalogItem, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("10%02d", i)
		path := filepath.Join(dir, id+".jpg")
		if err := os.WriteFile(path, []byte("jpg"), 0600); err != nil {
			t.Fatal(err)
		}
		items = append(items, &models.CatalogItem{
			ExternalID:  id,
			Title:       "Tshirts - Blue",
			Brand:       "Acme",
			Price:       "499",
			Color:       "blue",
			ArticleType: "tshirts",
			Gender:      "men",
			Snippet:     "men tshirts in blue",
			ImagePath:   path,
		})
	}
	return items
}

func newTestStore(t *testing.T, dir string) *ProductStore {
	t.Helper()
	s, err := NewProductStore(filepath.Join(dir, "products.vec"), filepath.Join(dir, "catalog.db"), 4)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestProductStore_BuildAlignsRows(t *testing.T) {
	dir := t.TempDir()
	items := writeTestItems(t, dir, 3)
	s := newTestStore(t, dir)

	if err := s.Build(context.Background(), items, &stubEmbedder{dims: 4}); err != nil {
		t.Fatal(err)
	}
	if !s.Loaded() {
		t.Fatal("store should be loaded after build")
	}
	if s.Size() != 3 {
		t.Fatalf("size = %d, want 3", s.Size())
	}
	for i := 0; i < 3; i++ {
		item, err := s.Metadata(i)
		if err != nil {
			t.Fatal(err)
		}
		if item.RowID != i {
			t.Errorf("row %d carries row_id %d", i, item.RowID)
		}
	}
}

func TestProductStore_BuildSkipsMissingImages(t *testing.T) {
	dir := t.TempDir()
	items := writeTestItems(t, dir, 3)
	items = append(items, &models.CatalogItem{
		ExternalID: "9999",
		ImagePath:  filepath.Join(dir, "absent.jpg"),
	})
	s := newTestStore(t, dir)
	emb := &stubEmbedder{dims: 4}

	if err := s.Build(context.Background(), items, emb); err != nil {
		t.Fatal(err)
	}
	if s.Size() != 3 {
		t.Errorf("size = %d, want 3", s.Size())
	}
	if emb.calls != 3 {
		t.Errorf("embedder called %d times, want 3", emb.calls)
	}
}

func TestProductStore_BuildSkipsFailedEmbeddings(t *testing.T) {
	dir := t.TempDir()
	items := writeTestItems(t, dir, 3)
	s := newTestStore(t, dir)
	emb := &stubEmbedder{dims: 4, failFor: map[string]bool{items[1].ImagePath: true}}

	if err := s.Build(context.Background(), items, emb); err != nil {
		t.Fatal(err)
	}
	if s.Size() != 2 {
		t.Fatalf("size = %d, want 2", s.Size())
	}
	// Surviving items are re-rowed contiguously.
	second, err := s.Metadata(1)
	if err != nil {
		t.Fatal(err)
	}
	if second.ExternalID != items[2].ExternalID {
		t.Errorf("row 1 external_id = %s, want %s", second.ExternalID, items[2].ExternalID)
	}
}

func TestProductStore_BuildEmptyFails(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir)
	err := s.Build(context.Background(), nil, &stubEmbedder{dims: 4})
	if !errors.Is(err, ErrEmptyBuild) {
		t.Errorf("err = %v, want ErrEmptyBuild", err)
	}
	if s.Loaded() {
		t.Error("store should stay unloaded after empty build")
	}
}

func TestProductStore_SearchBeforeLoadFails(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	if _, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, 5); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("err = %v, want ErrNotLoaded", err)
	}
	if _, err := s.Metadata(0); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("err = %v, want ErrNotLoaded", err)
	}
}

func TestProductStore_MetadataOutOfRange(t *testing.T) {
	dir := t.TempDir()
	items := writeTestItems(t, dir, 1)
	s := newTestStore(t, dir)
	if err := s.Build(context.Background(), items, &stubEmbedder{dims: 4}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Metadata(5); !errors.Is(err, ErrRowOutOfRange) {
		t.Errorf("err = %v, want ErrRowOutOfRange", err)
	}
}

func TestProductStore_PersistRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	items := writeTestItems(t, dir, 3)
	ctx := context.Background()

	src := newTestStore(t, dir)
	if err := src.Build(ctx, items, &stubEmbedder{dims: 4}); err != nil {
		t.Fatal(err)
	}
	if err := src.Persist(ctx); err != nil {
		t.Fatal(err)
	}

	dst := newTestStore(t, dir)
	if err := dst.Restore(ctx); err != nil {
		t.Fatal(err)
	}
	if dst.Size() != 3 {
		t.Fatalf("restored size = %d, want 3", dst.Size())
	}
	item, err := dst.Metadata(2)
	if err != nil {
		t.Fatal(err)
	}
	if item.ExternalID != items[2].ExternalID {
		t.Errorf("row 2 external_id = %s, want %s", item.ExternalID, items[2].ExternalID)
	}
	hits, err := dst.Search(ctx, []float32{1, 1, 1, 1}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 3 {
		t.Errorf("got %d hits, want 3", len(hits))
	}
}

func TestProductStore_PersistUnloadedFails(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	if err := s.Persist(context.Background()); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("err = %v, want ErrNotLoaded", err)
	}
}

func TestProductStore_RestoreMissingArtifactFailsClosed(t *testing.T) {
	dir := t.TempDir()
	items := writeTestItems(t, dir, 2)
	ctx := context.Background()

	src := newTestStore(t, dir)
	if err := src.Build(ctx, items, &stubEmbedder{dims: 4}); err != nil {
		t.Fatal(err)
	}
	if err := src.Persist(ctx); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, "products.vec")); err != nil {
		t.Fatal(err)
	}

	dst := newTestStore(t, dir)
	if err := dst.Restore(ctx); err == nil {
		t.Fatal("expected restore error when index artifact is missing")
	}
	if dst.Loaded() {
		t.Error("store must stay unloaded after failed restore")
	}
}

func TestProductStore_RestoreCountMismatchFailsClosed(t *testing.T) {
	dir := t.TempDir()
	items := writeTestItems(t, dir, 3)
	ctx := context.Background()

	src := newTestStore(t, dir)
	if err := src.Build(ctx, items, &stubEmbedder{dims: 4}); err != nil {
		t.Fatal(err)
	}
	if err := src.Persist(ctx); err != nil {
		t.Fatal(err)
	}

	// Drop one metadata row so the artifacts disagree.
	db, err := openMetadataDB(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("DELETE FROM catalog_items WHERE row_id = 2"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	dst := newTestStore(t, dir)
	if err := dst.Restore(ctx); err == nil {
		t.Fatal("expected restore error when artifact counts disagree")
	}
	if dst.Loaded() {
		t.Error("store must stay unloaded after failed restore")
	}
}

func TestProductStore_RestoreKeepsPriorStateOnFailure(t *testing.T) {
	dir := t.TempDir()
	items := writeTestItems(t, dir, 2)
	ctx := context.Background()

	s := newTestStore(t, dir)
	if err := s.Build(ctx, items, &stubEmbedder{dims: 4}); err != nil {
		t.Fatal(err)
	}
	// Artifacts were never persisted, so restore must fail but leave the
	// built state serving.
	if err := s.Restore(ctx); err == nil {
		t.Fatal("expected restore error with no artifacts on disk")
	}
	if !s.Loaded() || s.Size() != 2 {
		t.Errorf("prior state lost: loaded=%v size=%d", s.Loaded(), s.Size())
	}
}

func TestProductStore_ItemByExternalID(t *testing.T) {
	dir := t.TempDir()
	items := writeTestItems(t, dir, 3)
	s := newTestStore(t, dir)
	if err := s.Build(context.Background(), items, &stubEmbedder{dims: 4}); err != nil {
		t.Fatal(err)
	}
	item, ok := s.ItemByExternalID(items[1].ExternalID)
	if !ok {
		t.Fatal("expected to find item by external id")
	}
	if item.ExternalID != items[1].ExternalID {
		t.Errorf("external_id = %s, want %s", item.ExternalID, items[1].ExternalID)
	}
	if _, ok := s.ItemByExternalID("nope"); ok {
		t.Error("unexpected hit for unknown external id")
	}
}
