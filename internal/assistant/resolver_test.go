package assistant

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	dbmodel "taskline/internal/db"
	"taskline/internal/taskstore"

	"gorm.io/gorm"
)

// blindStore hides the first `blind` category lookups, which is what a resolver sees when a
// concurrent transaction commits the row between its read and its insert.
type blindStore struct {
	*taskstore.Store
	blind     int
	lookups   int
	insertErr error
}

func (s *blindStore) FindCategoryByName(ctx context.Context, ownerID int64, name string, lock bool) (*taskstore.Category, error) {
	s.lookups++
	if s.lookups <= s.blind {
		return nil, nil
	}
	return s.Store.FindCategoryByName(ctx, ownerID, name, lock)
}

func (s *blindStore) InsertCategory(ctx context.Context, c taskstore.Category, description string) (*taskstore.Category, error) {
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	return s.Store.InsertCategory(ctx, c, description)
}

func countCategories(t *testing.T, gdb *gorm.DB, owner int64, name string) int64 {
	t.Helper()

	var n int64
	if err := gdb.Model(&dbmodel.Category{}).Where("created_by = ? AND name = ?", owner, name).Count(&n).Error; err != nil {
		t.Fatalf("count categories failed: %v", err)
	}
	return n
}

func TestResolver_BlankNameIsNoEntity(t *testing.T) {
	gdb := openTestDB(t)
	r := NewResolver(discardLogger())

	for _, name := range []string{"", "   ", "\t\n"} {
		id, ok, err := r.ResolveCategory(t.Context(), taskstore.New(gdb), 1, name)
		if err != nil || ok || id != 0 {
			t.Fatalf("ResolveCategory(%q) = (%d, %v, %v), want no entity", name, id, ok, err)
		}
	}
	if n := countCategories(t, gdb, 1, ""); n != 0 {
		t.Fatalf("expected no blank category rows, got %d", n)
	}
}

func TestResolver_CreatesOnceThenReuses(t *testing.T) {
	gdb := openTestDB(t)
	st := taskstore.New(gdb)
	r := NewResolver(discardLogger())

	first, ok, err := r.ResolveCategory(t.Context(), st, 7, "  Work ")
	if err != nil || !ok {
		t.Fatalf("first resolve failed: ok=%v err=%v", ok, err)
	}
	second, ok, err := r.ResolveCategory(t.Context(), st, 7, "Work")
	if err != nil || !ok {
		t.Fatalf("second resolve failed: ok=%v err=%v", ok, err)
	}
	if first != second {
		t.Fatalf("expected same id, got %d and %d", first, second)
	}
	if n := countCategories(t, gdb, 7, "Work"); n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}

	var row dbmodel.Category
	if err := gdb.First(&row, first).Error; err != nil {
		t.Fatal(err)
	}
	if row.ColorHex != DefaultCategoryColor || row.Description != "" {
		t.Fatalf("unexpected defaults: %+v", row)
	}

	other, _, err := r.ResolveCategory(t.Context(), st, 8, "Work")
	if err != nil {
		t.Fatal(err)
	}
	if other == first {
		t.Fatal("expected a separate category for another owner")
	}
}

func TestResolver_TagsUseTagDefaults(t *testing.T) {
	gdb := openTestDB(t)
	r := NewResolver(discardLogger())

	id, ok, err := r.ResolveTag(t.Context(), taskstore.New(gdb), 1, "home")
	if err != nil || !ok {
		t.Fatalf("resolve tag failed: ok=%v err=%v", ok, err)
	}
	var row dbmodel.Tag
	if err := gdb.First(&row, id).Error; err != nil {
		t.Fatal(err)
	}
	if row.ColorHex != DefaultTagColor || row.Name != "home" {
		t.Fatalf("unexpected tag row: %+v", row)
	}
}

func TestResolver_RecoversFromLostInsertRace(t *testing.T) {
	gdb := openTestDB(t)
	r := NewResolver(discardLogger())

	winner, err := taskstore.New(gdb).InsertCategory(t.Context(), taskstore.Category{OwnerID: 1, Name: "Work", ColorHex: DefaultCategoryColor}, "")
	if err != nil {
		t.Fatal(err)
	}

	err = gdb.Transaction(func(tx *gorm.DB) error {
		st := &blindStore{Store: taskstore.New(tx), blind: 1}
		id, ok, err := r.ResolveCategory(t.Context(), st, 1, "Work")
		if err != nil {
			return err
		}
		if !ok || id != winner.ID {
			t.Fatalf("expected winner id %d, got %d (ok=%v)", winner.ID, id, ok)
		}
		if st.lookups != 2 {
			t.Fatalf("expected a re-read after the failed insert, got %d lookups", st.lookups)
		}
		// The transaction must still be usable after the rolled back savepoint.
		_, err = taskstore.New(tx).InsertTag(t.Context(), taskstore.Tag{OwnerID: 1, Name: "after", ColorHex: DefaultTagColor}, "")
		return err
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
	if n := countCategories(t, gdb, 1, "Work"); n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}
}

func TestResolver_MissingRowAfterUniqueViolationIsFatal(t *testing.T) {
	gdb := openTestDB(t)
	r := NewResolver(discardLogger())

	if _, err := taskstore.New(gdb).InsertCategory(t.Context(), taskstore.Category{OwnerID: 1, Name: "Work"}, ""); err != nil {
		t.Fatal(err)
	}
	st := &blindStore{Store: taskstore.New(gdb), blind: 2}
	_, _, err := r.ResolveCategory(t.Context(), st, 1, "Work")
	if !errors.Is(err, ErrResolveInconsistent) {
		t.Fatalf("expected ErrResolveInconsistent, got %v", err)
	}
}

func TestResolver_PropagatesOtherInsertErrors(t *testing.T) {
	gdb := openTestDB(t)
	r := NewResolver(discardLogger())

	boom := errors.New("disk I/O error")
	st := &blindStore{Store: taskstore.New(gdb), insertErr: boom}
	_, _, err := r.ResolveCategory(t.Context(), st, 1, "Work")
	if !errors.Is(err, boom) {
		t.Fatalf("expected insert error to propagate, got %v", err)
	}
	if errors.Is(err, ErrResolveInconsistent) {
		t.Fatal("a non-unique error must not be reported as inconsistency")
	}
	if st.lookups != 1 {
		t.Fatalf("expected no re-read, got %d lookups", st.lookups)
	}
}

func TestResolver_ConcurrentCallersShareOneRow(t *testing.T) {
	gdb := openTestDB(t)
	r := NewResolver(discardLogger())

	const callers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ids  = make([]int64, 0, callers)
		errs = make([]error, 0)
	)
	start := make(chan struct{})
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			var id int64
			err := gdb.Transaction(func(tx *gorm.DB) error {
				got, ok, err := r.ResolveCategory(context.Background(), taskstore.New(tx), 42, "Work")
				if err == nil && !ok {
					err = errors.New("resolver returned no entity")
				}
				id = got
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ids = append(ids, id)
		}()
	}
	close(start)
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("resolver errors: %v", errs)
	}
	if n := countCategories(t, gdb, 42, "Work"); n != 1 {
		t.Fatalf("expected exactly 1 row, got %d", n)
	}
	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("callers saw different ids: %v", ids)
		}
	}
}

func TestResolver_SeparateHandlesOnOneFileShareOneRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	seed, err := dbmodel.OpenSQLiteGORMWithMigrations(path)
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	t.Cleanup(func() { _ = dbmodel.Close(seed) })

	// Each handle owns its own pool, as separate server processes would.
	const callers = 8
	handles := make([]*gorm.DB, callers)
	for i := range handles {
		gdb, err := dbmodel.OpenSQLite(path)
		if err != nil {
			t.Fatalf("open handle %d failed: %v", i, err)
		}
		t.Cleanup(func() { _ = dbmodel.Close(gdb) })
		handles[i] = gdb
	}

	r := NewResolver(discardLogger())
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ids  = map[int64]int{}
		errs = make([]error, 0)
	)
	start := make(chan struct{})
	for _, gdb := range handles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			var id int64
			err := gdb.Transaction(func(tx *gorm.DB) error {
				got, ok, err := r.ResolveCategory(context.Background(), taskstore.New(tx), 42, "Work")
				if err == nil && !ok {
					err = errors.New("resolver returned no entity")
				}
				id = got
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ids[id]++
		}()
	}
	close(start)
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("resolver errors: %v", errs)
	}
	if len(ids) != 1 {
		t.Fatalf("callers saw different ids: %v", ids)
	}
	if n := countCategories(t, seed, 42, "Work"); n != 1 {
		t.Fatalf("expected exactly 1 row, got %d", n)
	}
}
