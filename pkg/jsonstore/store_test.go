package jsonstore

import (
	"fmt"
	"sync"
	"testing"
)

type record struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestReadAllMissingFile(t *testing.T) {
	s := newTestStore(t)
	got, err := ReadAll[record](s, "nothing")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty collection, got %d records", len(got))
	}
}

func TestAppendAndFindBy(t *testing.T) {
	s := newTestStore(t)
	if err := Append(s, "records", record{ID: 1, Name: "first"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := Append(s, "records", record{ID: 2, Name: "second"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, ok, err := FindBy(s, "records", func(r record) bool { return r.ID == 2 })
	if err != nil {
		t.Fatalf("FindBy: %v", err)
	}
	if !ok || got.Name != "second" {
		t.Fatalf("FindBy = %+v, ok=%v", got, ok)
	}

	_, ok, err = FindBy(s, "records", func(r record) bool { return r.ID == 99 })
	if err != nil {
		t.Fatalf("FindBy: %v", err)
	}
	if ok {
		t.Fatal("expected no match for id 99")
	}
}

func TestUpdateWhere(t *testing.T) {
	s := newTestStore(t)
	for i := 1; i <= 3; i++ {
		if err := Append(s, "records", record{ID: i}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	n, err := UpdateWhere(s, "records",
		func(r record) bool { return r.ID >= 2 },
		func(r *record) { r.Score = 10 })
	if err != nil {
		t.Fatalf("UpdateWhere: %v", err)
	}
	if n != 2 {
		t.Fatalf("updated %d records, want 2", n)
	}

	all, err := ReadAll[record](s, "records")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if all[0].Score != 0 || all[1].Score != 10 || all[2].Score != 10 {
		t.Fatalf("unexpected scores after update: %+v", all)
	}
}

func TestMutateAbandonsWriteOnError(t *testing.T) {
	s := newTestStore(t)
	if err := Append(s, "records", record{ID: 1}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	wantErr := fmt.Errorf("boom")
	err := Mutate(s, "records", func(records []record) ([]record, error) {
		return nil, wantErr
	})
	if err == nil {
		t.Fatal("expected error from Mutate")
	}

	all, err := ReadAll[record](s, "records")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("collection modified despite error, got %d records", len(all))
	}
}

func TestConcurrentAppendsLoseNoWrites(t *testing.T) {
	s := newTestStore(t)
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := Append(s, "records", record{ID: id}); err != nil {
				t.Errorf("Append %d: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	all, err := ReadAll[record](s, "records")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(all) != n {
		t.Fatalf("got %d records, want %d", len(all), n)
	}
}
