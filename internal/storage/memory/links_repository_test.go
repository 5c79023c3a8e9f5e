package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tinylink-io/tinylink/internal/processing/links"
)

func TestInsertAndFindByCode(t *testing.T) {
	repo := NewLinksRepository()
	ctx := context.Background()

	created, err := repo.Insert(ctx, "abc123", "https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	if created.Clicks != 0 {
		t.Errorf("new link clicks = %d, want 0", created.Clicks)
	}
	if created.LastClickedAt != nil {
		t.Error("new link should have nil last clicked timestamp")
	}
	if created.CreatedAt.IsZero() {
		t.Error("created timestamp should be set")
	}

	got, err := repo.FindByCode(ctx, "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if got.URL != "https://example.com" {
		t.Errorf("got URL %q, want %q", got.URL, "https://example.com")
	}

	if _, err := repo.FindByCode(ctx, "missing"); !errors.Is(err, links.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestInsertDuplicateCode(t *testing.T) {
	repo := NewLinksRepository()
	ctx := context.Background()

	if _, err := repo.Insert(ctx, "dup01", "https://first.example.com"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Insert(ctx, "dup01", "https://second.example.com"); !errors.Is(err, links.ErrCodeExists) {
		t.Fatalf("expected ErrCodeExists, got: %v", err)
	}

	// The original row must survive the rejected insert.
	got, err := repo.FindByCode(ctx, "dup01")
	if err != nil {
		t.Fatal(err)
	}
	if got.URL != "https://first.example.com" {
		t.Errorf("stored URL %q, want the original", got.URL)
	}
}

func TestDeleteByCodeIdempotent(t *testing.T) {
	repo := NewLinksRepository()
	ctx := context.Background()

	if removed, err := repo.DeleteByCode(ctx, "missing"); err != nil || removed {
		t.Fatalf("deleting absent code: got (%v, %v), want (false, nil)", removed, err)
	}

	if _, err := repo.Insert(ctx, "abc123", "https://example.com"); err != nil {
		t.Fatal(err)
	}

	if removed, err := repo.DeleteByCode(ctx, "abc123"); err != nil || !removed {
		t.Fatalf("first delete: got (%v, %v), want (true, nil)", removed, err)
	}
	if removed, err := repo.DeleteByCode(ctx, "abc123"); err != nil || removed {
		t.Fatalf("second delete: got (%v, %v), want (false, nil)", removed, err)
	}
}

func TestIncrementClick(t *testing.T) {
	repo := NewLinksRepository()
	ctx := context.Background()

	if _, err := repo.Insert(ctx, "abc123", "https://example.com"); err != nil {
		t.Fatal(err)
	}

	link, err := repo.IncrementClick(ctx, "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if link.Clicks != 1 {
		t.Errorf("got clicks %d, want 1", link.Clicks)
	}
	if link.LastClickedAt == nil {
		t.Error("last clicked timestamp should be set together with the increment")
	}

	if _, err := repo.IncrementClick(ctx, "missing"); !errors.Is(err, links.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestIncrementClickConcurrent(t *testing.T) {
	repo := NewLinksRepository()
	ctx := context.Background()

	if _, err := repo.Insert(ctx, "abc123", "https://example.com"); err != nil {
		t.Fatal(err)
	}

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := repo.IncrementClick(ctx, "abc123"); err != nil {
				t.Errorf("increment failed: %v", err)
			}
		}()
	}
	wg.Wait()

	link, err := repo.FindByCode(ctx, "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if link.Clicks != n {
		t.Errorf("got clicks %d, want %d (no lost updates)", link.Clicks, n)
	}
}

func TestListAllNewestFirst(t *testing.T) {
	repo := NewLinksRepository()
	ctx := context.Background()

	for _, code := range []string{"aaa111", "bbb222", "ccc333"} {
		if _, err := repo.Insert(ctx, code, "https://example.com/"+code); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"ccc333", "bbb222", "aaa111"}
	if len(got) != len(want) {
		t.Fatalf("got %d links, want %d", len(got), len(want))
	}
	for i, code := range want {
		if got[i].Code != code {
			t.Errorf("position %d: got %q, want %q", i, got[i].Code, code)
		}
	}
}

func TestFindByCodeReturnsCopy(t *testing.T) {
	repo := NewLinksRepository()
	ctx := context.Background()

	if _, err := repo.Insert(ctx, "abc123", "https://example.com"); err != nil {
		t.Fatal(err)
	}

	got, err := repo.FindByCode(ctx, "abc123")
	if err != nil {
		t.Fatal(err)
	}
	got.URL = "https://tampered.example.com"

	again, err := repo.FindByCode(ctx, "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if again.URL != "https://example.com" {
		t.Error("mutating a returned link must not affect stored state")
	}
}

// Service-level properties exercised against the real repository.

func TestServiceConcurrentCustomCodeCreates(t *testing.T) {
	repo := NewLinksRepository()
	svc := links.NewService(repo, nil, links.NewRandomCodeGenerator(), 6)

	const n = 10
	results := make(chan error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.CreateLink(context.Background(), links.CreateLinkInput{
				URL:  "https://example.com",
				Code: "race01",
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, links.ErrCodeExists):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("got %d winners for one code, want exactly 1", successes)
	}
}

func TestServiceConcurrentRedirects(t *testing.T) {
	repo := NewLinksRepository()
	svc := links.NewService(repo, nil, links.NewRandomCodeGenerator(), 6)
	ctx := context.Background()

	created, err := svc.CreateLink(ctx, links.CreateLinkInput{
		URL:  "https://example.com",
		Code: "abc123",
	})
	if err != nil {
		t.Fatal(err)
	}

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			link, err := svc.Redirect(ctx, "abc123")
			if err != nil {
				t.Errorf("redirect failed: %v", err)
				return
			}
			if link.URL != created.URL {
				t.Errorf("redirect returned %q, want %q", link.URL, created.URL)
			}
		}()
	}
	wg.Wait()

	link, err := svc.GetLink(ctx, "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if link.Clicks != n {
		t.Errorf("got clicks %d, want %d", link.Clicks, n)
	}
}
