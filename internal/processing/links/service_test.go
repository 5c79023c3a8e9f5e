package links

import (
	"context"
	"errors"
	"testing"
	"time"
)

// --- Hand-written mocks ---

type mockLinkRepo struct {
	findByCodeFn     func(ctx context.Context, code string) (*Link, error)
	insertFn         func(ctx context.Context, code, url string) (*Link, error)
	deleteByCodeFn   func(ctx context.Context, code string) (bool, error)
	incrementClickFn func(ctx context.Context, code string) (*Link, error)
	listAllFn        func(ctx context.Context) ([]*Link, error)
}

func (m *mockLinkRepo) FindByCode(ctx context.Context, code string) (*Link, error) {
	if m.findByCodeFn == nil {
		return nil, ErrNotFound
	}
	return m.findByCodeFn(ctx, code)
}
func (m *mockLinkRepo) Insert(ctx context.Context, code, url string) (*Link, error) {
	return m.insertFn(ctx, code, url)
}
func (m *mockLinkRepo) DeleteByCode(ctx context.Context, code string) (bool, error) {
	return m.deleteByCodeFn(ctx, code)
}
func (m *mockLinkRepo) IncrementClick(ctx context.Context, code string) (*Link, error) {
	return m.incrementClickFn(ctx, code)
}
func (m *mockLinkRepo) ListAll(ctx context.Context) ([]*Link, error) {
	return m.listAllFn(ctx)
}

type mockOutbox struct {
	enqueueFn func(ctx context.Context, code string, at time.Time) error
}

func (m *mockOutbox) EnqueueClick(ctx context.Context, code string, at time.Time) error {
	return m.enqueueFn(ctx, code, at)
}

type mockGenerator struct {
	codes []string
	idx   int
}

func (m *mockGenerator) Generate(int) (string, error) {
	if m.idx >= len(m.codes) {
		return "", errors.New("no more codes")
	}
	c := m.codes[m.idx]
	m.idx++
	return c, nil
}

func newTestService(repo *mockLinkRepo, gen *mockGenerator) *Service {
	svc := NewService(repo, nil, gen, 6)
	svc.now = func() time.Time {
		return time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

// --- CreateLink ---

func TestCreateLink_GeneratedCode(t *testing.T) {
	repo := &mockLinkRepo{
		insertFn: func(_ context.Context, code, url string) (*Link, error) {
			return &Link{Code: code, URL: url}, nil
		},
	}
	gen := &mockGenerator{codes: []string{"abc123"}}

	svc := newTestService(repo, gen)

	link, err := svc.CreateLink(context.Background(), CreateLinkInput{URL: "https://example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if link.Code != "abc123" {
		t.Errorf("got code %q, want %q", link.Code, "abc123")
	}
	if link.URL != "https://example.com" {
		t.Errorf("got URL %q, want %q", link.URL, "https://example.com")
	}
}

func TestCreateLink_InvalidURL(t *testing.T) {
	inserted := false
	repo := &mockLinkRepo{
		insertFn: func(_ context.Context, _, _ string) (*Link, error) {
			inserted = true
			return nil, nil
		},
	}

	svc := newTestService(repo, &mockGenerator{})

	for _, raw := range []string{"", "not-a-url", "ftp://example.com", "/relative"} {
		if _, err := svc.CreateLink(context.Background(), CreateLinkInput{URL: raw}); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("url %q: expected ErrInvalidURL, got: %v", raw, err)
		}
	}
	if inserted {
		t.Error("invalid url must be rejected before any storage call")
	}
}

func TestCreateLink_InvalidCustomCode(t *testing.T) {
	svc := newTestService(&mockLinkRepo{}, &mockGenerator{})

	_, err := svc.CreateLink(context.Background(), CreateLinkInput{
		URL:  "https://example.com",
		Code: "bad-code!",
	})
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got: %v", err)
	}
}

func TestCreateLink_CustomCodeTaken_PreCheck(t *testing.T) {
	repo := &mockLinkRepo{
		findByCodeFn: func(_ context.Context, code string) (*Link, error) {
			return &Link{Code: code, URL: "https://original.example.com"}, nil
		},
		insertFn: func(_ context.Context, _, _ string) (*Link, error) {
			t.Fatal("insert must not run when the pre-check finds the code")
			return nil, nil
		},
	}

	svc := newTestService(repo, &mockGenerator{})

	_, err := svc.CreateLink(context.Background(), CreateLinkInput{
		URL:  "https://example.com",
		Code: "dup01",
	})
	if !errors.Is(err, ErrCodeExists) {
		t.Fatalf("expected ErrCodeExists, got: %v", err)
	}
}

func TestCreateLink_CustomCodeTaken_LostRace(t *testing.T) {
	// Pre-check misses, then the unique index rejects the insert: the
	// storage-level signal must surface as the same ErrCodeExists.
	repo := &mockLinkRepo{
		findByCodeFn: func(_ context.Context, _ string) (*Link, error) {
			return nil, ErrNotFound
		},
		insertFn: func(_ context.Context, _, _ string) (*Link, error) {
			return nil, ErrCodeExists
		},
	}

	svc := newTestService(repo, &mockGenerator{})

	_, err := svc.CreateLink(context.Background(), CreateLinkInput{
		URL:  "https://example.com",
		Code: "dup01",
	})
	if !errors.Is(err, ErrCodeExists) {
		t.Fatalf("expected ErrCodeExists, got: %v", err)
	}
}

func TestCreateLink_CollisionRetries(t *testing.T) {
	attempts := 0
	repo := &mockLinkRepo{
		insertFn: func(_ context.Context, code, url string) (*Link, error) {
			attempts++
			if attempts <= 2 {
				return nil, ErrCodeExists
			}
			return &Link{Code: code, URL: url}, nil
		},
	}
	gen := &mockGenerator{codes: []string{"c1", "c2", "c3"}}

	svc := newTestService(repo, gen)

	link, err := svc.CreateLink(context.Background(), CreateLinkInput{URL: "https://example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if link.Code != "c3" {
		t.Errorf("got code %q, want %q", link.Code, "c3")
	}
	if attempts != 3 {
		t.Errorf("expected 3 insert attempts, got %d", attempts)
	}
}

func TestCreateLink_RetriesExhausted(t *testing.T) {
	attempts := 0
	repo := &mockLinkRepo{
		insertFn: func(_ context.Context, _, _ string) (*Link, error) {
			attempts++
			return nil, ErrCodeExists
		},
	}
	codes := make([]string, 20)
	for i := range codes {
		codes[i] = "dup"
	}

	svc := newTestService(repo, &mockGenerator{codes: codes})

	_, err := svc.CreateLink(context.Background(), CreateLinkInput{URL: "https://example.com"})
	if !errors.Is(err, ErrCodeExists) {
		t.Fatalf("expected ErrCodeExists after exhausting retries, got: %v", err)
	}
	if attempts != 10 {
		t.Errorf("expected exactly 10 bounded attempts, got %d", attempts)
	}
}

func TestCreateLink_StorageErrorNotRetried(t *testing.T) {
	storageErr := errors.New("connection reset")
	attempts := 0
	repo := &mockLinkRepo{
		insertFn: func(_ context.Context, _, _ string) (*Link, error) {
			attempts++
			return nil, storageErr
		},
	}

	svc := newTestService(repo, &mockGenerator{codes: []string{"c1", "c2"}})

	_, err := svc.CreateLink(context.Background(), CreateLinkInput{URL: "https://example.com"})
	if !errors.Is(err, storageErr) {
		t.Fatalf("expected storage error to propagate, got: %v", err)
	}
	if errors.Is(err, ErrCodeExists) || errors.Is(err, ErrNotFound) {
		t.Error("storage failure must not be conflated with a domain error")
	}
	if attempts != 1 {
		t.Errorf("storage errors must not be retried, got %d attempts", attempts)
	}
}

// --- GetLink ---

func TestGetLink_InvalidCode(t *testing.T) {
	svc := newTestService(&mockLinkRepo{}, &mockGenerator{})

	for _, code := range []string{"", "bad code", "abc-123"} {
		if _, err := svc.GetLink(context.Background(), code); !errors.Is(err, ErrInvalidCode) {
			t.Errorf("code %q: expected ErrInvalidCode, got: %v", code, err)
		}
	}
}

func TestGetLink_DelegatesToRepo(t *testing.T) {
	want := &Link{Code: "abc123", URL: "https://example.com"}
	repo := &mockLinkRepo{
		findByCodeFn: func(_ context.Context, code string) (*Link, error) {
			if code == "abc123" {
				return want, nil
			}
			return nil, ErrNotFound
		},
	}

	svc := newTestService(repo, &mockGenerator{})

	got, err := svc.GetLink(context.Background(), "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if got.Code != want.Code {
		t.Errorf("got code %q, want %q", got.Code, want.Code)
	}

	if _, err := svc.GetLink(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

// --- DeleteLink ---

func TestDeleteLink_InvalidCode(t *testing.T) {
	svc := newTestService(&mockLinkRepo{}, &mockGenerator{})

	if _, err := svc.DeleteLink(context.Background(), "no/pe"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got: %v", err)
	}
}

func TestDeleteLink_ReportsRemoval(t *testing.T) {
	present := true
	repo := &mockLinkRepo{
		deleteByCodeFn: func(_ context.Context, _ string) (bool, error) {
			was := present
			present = false
			return was, nil
		},
	}

	svc := newTestService(repo, &mockGenerator{})

	removed, err := svc.DeleteLink(context.Background(), "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if !removed {
		t.Error("first delete should report true")
	}

	removed, err = svc.DeleteLink(context.Background(), "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if removed {
		t.Error("second delete should report false, not an error")
	}
}

// --- Redirect ---

func TestRedirect_InvalidCode(t *testing.T) {
	svc := newTestService(&mockLinkRepo{}, &mockGenerator{})

	if _, err := svc.Redirect(context.Background(), "bad code"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got: %v", err)
	}
}

func TestRedirect_CountsClickAtomically(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	repo := &mockLinkRepo{
		incrementClickFn: func(_ context.Context, code string) (*Link, error) {
			return &Link{Code: code, URL: "https://example.com", Clicks: 1, LastClickedAt: &now}, nil
		},
	}

	svc := newTestService(repo, &mockGenerator{})

	link, err := svc.Redirect(context.Background(), "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if link.URL != "https://example.com" {
		t.Errorf("got URL %q, want %q", link.URL, "https://example.com")
	}
	if link.Clicks != 1 {
		t.Errorf("got clicks %d, want 1", link.Clicks)
	}
	if link.LastClickedAt == nil {
		t.Error("last clicked timestamp should be set with the increment")
	}
}

func TestRedirect_NotFound(t *testing.T) {
	repo := &mockLinkRepo{
		incrementClickFn: func(_ context.Context, _ string) (*Link, error) {
			return nil, ErrNotFound
		},
	}

	svc := newTestService(repo, &mockGenerator{})

	if _, err := svc.Redirect(context.Background(), "missing1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

// --- ListLinks ---

func TestListLinks_Passthrough(t *testing.T) {
	want := []*Link{{Code: "c"}, {Code: "b"}, {Code: "a"}}
	repo := &mockLinkRepo{
		listAllFn: func(_ context.Context) ([]*Link, error) {
			return want, nil
		},
	}

	svc := newTestService(repo, &mockGenerator{})

	got, err := svc.ListLinks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d links, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Code != want[i].Code {
			t.Errorf("position %d: got %q, want %q", i, got[i].Code, want[i].Code)
		}
	}
}

// --- PublishClick ---

func TestPublishClick_NilOutbox(t *testing.T) {
	svc := newTestService(&mockLinkRepo{}, &mockGenerator{})

	if err := svc.PublishClick(context.Background(), "abc123", time.Now()); err != nil {
		t.Fatalf("nil outbox should be no-op, got: %v", err)
	}
}

func TestPublishClick_EmptyCode(t *testing.T) {
	called := false
	ob := &mockOutbox{
		enqueueFn: func(_ context.Context, _ string, _ time.Time) error {
			called = true
			return nil
		},
	}

	svc := NewService(&mockLinkRepo{}, ob, &mockGenerator{}, 6)

	if err := svc.PublishClick(context.Background(), "  ", time.Now()); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("expected no-op for blank code")
	}
}

func TestPublishClick_Enqueues(t *testing.T) {
	var gotCode string
	var gotAt time.Time
	ob := &mockOutbox{
		enqueueFn: func(_ context.Context, code string, at time.Time) error {
			gotCode = code
			gotAt = at
			return nil
		},
	}

	svc := NewService(&mockLinkRepo{}, ob, &mockGenerator{}, 6)

	at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.FixedZone("BRT", -3*3600))
	if err := svc.PublishClick(context.Background(), "abc123", at); err != nil {
		t.Fatal(err)
	}
	if gotCode != "abc123" {
		t.Errorf("got code %q, want %q", gotCode, "abc123")
	}
	if gotAt.Location() != time.UTC {
		t.Errorf("expected UTC timestamp, got %v", gotAt.Location())
	}
}
