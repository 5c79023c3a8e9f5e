package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tinylink-io/tinylink/internal/processing/links"
)

// LinksRepository is an in-memory links.LinkRepository for tests and
// local development. A single mutex stands in for the storage-level
// atomicity the SQL backends get from the database.
type LinksRepository struct {
	mu     sync.Mutex
	byCode map[string]*links.Link
	nextID int64
	now    func() time.Time
}

func NewLinksRepository() *LinksRepository {
	return &LinksRepository{
		byCode: make(map[string]*links.Link),
		nextID: 1,
		now:    time.Now,
	}
}

func (r *LinksRepository) FindByCode(_ context.Context, code string) (*links.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.byCode[code]
	if !ok {
		return nil, links.ErrNotFound
	}
	return copyLink(link), nil
}

func (r *LinksRepository) Insert(_ context.Context, code, url string) (*links.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byCode[code]; ok {
		return nil, links.ErrCodeExists
	}

	link := &links.Link{
		ID:        r.nextID,
		Code:      code,
		URL:       url,
		Clicks:    0,
		CreatedAt: r.now().UTC(),
	}
	r.nextID++
	r.byCode[code] = link

	return copyLink(link), nil
}

func (r *LinksRepository) DeleteByCode(_ context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byCode[code]; !ok {
		return false, nil
	}
	delete(r.byCode, code)
	return true, nil
}

func (r *LinksRepository) IncrementClick(_ context.Context, code string) (*links.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.byCode[code]
	if !ok {
		return nil, links.ErrNotFound
	}

	link.Clicks++
	at := r.now().UTC()
	link.LastClickedAt = &at

	return copyLink(link), nil
}

func (r *LinksRepository) ListAll(_ context.Context) ([]*links.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*links.Link, 0, len(r.byCode))
	for _, link := range r.byCode {
		out = append(out, copyLink(link))
	}

	// Newest first; IDs break ties between same-instant inserts.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	return out, nil
}

func copyLink(link *links.Link) *links.Link {
	out := *link
	if link.LastClickedAt != nil {
		at := *link.LastClickedAt
		out.LastClickedAt = &at
	}
	return &out
}
