package links

import (
	"context"
	"errors"
	"strings"
	"time"
)

type Service struct {
	repo       LinkRepository
	outbox     ClickOutboxRepository
	generator  CodeGenerator
	codeLength int
	now        func() time.Time
}

// NewService wires the link service. outbox may be nil, in which case
// click fan-out is disabled and only the stored counter is updated.
func NewService(repo LinkRepository, outbox ClickOutboxRepository, generator CodeGenerator, codeLength int) *Service {
	if codeLength <= 0 {
		codeLength = 6
	}

	return &Service{
		repo:       repo,
		outbox:     outbox,
		generator:  generator,
		codeLength: codeLength,
		now:        time.Now,
	}
}

// CreateLink validates the input and claims a code. The repository's
// unique index is the authoritative duplicate check; the pre-read for
// custom codes is only a fast path. At most one of two concurrent
// creates for the same code can succeed.
func (s *Service) CreateLink(ctx context.Context, in CreateLinkInput) (*Link, error) {
	rawURL := strings.TrimSpace(in.URL)
	if !IsValidURL(rawURL) {
		return nil, ErrInvalidURL
	}

	if custom := strings.TrimSpace(in.Code); custom != "" {
		return s.createWithCustomCode(ctx, custom, rawURL)
	}
	return s.createWithGeneratedCode(ctx, rawURL)
}

func (s *Service) createWithCustomCode(ctx context.Context, code, rawURL string) (*Link, error) {
	if !IsValidCode(code) {
		return nil, ErrInvalidCode
	}

	_, err := s.repo.FindByCode(ctx, code)
	if err == nil {
		return nil, ErrCodeExists
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return s.repo.Insert(ctx, code, rawURL)
}

func (s *Service) createWithGeneratedCode(ctx context.Context, rawURL string) (*Link, error) {
	const maxAttempts = 10
	for range maxAttempts {
		code, err := s.generator.Generate(s.codeLength)
		if err != nil {
			return nil, err
		}
		if !IsValidCode(code) {
			return nil, ErrInvalidCode
		}

		link, err := s.repo.Insert(ctx, code, rawURL)
		if err != nil {
			if errors.Is(err, ErrCodeExists) {
				continue
			}
			return nil, err
		}
		return link, nil
	}

	return nil, ErrCodeExists
}

func (s *Service) GetLink(ctx context.Context, code string) (*Link, error) {
	code = strings.TrimSpace(code)
	if !IsValidCode(code) {
		return nil, ErrInvalidCode
	}
	return s.repo.FindByCode(ctx, code)
}

// DeleteLink reports whether a link was removed. Deleting an absent code
// is not an error; the caller decides what to make of false.
func (s *Service) DeleteLink(ctx context.Context, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if !IsValidCode(code) {
		return false, ErrInvalidCode
	}
	return s.repo.DeleteByCode(ctx, code)
}

// Redirect resolves a code to its target URL, counting exactly one click
// per successful call. The increment and the lookup are a single atomic
// storage operation so concurrent redirects never lose a click.
func (s *Service) Redirect(ctx context.Context, code string) (*Link, error) {
	code = strings.TrimSpace(code)
	if !IsValidCode(code) {
		return nil, ErrInvalidCode
	}
	return s.repo.IncrementClick(ctx, code)
}

func (s *Service) ListLinks(ctx context.Context) ([]*Link, error) {
	return s.repo.ListAll(ctx)
}

// PublishClick enqueues a click event for downstream consumers. No-op
// when no outbox is configured or the code is blank; the stored counter
// has already been updated by Redirect.
func (s *Service) PublishClick(ctx context.Context, code string, at time.Time) error {
	if s.outbox == nil {
		return nil
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}
	return s.outbox.EnqueueClick(ctx, code, at.UTC())
}
