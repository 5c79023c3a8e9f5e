package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tinylink-io/tinylink/internal/config"
	"github.com/tinylink-io/tinylink/internal/constants"
	"github.com/tinylink-io/tinylink/internal/infrastructure/logger"
	appvalidation "github.com/tinylink-io/tinylink/internal/infrastructure/validation"
	"github.com/tinylink-io/tinylink/internal/processing/links"
	"github.com/tinylink-io/tinylink/pkg/httputils"
	"go.uber.org/zap"
)

type LinksHandler struct {
	cfg *config.Config
	svc *links.Service

	asyncClick   bool
	clickTimeout time.Duration
}

type LinksHandlerOptions struct {
	// AsyncClick publishes the click event off the request path. The
	// click counter itself is always updated inline with the redirect.
	AsyncClick   bool
	ClickTimeout time.Duration
}

func NewLinksHandler(cfg *config.Config, svc *links.Service) *LinksHandler {
	return NewLinksHandlerWithOptions(cfg, svc, LinksHandlerOptions{
		AsyncClick:   true,
		ClickTimeout: 2 * time.Second,
	})
}

func NewLinksHandlerWithOptions(cfg *config.Config, svc *links.Service, opts LinksHandlerOptions) *LinksHandler {
	if opts.ClickTimeout <= 0 {
		opts.ClickTimeout = 2 * time.Second
	}

	return &LinksHandler{
		cfg:          cfg,
		svc:          svc,
		asyncClick:   opts.AsyncClick,
		clickTimeout: opts.ClickTimeout,
	}
}

type createLinkRequest struct {
	URL  string `json:"url" validate:"required,notblank,http_url"`
	Code string `json:"code,omitempty" validate:"omitempty,shortcode"`
}

type linkResponse struct {
	Code          string     `json:"code"`
	URL           string     `json:"url"`
	ShortURL      string     `json:"shortUrl"`
	Clicks        int64      `json:"clicks"`
	LastClickedAt *time.Time `json:"lastClickedAt"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type deleteLinkResponse struct {
	Deleted bool `json:"deleted"`
}

func (h *LinksHandler) toResponse(link *links.Link) linkResponse {
	return linkResponse{
		Code:          link.Code,
		URL:           link.URL,
		ShortURL:      strings.TrimRight(h.cfg.Shortener.BaseURL, "/") + "/" + link.Code,
		Clicks:        link.Clicks,
		LastClickedAt: link.LastClickedAt,
		CreatedAt:     link.CreatedAt,
	}
}

func (h *LinksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}
	if err := appvalidation.Validate(req); err != nil {
		apiErr := constants.ErrInvalidRequestBody
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			for _, e := range validationErrs {
				if e.Field() == "url" {
					apiErr = constants.ErrInvalidURL
					break
				}
				if e.Field() == "code" {
					apiErr = constants.ErrInvalidCode
					break
				}
			}
		}
		httputils.WriteAPIError(w, r, apiErr)
		return
	}

	link, err := h.svc.CreateLink(r.Context(), links.CreateLinkInput{
		URL:  req.URL,
		Code: req.Code,
	})
	if err != nil {
		switch {
		case errors.Is(err, links.ErrInvalidURL):
			httputils.WriteAPIError(w, r, constants.ErrInvalidURL)
		case errors.Is(err, links.ErrInvalidCode):
			httputils.WriteAPIError(w, r, constants.ErrInvalidCode)
		case errors.Is(err, links.ErrCodeExists):
			httputils.WriteAPIError(w, r, constants.ErrCodeExists)
		default:
			logger.Error("failed to create link", zap.Error(err))
			httputils.WriteAPIError(w, r, constants.ErrInternalError)
		}
		return
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessLinkCreated, h.toResponse(link))
}

func (h *LinksHandler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.svc.ListLinks(r.Context())
	if err != nil {
		logger.Error("failed to list links", zap.Error(err))
		httputils.WriteAPIError(w, r, constants.ErrInternalError)
		return
	}

	out := make([]linkResponse, 0, len(all))
	for _, link := range all {
		out = append(out, h.toResponse(link))
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessLinksFound, out)
}

func (h *LinksHandler) Get(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	link, err := h.svc.GetLink(r.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, links.ErrInvalidCode):
			httputils.WriteAPIError(w, r, constants.ErrInvalidCode)
		case errors.Is(err, links.ErrNotFound):
			httputils.WriteAPIError(w, r, constants.ErrLinkNotFound)
		default:
			logger.Error("failed to get link", zap.Error(err), zap.String("code", code))
			httputils.WriteAPIError(w, r, constants.ErrInternalError)
		}
		return
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessLinkFound, h.toResponse(link))
}

func (h *LinksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	removed, err := h.svc.DeleteLink(r.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, links.ErrInvalidCode):
			httputils.WriteAPIError(w, r, constants.ErrInvalidCode)
		default:
			logger.Error("failed to delete link", zap.Error(err), zap.String("code", code))
			httputils.WriteAPIError(w, r, constants.ErrInternalError)
		}
		return
	}
	if !removed {
		httputils.WriteAPIError(w, r, constants.ErrLinkNotFound)
		return
	}

	httputils.WriteAPISuccess(w, r, constants.SuccessLinkDeleted, deleteLinkResponse{Deleted: true})
}

func (h *LinksHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	link, err := h.svc.Redirect(r.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, links.ErrInvalidCode), errors.Is(err, links.ErrNotFound):
			http.NotFound(w, r)
		default:
			logger.Error("failed to resolve code", zap.Error(err), zap.String("code", code))
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}

	clickedAt := time.Now().UTC()
	if h.asyncClick {
		// WithoutCancel keeps the trace context alive past the response.
		publishCtx := context.WithoutCancel(r.Context())
		go func() {
			ctx, cancel := context.WithTimeout(publishCtx, h.clickTimeout)
			defer cancel()
			if err := h.svc.PublishClick(ctx, code, clickedAt); err != nil {
				logger.Warn("failed to publish click", zap.Error(err), zap.String("code", code))
			}
		}()
	} else {
		if err := h.svc.PublishClick(r.Context(), code, clickedAt); err != nil {
			logger.Warn("failed to publish click", zap.Error(err), zap.String("code", code))
		}
	}

	http.Redirect(w, r, link.URL, h.cfg.Shortener.RedirectStatus)
}
