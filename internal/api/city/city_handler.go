package city

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/konomads/internal/api"
	"github.com/FACorreiaa/konomads/internal/types"
	"github.com/FACorreiaa/konomads/internal/view"
)

const detailListLimit = 5

// PostLister and MeetupLister feed the city detail page.
type PostLister interface {
	ListPosts(ctx context.Context, citySlug *string, limit int) ([]types.Post, error)
}

type MeetupLister interface {
	ListUpcoming(ctx context.Context, citySlug *string, limit int) ([]types.Meetup, error)
}

type Handler struct {
	logger  *slog.Logger
	service Service
	posts   PostLister
	meetups MeetupLister
	view    *view.Renderer
}

func NewCityHandler(service Service, posts PostLister, meetups MeetupLister, renderer *view.Renderer, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		posts:   posts,
		meetups: meetups,
		view:    renderer,
	}
}

type listingData struct {
	Filter   FilterState
	Result   Result
	Regions  []string
	SortKeys []SortKey
}

// ListCities handles GET /cities.
func (h *Handler) ListCities(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CityHandler").Start(r.Context(), "ListCities")
	defer span.End()
	l := h.logger.With(slog.String("handler", "ListCities"))

	filter := ParseFilterState(r.URL.Query())
	res, err := h.service.Query(ctx, filter)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query cities", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Service operation failed")
		h.view.Error(w, r, http.StatusInternalServerError, "Cities are unavailable right now.")
		return
	}
	regions, err := h.service.Regions(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to load regions", slog.Any("error", err))
		h.view.Error(w, r, http.StatusInternalServerError, "Cities are unavailable right now.")
		return
	}

	h.view.Render(w, r, http.StatusOK, "cities", view.Page{
		Title: "Cities",
		Data: listingData{
			Filter:   filter,
			Result:   res,
			Regions:  regions,
			SortKeys: SortKeys,
		},
	})
}

type detailData struct {
	City    *types.City
	Posts   []types.Post
	Meetups []types.Meetup
}

// GetCity handles GET /cities/{slug}.
func (h *Handler) GetCity(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CityHandler").Start(r.Context(), "GetCity")
	defer span.End()
	slug := chi.URLParam(r, "slug")
	l := h.logger.With(slog.String("handler", "GetCity"), slog.String("slug", slug))

	city, err := h.service.GetCity(ctx, slug)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			h.view.Error(w, r, http.StatusNotFound, "City not found.")
			return
		}
		l.ErrorContext(ctx, "Failed to load city", slog.Any("error", err))
		span.RecordError(err)
		h.view.Error(w, r, http.StatusInternalServerError, "City is unavailable right now.")
		return
	}

	data := detailData{City: city, Posts: []types.Post{}, Meetups: []types.Meetup{}}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		posts, err := h.posts.ListPosts(gctx, &city.Slug, detailListLimit)
		if err != nil {
			return err
		}
		data.Posts = posts
		return nil
	})
	g.Go(func() error {
		meetups, err := h.meetups.ListUpcoming(gctx, &city.Slug, detailListLimit)
		if err != nil {
			return err
		}
		data.Meetups = meetups
		return nil
	})
	if err := g.Wait(); err != nil {
		// The city itself loaded; render it without the community sections.
		l.WarnContext(ctx, "Failed to load city community data", slog.Any("error", err))
		span.RecordError(err)
	}

	h.view.Render(w, r, http.StatusOK, "city", view.Page{Title: city.Name, Data: data})
}

// ListCitiesJSON godoc
// @Summary      List cities
// @Description  Returns the visible cities for a search text, region and sort key.
// @Tags         Cities
// @Produce      json
// @Param        q       query string false "Case-insensitive search over name, region and description"
// @Param        region  query string false "Exact region or 'all'"
// @Param        sort    query string false "popular | rating | cost-low | cost-high"
// @Success      200 {object} types.CityListResponse
// @Failure      500 {object} types.Response
// @Router       /api/v1/cities [get]
func (h *Handler) ListCitiesJSON(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("CityHandler").Start(r.Context(), "ListCitiesJSON")
	defer span.End()
	l := h.logger.With(slog.String("handler", "ListCitiesJSON"))

	filter := ParseFilterState(r.URL.Query())
	res, err := h.service.Query(ctx, filter)
	if err != nil {
		l.ErrorContext(ctx, "Failed to query cities", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Service operation failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to retrieve cities")
		return
	}
	regions, err := h.service.Regions(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to load regions", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to retrieve cities")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.CityListResponse{
		Cities:  res.Cities,
		Count:   res.Count,
		Query:   filter.SearchText,
		Region:  filter.Region,
		Sort:    string(filter.SortKey),
		Regions: regions,
	})
	span.SetStatus(codes.Ok, "Cities returned successfully")
}
