// Package server exposes the feed store over HTTP: raw feed documents for
// readers, a JSON comics listing for UIs, and an OPML bundle for one-shot
// subscription.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/stripfeed/stripfeed/internal/config"
	"github.com/stripfeed/stripfeed/internal/feed/store"
	"github.com/stripfeed/stripfeed/internal/opml"
)

type Server struct {
	logger *slog.Logger
	store  *store.Store
	comics []config.Comic
	echo   *echo.Echo
}

func New(logger *slog.Logger, st *store.Store, comics []config.Comic) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType},
	}))

	server := &Server{
		logger: logger,
		store:  st,
		comics: comics,
		echo:   e,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/feeds/:name", s.handleFeed)
	s.echo.GET("/api/comics", s.handleComics)
	s.echo.GET("/opml", s.handleOPML)
}

func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Handler returns the routed handler, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "stripfeed",
		"comics":  len(s.comics),
	})
}

// handleFeed serves the stored RSS document verbatim. The path segment is the
// comic id plus ".xml"; only configured comics are served.
func (s *Server) handleFeed(c echo.Context) error {
	name := c.Param("name")
	comicID, ok := strings.CutSuffix(name, ".xml")
	if !ok || comicID == "" {
		return echo.NewHTTPError(http.StatusNotFound, "unknown feed")
	}
	if s.comicByID(comicID) == nil {
		return echo.NewHTTPError(http.StatusNotFound, "unknown feed")
	}

	body, err := os.ReadFile(s.store.Path(comicID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return echo.NewHTTPError(http.StatusNotFound, "feed not generated yet")
		}
		s.logger.Error("failed to read feed document", "comic", comicID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read feed")
	}
	return c.Blob(http.StatusOK, "application/rss+xml; charset=utf-8", body)
}

type comicSummary struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	SiteURL     string     `json:"site_url,omitempty"`
	FeedURL     string     `json:"feed_url"`
	EntryCount  int        `json:"entry_count"`
	LatestTitle string     `json:"latest_title,omitempty"`
	LatestAt    *time.Time `json:"latest_at,omitempty"`
	Preview     string     `json:"preview,omitempty"`
}

func (s *Server) handleComics(c echo.Context) error {
	summaries := make([]comicSummary, 0, len(s.comics))
	for _, comic := range s.comics {
		summary := comicSummary{
			ID:      comic.ID,
			Title:   comic.Title,
			SiteURL: comic.SiteURL,
			FeedURL: s.store.FeedURL(comic.ID),
		}

		entries, err := s.store.Read(c.Request().Context(), comic.ID)
		if err != nil {
			s.logger.Warn("failed to read feed for listing", "comic", comic.ID, "error", err)
			summaries = append(summaries, summary)
			continue
		}
		summary.EntryCount = len(entries)
		if len(entries) > 0 {
			latest := entries[0]
			summary.LatestTitle = latest.Title
			published := latest.Published
			summary.LatestAt = &published
			preview, err := previewText(latest.Description)
			if err != nil {
				s.logger.Warn("failed to build preview", "comic", comic.ID, "error", err)
			} else {
				summary.Preview = preview
			}
		}
		summaries = append(summaries, summary)
	}
	return c.JSON(http.StatusOK, summaries)
}

func (s *Server) handleOPML(c echo.Context) error {
	var ids []string
	if raw := c.QueryParam("comics"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}

	doc, err := opml.Build(s.comics, ids, s.store.FeedURL, time.Now())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	body, err := opml.Marshal(doc)
	if err != nil {
		s.logger.Error("failed to marshal opml", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to build opml")
	}
	return c.Blob(http.StatusOK, "text/x-opml; charset=utf-8", body)
}

func (s *Server) comicByID(id string) *config.Comic {
	for i := range s.comics {
		if s.comics[i].ID == id {
			return &s.comics[i]
		}
	}
	return nil
}
