package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorResponse is the JSON error payload for all handlers.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListProfiles returns every profile with its preferences.
func (s *Server) handleListProfiles(c *fiber.Ctx) error {
	profiles, err := s.sys.Profiles.List(c.Context())
	if err != nil {
		s.logger.Error("failed to list profiles", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list profiles"})
	}

	return c.JSON(profiles)
}

// handleGetProfile returns one profile by user id. Auto-creates, so it
// never 404s for a well-formed id.
func (s *Server) handleGetProfile(c *fiber.Ctx) error {
	userID := c.Params("id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "user id required"})
	}

	prof, err := s.sys.Profiles.GetProfile(c.Context(), userID)
	if err != nil {
		s.logger.Error("failed to load profile",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load profile"})
	}

	return c.JSON(prof)
}

// handleSearchFragments embeds the query text and searches the caller's
// fragments.
func (s *Server) handleSearchFragments(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	query := c.Query("q")
	if userID == "" || query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "user_id and q parameters required"})
	}

	topK := 10
	if k := c.Query("k"); k != "" {
		n, err := strconv.Atoi(k)
		if err != nil || n <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "k must be a positive integer"})
		}
		topK = n
	}

	embedding, err := s.sys.Embedder.Embed(c.Context(), query)
	if err != nil {
		s.logger.Error("failed to embed search query", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "failed to embed query"})
	}

	results, err := s.sys.Index.Search(c.Context(), userID, embedding, topK)
	if err != nil {
		s.logger.Error("fragment search failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "search failed"})
	}

	return c.JSON(results)
}

// handleActivity returns recently closed sessions from the archive.
func (s *Server) handleActivity(c *fiber.Ctx) error {
	limit := 20
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "limit must be a positive integer"})
		}
		limit = n
	}

	recs, err := s.sys.Archive.Recent(c.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list recent sessions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list activity"})
	}

	return c.JSON(recs)
}

// handleSweep triggers a retention sweep and returns its report.
func (s *Server) handleSweep(c *fiber.Ctx) error {
	report, err := s.sys.Retention.Sweep(c.Context())
	if err != nil {
		s.logger.Error("manual sweep failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "sweep failed"})
	}

	return c.JSON(report)
}
