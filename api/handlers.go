package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	apisearch "github.com/inkwellco/corpus/api/search"
	"github.com/inkwellco/corpus/pkg/index"
	"github.com/inkwellco/corpus/pkg/ingest"
	"github.com/inkwellco/corpus/pkg/retrieve"
)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleSearch handles GET /v1/search requests.
// Query parameters:
//   - query (required): the search query text
//   - top_k (optional, default 5): number of results to return
func (s *Server) handleSearch(c *fiber.Ctx) error {
	if s.retriever == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "search is not configured: an embedder is required",
		})
	}

	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "query parameter is required",
		})
	}

	topK := retrieve.DefaultTopK
	if topKStr := c.Query("top_k"); topKStr != "" {
		parsed, err := strconv.Atoi(topKStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "top_k must be a positive integer",
			})
		}
		topK = parsed
	}

	output, err := apisearch.Search(c.Context(), query, topK, s.retriever, s.logger)
	if err != nil {
		if errors.Is(err, retrieve.ErrRetrievalUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
				Error: "no live version: ingest and activate a version first",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(output)
}

// ingestRequest is the body for POST /v1/ingest.
type ingestRequest struct {
	// Activate swaps the live pointer to the new version when the batch
	// succeeds.
	Activate bool `json:"activate"`
}

// ingestResponse wraps the batch report.
type ingestResponse struct {
	Report    *ingest.Report `json:"report"`
	Activated bool           `json:"activated"`
}

// handleIngest handles POST /v1/ingest requests. It runs one ingestion
// batch from the configured document source.
func (s *Server) handleIngest(c *fiber.Ctx) error {
	if s.coordinator == nil || s.src == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "ingestion is not configured: a document source is required",
		})
	}

	var req ingestRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "invalid request body",
			})
		}
	}

	docs, err := s.src.Documents(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: err.Error(),
		})
	}

	report, err := s.coordinator.IngestBatch(c.Context(), docs)
	if err != nil {
		if errors.Is(err, ingest.ErrBatchFailed) {
			// The report is still useful to the operator.
			return c.Status(fiber.StatusUnprocessableEntity).JSON(ingestResponse{Report: report})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: err.Error(),
		})
	}

	resp := ingestResponse{Report: report}
	if req.Activate {
		if err := s.store.Activate(c.Context(), report.VersionID); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
				Error: err.Error(),
			})
		}
		resp.Activated = true
	}

	return c.JSON(resp)
}

// versionsResponse is the body for GET /v1/versions.
type versionsResponse struct {
	Versions []index.Version `json:"versions"`
	Live     string          `json:"live,omitempty"`
}

// handleListVersions returns every version entry and the live pointer.
func (s *Server) handleListVersions(c *fiber.Ctx) error {
	resp := versionsResponse{
		Versions: s.store.Versions(),
	}

	if live, err := s.store.Current(); err == nil {
		resp.Live = live
	}

	return c.JSON(resp)
}

// handleActivate swaps the live pointer to the given version.
func (s *Server) handleActivate(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := s.store.Activate(c.Context(), id); err != nil {
		return c.Status(versionErrorStatus(err)).JSON(ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(fiber.Map{"live": id})
}

// handleDeleteVersion removes a non-live version.
func (s *Server) handleDeleteVersion(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := s.store.Delete(c.Context(), id); err != nil {
		return c.Status(versionErrorStatus(err)).JSON(ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(fiber.Map{"deleted": id})
}

// pruneRequest is the body for POST /v1/versions/prune.
type pruneRequest struct {
	Keep int `json:"keep"`
}

// handlePrune retires READY versions beyond the keep window.
func (s *Server) handlePrune(c *fiber.Ctx) error {
	var req pruneRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "invalid request body",
			})
		}
	}

	// A missing or zero keep falls back to the retention default rather
	// than retiring every non-live version.
	if req.Keep <= 0 {
		req.Keep = index.DefaultRetentionKeep
	}

	retired, err := s.store.Prune(c.Context(), req.Keep)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: err.Error(),
		})
	}

	if retired == nil {
		retired = []string{}
	}

	return c.JSON(fiber.Map{"retired": retired})
}

// versionErrorStatus maps store errors onto HTTP status codes.
func versionErrorStatus(err error) int {
	switch {
	case errors.Is(err, index.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, index.ErrInvalidState):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
