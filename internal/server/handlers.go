package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/datasets"
	"github.com/zimmerman-team/the-data-explorer-backend/internal/store"
)

const (
	retrievalErrMsg = "Sorry, something went wrong in our dataset retrieval. Contact the admin for more information."
	samplingErrMsg  = "Sorry, something went wrong in our dataset sampling. Contact the admin for more information."
)

func (s *Server) handleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, envelope(http.StatusOK, "OK"))
}

// handleUpdateDatasets runs a full refresh synchronously. This is the
// endpoint the installed crontab entry calls every morning.
func (s *Server) handleUpdateDatasets(c echo.Context) error {
	if err := s.manager.RefreshAll(c.Request().Context()); err != nil {
		s.log.Error("dataset refresh via http failed", err)
		return c.JSON(http.StatusInternalServerError,
			envelope(http.StatusInternalServerError, "Failed to download datasets."))
	}
	return c.JSON(http.StatusOK, envelope(http.StatusOK, "Success"))
}

func (s *Server) handleForceUpdate(c echo.Context) error {
	name := c.Param("name")

	if err := s.manager.ForceUpdate(c.Request().Context(), name); err != nil {
		if errors.Is(err, datasets.ErrUnknownDataset) {
			return c.JSON(http.StatusNotFound, envelope(http.StatusNotFound,
				fmt.Sprintf("Dataset %s not found in our Global Fund datasets!", name)))
		}
		s.log.Error("forced dataset update failed", err)
		return c.JSON(http.StatusInternalServerError,
			envelope(http.StatusInternalServerError, "Failed to force update dataset."))
	}
	return c.JSON(http.StatusOK, envelope(http.StatusOK, "Success"))
}

// handleDataset serves one page of stored dataset rows. Pagination
// defaults to page 1 with 10 rows.
func (s *Server) handleDataset(c echo.Context) error {
	name := c.Param("name")
	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 10)

	result, err := s.store.GetPage(c.Request().Context(), name, page, pageSize)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, envelope(http.StatusNotFound,
				fmt.Sprintf("Dataset %s not found in our Global Fund datasets!", name)))
		}
		s.log.Error("dataset page retrieval failed", err)
		return c.JSON(http.StatusInternalServerError,
			envelope(http.StatusInternalServerError, retrievalErrMsg))
	}

	return c.JSON(http.StatusOK, envelope(http.StatusOK, map[string]interface{}{
		"columns":    result.Columns,
		"data":       result.Rows,
		"page":       result.Page,
		"page_size":  result.PageSize,
		"total_rows": result.TotalRows,
	}))
}

// handleSampleData serves the first rows of a dataset for previews.
func (s *Server) handleSampleData(c echo.Context) error {
	name := c.Param("name")

	rows, err := s.store.Sample(c.Request().Context(), name, s.sample)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, envelope(http.StatusNotFound,
				fmt.Sprintf("Dataset %s not found in our Global Fund datasets!", name)))
		}
		s.log.Error("sample data retrieval failed", err)
		return c.JSON(http.StatusInternalServerError,
			envelope(http.StatusInternalServerError, samplingErrMsg))
	}

	return c.JSON(http.StatusOK, envelope(http.StatusOK, rows))
}

func queryInt(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
