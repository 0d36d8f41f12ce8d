package historical

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/aevon-lab/aevon-topn/internal/api/v1"
	httperr "github.com/aevon-lab/aevon-topn/internal/core/errors"
	"github.com/aevon-lab/aevon-topn/internal/segment"
	"github.com/aevon-lab/aevon-topn/internal/topn"
)

// RegisterRoutes registers the query API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/topn", s.HandleTopN)
	r.GET("/v1/segments", s.HandleListSegments)
}

// HandleTopN handles POST /v1/topn
func (s *Service) HandleTopN(c *gin.Context) {
	var req v1.TopNRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid request body",
			Details:   err.Error(),
		})
		return
	}

	resp, err := s.Query(c.Request.Context(), req)
	if err != nil {
		status, body := errorResponse(err)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleListSegments handles GET /v1/segments
func (s *Service) HandleListSegments(c *gin.Context) {
	c.JSON(http.StatusOK, s.ListSegments())
}

func errorResponse(err error) (int, httperr.ErrorResponse) {
	switch {
	case errors.Is(err, topn.ErrInvalidQuery):
		return http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid top-n query",
			Details:   err.Error(),
		}
	case errors.Is(err, segment.ErrSegmentNotFound):
		return http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpSegmentNotFoundError,
			Message:   "Segment not found",
			Details:   err.Error(),
		}
	case errors.Is(err, httperr.ErrUnsupportedCardinality):
		return http.StatusUnprocessableEntity, httperr.ErrorResponse{
			ErrorType: httperr.HttpUnsupportedError,
			Message:   "Algorithm cannot run on this dimension",
			Details:   err.Error(),
		}
	default:
		return http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to run top-n query",
			Details:   err.Error(),
		}
	}
}
