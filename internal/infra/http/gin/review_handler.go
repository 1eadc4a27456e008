package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	reviewsapp "rentals/internal/app/handlers/reviews"
	domainreviews "rentals/internal/domain/reviews"
)

type ReviewHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

type reviewRequest struct {
	Rating     int                          `json:"rating"`
	Categories domainreviews.CategoryScores `json:"categories"`
	Text       string                       `json:"text"`
}

func (h ReviewHandler) Submit(c *gin.Context) {
	actor, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := reviewsapp.SubmitReviewCommand{
		Actor:      actor,
		BookingID:  c.Param("id"),
		Rating:     req.Rating,
		Categories: req.Categories,
		Text:       req.Text,
	}
	review, err := commands.Dispatch[reviewsapp.SubmitReviewCommand, dto.Review](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

func (h ReviewHandler) Update(c *gin.Context) {
	actor, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := reviewsapp.UpdateReviewCommand{
		Actor:      actor,
		ReviewID:   c.Param("id"),
		Rating:     req.Rating,
		Categories: req.Categories,
		Text:       req.Text,
	}
	review, err := commands.Dispatch[reviewsapp.UpdateReviewCommand, dto.Review](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

func (h ReviewHandler) Delete(c *gin.Context) {
	actor, ok := requirePrincipal(c)
	if !ok {
		return
	}
	cmd := reviewsapp.DeleteReviewCommand{Actor: actor, ReviewID: c.Param("id")}
	result, err := commands.Dispatch[reviewsapp.DeleteReviewCommand, dto.ListingRating](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
