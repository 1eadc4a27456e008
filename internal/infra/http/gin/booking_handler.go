package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	bookingapp "rentals/internal/app/handlers/booking"
	"rentals/internal/app/queries"
	domainbooking "rentals/internal/domain/booking"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createBookingRequest struct {
	ListingID       string                  `json:"listingId"`
	CheckIn         dateParam               `json:"checkIn"`
	CheckOut        dateParam               `json:"checkOut"`
	Guests          domainbooking.Guests    `json:"guests"`
	GuestInfo       domainbooking.GuestInfo `json:"guestInfo"`
	SpecialRequests string                  `json:"specialRequests"`
}

func (h BookingHandler) Create(c *gin.Context) {
	actor, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := bookingapp.CreateBookingCommand{
		Actor:           actor,
		ListingID:       req.ListingID,
		CheckIn:         req.CheckIn.Time,
		CheckOut:        req.CheckOut.Time,
		Guests:          req.Guests,
		GuestInfo:       req.GuestInfo,
		SpecialRequests: req.SpecialRequests,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	actor, ok := requirePrincipal(c)
	if !ok {
		return
	}
	q := bookingapp.GetBookingQuery{Actor: actor, BookingID: c.Param("id")}
	result, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](c.Request.Context(), h.Queries, q)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type updateBookingRequest struct {
	Status          *string                  `json:"status"`
	Guests          *domainbooking.Guests    `json:"guests"`
	GuestInfo       *domainbooking.GuestInfo `json:"guestInfo"`
	SpecialRequests *string                  `json:"specialRequests"`
	Reason          string                   `json:"reason"`
}

func (h BookingHandler) Update(c *gin.Context) {
	actor, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req updateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := bookingapp.UpdateBookingCommand{
		Actor:           actor,
		BookingID:       c.Param("id"),
		Status:          req.Status,
		Guests:          req.Guests,
		GuestInfo:       req.GuestInfo,
		SpecialRequests: req.SpecialRequests,
		Reason:          req.Reason,
	}
	h.dispatch(c, cmd)
}

func (h BookingHandler) Confirm(c *gin.Context) {
	actor, ok := requirePrincipal(c)
	if !ok {
		return
	}
	h.dispatch(c, bookingapp.ConfirmBookingCommand{Actor: actor, BookingID: c.Param("id")})
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

func (h BookingHandler) Cancel(c *gin.Context) {
	actor, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req cancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	h.dispatch(c, bookingapp.CancelBookingCommand{Actor: actor, BookingID: c.Param("id"), Reason: req.Reason})
}

func (h BookingHandler) Complete(c *gin.Context) {
	actor, ok := requirePrincipal(c)
	if !ok {
		return
	}
	h.dispatch(c, bookingapp.CompleteBookingCommand{Actor: actor, BookingID: c.Param("id")})
}

func (h BookingHandler) ListMine(c *gin.Context) {
	actor, ok := requirePrincipal(c)
	if !ok {
		return
	}
	result, err := queries.Ask[bookingapp.ListGuestBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, bookingapp.ListGuestBookingsQuery{Actor: actor})
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ListHost(c *gin.Context) {
	actor, ok := requirePrincipal(c)
	if !ok {
		return
	}
	result, err := queries.Ask[bookingapp.ListHostBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, bookingapp.ListHostBookingsQuery{Actor: actor})
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) dispatch(c *gin.Context, cmd commands.Command) {
	result, err := commands.Dispatch[commands.Command, dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
