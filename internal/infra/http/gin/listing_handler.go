package ginserver

import (
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"rentals/internal/app/commands"
	"rentals/internal/app/dto"
	bookingapp "rentals/internal/app/handlers/booking"
	listingsapp "rentals/internal/app/handlers/listings"
	"rentals/internal/app/queries"
)

type ListingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

// Availability answers GET /listings/:id/availability?checkIn=&checkOut=.
func (h ListingHandler) Availability(c *gin.Context) {
	if _, ok := requirePrincipal(c); !ok {
		return
	}
	checkIn, checkOut, ok := stayFromQuery(c)
	if !ok {
		return
	}
	q := bookingapp.CheckAvailabilityQuery{ListingID: c.Param("id"), CheckIn: checkIn, CheckOut: checkOut}
	result, err := queries.Ask[bookingapp.CheckAvailabilityQuery, dto.Availability](c.Request.Context(), h.Queries, q)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ListingHandler) Quote(c *gin.Context) {
	if _, ok := requirePrincipal(c); !ok {
		return
	}
	checkIn, checkOut, ok := stayFromQuery(c)
	if !ok {
		return
	}
	q := bookingapp.QuotePriceQuery{ListingID: c.Param("id"), CheckIn: checkIn, CheckOut: checkOut}
	result, err := queries.Ask[bookingapp.QuotePriceQuery, dto.Quote](c.Request.Context(), h.Queries, q)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Calendar answers GET /listings/:id/calendar?from=&to=.
func (h ListingHandler) Calendar(c *gin.Context) {
	if _, ok := requirePrincipal(c); !ok {
		return
	}
	from, err := parseDate(c.Query("from"))
	if err != nil {
		badRequest(c, err)
		return
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		badRequest(c, err)
		return
	}
	q := bookingapp.GetCalendarQuery{ListingID: c.Param("id"), From: from, To: to}
	result, err := queries.Ask[bookingapp.GetCalendarQuery, dto.Calendar](c.Request.Context(), h.Queries, q)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ListingHandler) Delete(c *gin.Context) {
	actor, ok := requirePrincipal(c)
	if !ok {
		return
	}
	cmd := listingsapp.DeleteListingCommand{Actor: actor, ListingID: c.Param("id")}
	result, err := commands.Dispatch[listingsapp.DeleteListingCommand, dto.ListingDeletion](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func stayFromQuery(c *gin.Context) (checkIn, checkOut time.Time, ok bool) {
	checkIn, err := parseDate(c.Query("checkIn"))
	if err != nil {
		badRequest(c, err)
		return time.Time{}, time.Time{}, false
	}
	checkOut, err = parseDate(c.Query("checkOut"))
	if err != nil {
		badRequest(c, err)
		return time.Time{}, time.Time{}, false
	}
	return checkIn, checkOut, true
}
