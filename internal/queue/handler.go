package queue

import (
	"context"
	"errors"
	"net/http"

	"templeq/internal/bookings"
	"templeq/internal/passes"
	"templeq/internal/payments"
	"templeq/internal/shared/middleware"
	"templeq/internal/shared/utils/response"
	"templeq/internal/temples"

	"github.com/gin-gonic/gin"
)

type Handler interface {
	GetState(c *gin.Context)
	SelectSlot(c *gin.Context)
	SelectTier(c *gin.Context)
	Pay(c *gin.Context)
	RetryPayment(c *gin.Context)
	CancelPayment(c *gin.Context)
	Refresh(c *gin.Context)
	Leave(c *gin.Context)
	GetPass(c *gin.Context)
	GetLeaveReasons(c *gin.Context)
}

type handler struct {
	manager *Manager
}

func NewHandler(manager *Manager) Handler {
	return &handler{manager: manager}
}

func (h *handler) session(c *gin.Context) (*Controller, bool) {
	session, err := h.manager.Session(c.Request.Context(), middleware.GetDeviceID(c), c.Param("templeId"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return session, true
}

func (h *handler) GetState(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if err := session.LoadPersistedBooking(c.Request.Context()); err != nil && !errors.Is(err, ErrOperationInFlight) {
		respondError(c, err)
		return
	}
	snap := session.State()
	session.TakeNotice()
	response.RespondJSON(c, response.StatusSuccess, http.StatusOK, "Queue state retrieved successfully", snap, nil)
}

func (h *handler) SelectSlot(c *gin.Context) {
	var req SelectSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, response.StatusError, http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}
	h.run(c, "Slot selected", func(ctx context.Context, s *Controller) error {
		return s.SelectSlot(ctx, req.SlotTime)
	})
}

func (h *handler) SelectTier(c *gin.Context) {
	var req SelectTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, response.StatusError, http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}
	h.run(c, "Tier selected", func(ctx context.Context, s *Controller) error {
		return s.SelectTier(ctx, req.TierID)
	})
}

func (h *handler) Pay(c *gin.Context) {
	var req PayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, response.StatusError, http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}
	session, ok := h.session(c)
	if !ok {
		return
	}

	partySize := req.PartySize
	if partySize == 0 {
		partySize = 1
	}
	visitor := payments.VisitorDetails{Name: req.Name, PhoneNumber: req.PhoneNumber, Email: req.Email}
	b, err := session.Pay(c.Request.Context(), visitor, partySize)
	if err != nil {
		respondError(c, err)
		return
	}
	response.RespondJSON(c, response.StatusSuccess, http.StatusCreated, "Payment successful, you are in the queue", BookingResponse{Booking: b, State: session.State()}, nil)
}

func (h *handler) RetryPayment(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	b, err := session.RetryPayment(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.RespondJSON(c, response.StatusSuccess, http.StatusCreated, "Payment successful, you are in the queue", BookingResponse{Booking: b, State: session.State()}, nil)
}

func (h *handler) CancelPayment(c *gin.Context) {
	h.run(c, "Booking flow cancelled", func(ctx context.Context, s *Controller) error {
		return s.CancelPaymentFlow(ctx)
	})
}

func (h *handler) Refresh(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	b, err := session.Refresh(c.Request.Context())
	if err != nil {
		respondSessionError(c, session, err)
		return
	}
	response.RespondJSON(c, response.StatusSuccess, http.StatusOK, "Queue position updated", BookingResponse{Booking: b, State: session.State()}, nil)
}

func (h *handler) Leave(c *gin.Context) {
	var req LeaveQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, response.StatusError, http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}
	session, ok := h.session(c)
	if !ok {
		return
	}

	outcome, err := session.Leave(c.Request.Context(), LeaveRequest{
		Reason:  LeaveReason(req.Reason),
		Details: req.Details,
		NewSlot: req.NewSlot,
	})
	if err != nil {
		respondSessionError(c, session, err)
		return
	}

	message := "You have left the queue"
	if outcome.Status == bookings.StatusRescheduled {
		message = "Booking moved to the new slot"
	}
	response.RespondJSON(c, response.StatusSuccess, http.StatusOK, message, LeaveResponse{Outcome: outcome, State: session.State()}, nil)
}

func (h *handler) GetPass(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	pass, err := session.Pass(c.Request.Context())
	if err != nil {
		respondSessionError(c, session, err)
		return
	}
	response.RespondJSON(c, response.StatusSuccess, http.StatusOK, "Pass retrieved successfully", pass, nil)
}

func (h *handler) GetLeaveReasons(c *gin.Context) {
	response.RespondJSON(c, response.StatusSuccess, http.StatusOK, "Leave reasons retrieved successfully", LeaveReasons(), nil)
}

// run executes a state-only action and replies with the new snapshot
func (h *handler) run(c *gin.Context, message string, action func(ctx context.Context, s *Controller) error) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if err := action(c.Request.Context(), session); err != nil {
		respondError(c, err)
		return
	}
	response.RespondJSON(c, response.StatusSuccess, http.StatusOK, message, session.State(), nil)
}

// respondSessionError attaches the one-time notice when the session expired
func respondSessionError(c *gin.Context, session *Controller, err error) {
	if errors.Is(err, passes.ErrUsedPass) || errors.Is(err, bookings.ErrNoActiveBooking) {
		if notice := session.TakeNotice(); notice != "" {
			response.RespondJSON(c, response.StatusError, http.StatusGone, notice, session.State(), err.Error())
			return
		}
	}
	respondError(c, err)
}

func respondError(c *gin.Context, err error) {
	var verr *payments.ValidationError
	if errors.As(err, &verr) {
		response.RespondJSON(c, response.StatusError, http.StatusUnprocessableEntity, verr.Error(), nil, map[string]string{verr.Field: verr.Reason})
		return
	}
	var terr *InvalidTransitionError
	if errors.As(err, &terr) {
		response.RespondJSON(c, response.StatusError, http.StatusConflict, err.Error(), nil, nil)
		return
	}
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	response.RespondJSON(c, response.StatusError, code, err.Error(), nil, nil)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, temples.ErrTempleNotFound),
		errors.Is(err, temples.ErrSlotNotFound),
		errors.Is(err, temples.ErrTierNotFound),
		errors.Is(err, bookings.ErrNoActiveBooking):
		return http.StatusNotFound
	case errors.Is(err, temples.ErrSlotFull),
		errors.Is(err, temples.ErrTierFull),
		errors.Is(err, bookings.ErrActiveBookingExists),
		errors.Is(err, ErrOperationInFlight):
		return http.StatusConflict
	case errors.Is(err, payments.ErrPaymentDeclined):
		return http.StatusPaymentRequired
	case errors.Is(err, passes.ErrUsedPass):
		return http.StatusGone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
