package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/courierly/dispatch-service/internal/entities"
	"github.com/courierly/dispatch-service/internal/service"
	"github.com/courierly/dispatch-service/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type DispatchService interface {
	CreateDelivery(ctx context.Context, in service.CreateDeliveryInput) (entities.Delivery, error)
	AssignDriver(ctx context.Context, deliveryID string) (entities.Delivery, error)
	UpdateStatus(ctx context.Context, deliveryID string, next entities.DeliveryStatus, driverID string) (entities.Delivery, error)
	GetDelivery(ctx context.Context, id string) (entities.Delivery, error)
	GetDeliveriesByUser(ctx context.Context, userID string) ([]entities.Delivery, error)
	GetActiveDeliveriesByUser(ctx context.Context, userID string) ([]entities.Delivery, error)
	GetDeliveriesByDriver(ctx context.Context, driverID string) ([]entities.Delivery, error)
}

type DriverService interface {
	RegisterDriver(ctx context.Context, in service.RegisterDriverInput) (entities.Driver, error)
	DeactivateDriver(ctx context.Context, id string) (entities.Driver, error)
	GetDriver(ctx context.Context, id string) (entities.Driver, error)
	GetActiveDrivers(ctx context.Context) ([]entities.Driver, error)
}

type UserService interface {
	RegisterUser(ctx context.Context, in service.RegisterUserInput) (entities.User, error)
	GetUser(ctx context.Context, id string) (entities.User, error)
	ReportUserLocation(ctx context.Context, id string, loc entities.UserLocation) (entities.User, error)
	SetBillingRefs(ctx context.Context, id, customerID, subscriptionID string) (entities.User, error)
}

type HTTPHandler struct {
	logger   *slog.Logger
	validate *validator.Validate
	dispatch DispatchService
	drivers  DriverService
	users    UserService
}

func NewHTTPHandler(logger *slog.Logger, dispatch DispatchService, drivers DriverService, users UserService) *HTTPHandler {
	return &HTTPHandler{
		logger:   logger.With(slog.String("handler", "http")),
		validate: validator.New(),
		dispatch: dispatch,
		drivers:  drivers,
		users:    users,
	}
}

func (h *HTTPHandler) Init(r chi.Router) {
	r.Get("/healthz", h.Healthz)
	r.Route("/api", func(r chi.Router) {
		r.Route("/deliveries", func(r chi.Router) {
			r.Post("/", h.CreateDelivery)
			r.Get("/{id}", h.GetDelivery)
			r.Post("/{id}/assign", h.AssignDriver)
			r.Patch("/{id}/status", h.UpdateStatus)
			r.Get("/user/{userID}", h.GetUserDeliveries)
			r.Get("/user/{userID}/active", h.GetActiveUserDeliveries)
			r.Get("/driver/{driverID}", h.GetDriverDeliveries)
		})
		r.Route("/drivers", func(r chi.Router) {
			r.Post("/", h.RegisterDriver)
			r.Get("/", h.GetActiveDrivers)
			r.Get("/{id}", h.GetDriver)
			r.Patch("/{id}/deactivate", h.DeactivateDriver)
		})
		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.RegisterUser)
			r.Get("/{id}", h.GetUser)
			r.Patch("/{id}/location", h.UpdateUserLocation)
			r.Patch("/{id}/billing", h.UpdateUserBilling)
		})
	})
}

func (h *HTTPHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// CreateDelivery records the request and immediately tries to match a
// driver. A dry driver pool is not an error here: the delivery stays
// pending and can be assigned later via the assign endpoint.
func (h *HTTPHandler) CreateDelivery(w http.ResponseWriter, r *http.Request) {
	var req CreateDeliveryRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	created, err := h.dispatch.CreateDelivery(r.Context(), service.CreateDeliveryInput{
		UserID:              req.UserID,
		Pickup:              locationFromJSON(req.PickupLocation),
		Dropoff:             locationFromJSON(req.DeliveryLocation),
		ItemDescription:     req.ItemDescription,
		PackageSize:         entities.PackageSize(req.PackageSize),
		Urgency:             entities.Urgency(req.Urgency),
		SpecialInstructions: req.SpecialInstructions,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	deliveriesCreated.Inc()

	result := created
	assigned, err := h.dispatch.AssignDriver(r.Context(), created.ID)
	switch {
	case err == nil:
		result = assigned
		driverAssignments.WithLabelValues("assigned").Inc()
	case errors.Is(err, entities.ErrNoDriverAvailable):
		driverAssignments.WithLabelValues("no_driver").Inc()
		h.logger.InfoContext(r.Context(), "no driver available, delivery left pending",
			slog.String("delivery_id", created.ID))
	default:
		driverAssignments.WithLabelValues("error").Inc()
		h.logger.ErrorContext(r.Context(), "auto assignment failed",
			slog.String("delivery_id", created.ID),
			slog.String("error", err.Error()))
	}

	utils.WriteJSON(w, h.enrichDelivery(r.Context(), result), http.StatusCreated)
}

func (h *HTTPHandler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	delivery, err := h.dispatch.GetDelivery(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, h.enrichDelivery(r.Context(), delivery), http.StatusOK)
}

func (h *HTTPHandler) AssignDriver(w http.ResponseWriter, r *http.Request) {
	assigned, err := h.dispatch.AssignDriver(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, entities.ErrNoDriverAvailable) {
			driverAssignments.WithLabelValues("no_driver").Inc()
		}
		h.writeServiceError(w, r, err)
		return
	}
	driverAssignments.WithLabelValues("assigned").Inc()
	utils.WriteJSON(w, h.enrichDelivery(r.Context(), assigned), http.StatusOK)
}

func (h *HTTPHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	updated, err := h.dispatch.UpdateStatus(r.Context(), chi.URLParam(r, "id"), entities.DeliveryStatus(req.Status), req.DriverID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	statusUpdates.WithLabelValues(string(updated.Status)).Inc()
	utils.WriteJSON(w, h.enrichDelivery(r.Context(), updated), http.StatusOK)
}

func (h *HTTPHandler) RegisterDriver(w http.ResponseWriter, r *http.Request) {
	var req RegisterDriverRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	driver, err := h.drivers.RegisterDriver(r.Context(), service.RegisterDriverInput{Name: req.Name, Phone: req.Phone})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, driverToResponse(driver), http.StatusCreated)
}

func (h *HTTPHandler) GetDriver(w http.ResponseWriter, r *http.Request) {
	driver, err := h.drivers.GetDriver(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, driverToResponse(driver), http.StatusOK)
}

func (h *HTTPHandler) GetActiveDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.drivers.GetActiveDrivers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	res := make([]DriverResponse, 0, len(drivers))
	for _, d := range drivers {
		res = append(res, driverToResponse(d))
	}
	utils.WriteJSON(w, res, http.StatusOK)
}

func (h *HTTPHandler) DeactivateDriver(w http.ResponseWriter, r *http.Request) {
	driver, err := h.drivers.DeactivateDriver(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, driverToResponse(driver), http.StatusOK)
}

func (h *HTTPHandler) GetDriverDeliveries(w http.ResponseWriter, r *http.Request) {
	deliveries, err := h.dispatch.GetDeliveriesByDriver(r.Context(), chi.URLParam(r, "driverID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, h.enrichDeliveries(r.Context(), deliveries), http.StatusOK)
}

func (h *HTTPHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterUserRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	user, err := h.users.RegisterUser(r.Context(), service.RegisterUserInput{
		Username:       req.Username,
		Email:          req.Email,
		HashedPassword: req.HashedPassword,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, userToResponse(user), http.StatusCreated)
}

func (h *HTTPHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, userToResponse(user), http.StatusOK)
}

func (h *HTTPHandler) UpdateUserLocation(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserLocationRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	user, err := h.users.ReportUserLocation(r.Context(), chi.URLParam(r, "id"), entities.UserLocation{
		Lat:      req.Lat,
		Lng:      req.Lng,
		Address:  req.Address,
		Accuracy: req.Accuracy,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, userToResponse(user), http.StatusOK)
}

func (h *HTTPHandler) UpdateUserBilling(w http.ResponseWriter, r *http.Request) {
	var req UpdateBillingRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	user, err := h.users.SetBillingRefs(r.Context(), chi.URLParam(r, "id"), req.CustomerID, req.SubscriptionID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, userToResponse(user), http.StatusOK)
}

func (h *HTTPHandler) GetUserDeliveries(w http.ResponseWriter, r *http.Request) {
	deliveries, err := h.dispatch.GetDeliveriesByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, h.enrichDeliveries(r.Context(), deliveries), http.StatusOK)
}

func (h *HTTPHandler) GetActiveUserDeliveries(w http.ResponseWriter, r *http.Request) {
	deliveries, err := h.dispatch.GetActiveDeliveriesByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, h.enrichDeliveries(r.Context(), deliveries), http.StatusOK)
}

// enrichDelivery attaches the driver record to a delivery response. A
// failed driver lookup degrades to the bare delivery rather than failing
// the whole request.
func (h *HTTPHandler) enrichDelivery(ctx context.Context, d entities.Delivery) DeliveryResponse {
	res := deliveryToResponse(d)
	if d.DriverID == "" {
		return res
	}
	driver, err := h.drivers.GetDriver(ctx, d.DriverID)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to resolve delivery driver",
			slog.String("delivery_id", d.ID),
			slog.String("driver_id", d.DriverID))
		return res
	}
	dr := driverToResponse(driver)
	res.Driver = &dr
	return res
}

func (h *HTTPHandler) enrichDeliveries(ctx context.Context, deliveries []entities.Delivery) []DeliveryResponse {
	res := make([]DeliveryResponse, 0, len(deliveries))
	for _, d := range deliveries {
		res = append(res, h.enrichDelivery(ctx, d))
	}
	return res
}

func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, entities.ErrValidation):
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, entities.ErrDeliveryNotFound),
		errors.Is(err, entities.ErrDriverNotFound),
		errors.Is(err, entities.ErrUserNotFound):
		utils.WriteError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, entities.ErrInvalidTransition),
		errors.Is(err, entities.ErrConflict):
		utils.WriteError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, entities.ErrNoDriverAvailable):
		utils.WriteError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		h.logger.ErrorContext(r.Context(), "request failed", slog.String("error", err.Error()))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
	}
}
