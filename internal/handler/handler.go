package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"library-backend/internal/errs"
	"library-backend/internal/model"
	md "library-backend/pkg/middleware"
	"library-backend/pkg/validate"
)

type Handler struct {
	borrowingSvc BorrowingService
	bookSvc      BookService
	log          *zap.Logger
}

func New(borrowingSvc BorrowingService, bookSvc BookService, log *zap.Logger) *Handler {
	return &Handler{
		borrowingSvc: borrowingSvc,
		bookSvc:      bookSvc,
		log:          log,
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig(h.log)),
		middleware.RequestID(),
		md.NewRateLimiter(apiRPS),
	)

	api.GET("/borrowings", h.ListBorrowings)
	api.GET("/borrowings/check", h.CheckStatus)
	api.GET("/borrowings/:userId", h.ListUserBorrowings)
	api.POST("/borrowings", h.BorrowBook)
	api.PUT("/borrowings/:id", h.ReturnBook)
	api.DELETE("/borrowings/:id", h.RemoveBorrowing)

	api.GET("/books", h.ListBooks)
	api.GET("/books/:id", h.GetBook)
	api.POST("/books", h.CreateBook)
	api.PUT("/books/:id", h.UpdateBook)
	api.DELETE("/books/:id", h.DeleteBook)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) BorrowBook(c echo.Context) error {
	var req model.BorrowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	br, err := h.borrowingSvc.BorrowBook(c.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, errs.ErrAlreadyBorrowed), errors.Is(err, errs.ErrNoCopies):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, br)
}

type confirmResponse struct {
	Message string            `json:"message"`
	Book    model.BookSummary `json:"book"`
}

func (h *Handler) ReturnBook(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "id is empty")
	}
	book, err := h.borrowingSvc.ReturnBook(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, confirmResponse{Message: "book returned", Book: book})
}

func (h *Handler) RemoveBorrowing(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "id is empty")
	}
	book, err := h.borrowingSvc.RemoveBorrowing(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, confirmResponse{Message: "borrowing removed", Book: book})
}

func (h *Handler) CheckStatus(c echo.Context) error {
	bookID := c.QueryParam("bookId")
	userID := c.QueryParam("userId")
	if bookID == "" || userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bookId and userId are required")
	}
	status, err := h.borrowingSvc.CheckStatus(c.Request().Context(), bookID, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, status)
}

func (h *Handler) ListBorrowings(c echo.Context) error {
	items, err := h.borrowingSvc.ListBorrowings(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListUserBorrowings(c echo.Context) error {
	userID := c.Param("userId")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "userId is empty")
	}
	items, err := h.borrowingSvc.ListUserBorrowings(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}
