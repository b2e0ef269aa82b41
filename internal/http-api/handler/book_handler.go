package handler

import (
	"net/http"

	"libtrack/internal/http-api/dto"
	"libtrack/internal/http-api/middleware"
	"libtrack/internal/http-api/models"
	"libtrack/internal/http-api/service"

	"github.com/gin-gonic/gin"
)

type BookHandler struct {
	svc service.CatalogService
}

func NewBookHandler(svc service.CatalogService) *BookHandler {
	return &BookHandler{svc: svc}
}

func (h *BookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	// Public catalog routes
	rg.GET("", h.List)
	rg.GET("/categories", h.Categories)
	rg.GET("/:book_id", h.Get)

	// Admin-only routes
	rg.POST("", middleware.RequireAdmin(), h.Create)
	rg.PUT("/:book_id", middleware.RequireAdmin(), h.Update)
	rg.DELETE("/:book_id", middleware.RequireAdmin(), h.Delete)
}

// List returns the catalog, optionally narrowed by ?q= search and ?category=.
func (h *BookHandler) List(c *gin.Context) {
	query := c.Query("q")
	if category := c.Query("category"); category != "" {
		query = query + " " + category
	}

	books, err := h.svc.Search(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"books": books,
		"total": len(books),
	})
}

func (h *BookHandler) Categories(c *gin.Context) {
	categories, err := h.svc.Categories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (h *BookHandler) Get(c *gin.Context) {
	book, err := h.svc.Get(c.Request.Context(), c.Param("book_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *BookHandler) Create(c *gin.Context) {
	var req dto.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	book, err := h.svc.Create(c.Request.Context(), middleware.Actor(c), bookFromRequest(&req))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

func (h *BookHandler) Update(c *gin.Context) {
	var req dto.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	book, err := h.svc.Update(c.Request.Context(), middleware.Actor(c), c.Param("book_id"), bookFromRequest(&req))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *BookHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.Actor(c), c.Param("book_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "book deleted"})
}

func bookFromRequest(req *dto.BookRequest) *models.Book {
	return &models.Book{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		Category:      req.Category,
		Total:         req.Total,
		CoverImage:    req.CoverImage,
		PublishedYear: req.PublishedYear,
		Description:   req.Description,
	}
}
