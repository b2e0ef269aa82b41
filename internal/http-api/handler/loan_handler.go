package handler

import (
	"net/http"
	"time"

	"libtrack/internal/http-api/dto"
	"libtrack/internal/http-api/middleware"
	"libtrack/internal/http-api/models"
	"libtrack/internal/http-api/service"

	"github.com/gin-gonic/gin"
)

type LoanHandler struct {
	svc service.LendingService
}

func NewLoanHandler(svc service.LendingService) *LoanHandler {
	return &LoanHandler{svc: svc}
}

func (h *LoanHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Borrow)
	rg.POST("/:loan_id/return", h.Return)
	rg.GET("", h.List)
}

func (h *LoanHandler) Borrow(c *gin.Context) {
	var req dto.BorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	loan, err := h.svc.Borrow(c.Request.Context(), c.GetString("userID"), req.BookID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.loanResponse(loan))
}

func (h *LoanHandler) Return(c *gin.Context) {
	loan, err := h.svc.Return(c.Request.Context(), middleware.Actor(c), c.Param("loan_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.loanResponse(loan))
}

// List returns the caller's own loans, open and closed, most recent first.
func (h *LoanHandler) List(c *gin.Context) {
	loans, err := h.svc.ListForUser(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]dto.LoanResponse, 0, len(loans))
	for i := range loans {
		responses = append(responses, *h.loanResponse(&loans[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"loans": responses,
		"total": len(responses),
	})
}

func (h *LoanHandler) loanResponse(loan *models.Loan) *dto.LoanResponse {
	now := time.Now()
	return &dto.LoanResponse{
		ID:           loan.ID,
		BookID:       loan.BookID,
		UserID:       loan.UserID,
		IssueDate:    loan.IssueDate,
		DueDate:      loan.DueDate,
		ReturnDate:   loan.ReturnDate,
		Status:       loan.Status(),
		DaysUntilDue: h.svc.DaysUntilDue(loan, now),
		Fine:         h.svc.AccruedFine(loan, now),
		Book:         loan.Book,
	}
}
