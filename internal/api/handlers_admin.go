package api

import (
	"net/http"
	"strconv"

	"matrix-board-platform/internal/matrix"

	"github.com/gin-gonic/gin"
)

// handleListMembers returns a page of members for the admin dashboard.
func (s *Server) handleListMembers(c *gin.Context) {
	limit := 50
	offset := 0
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	members, err := s.repo.ListMembers(c.Request.Context(), limit, offset)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to fetch members")
		return
	}
	successResponse(c, members)
}

// handlePendingWithdrawals lists unsettled payout requests.
func (s *Server) handlePendingWithdrawals(c *gin.Context) {
	reqs, err := s.repo.PendingWithdrawals(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to fetch pending withdrawals")
		return
	}

	views := make([]gin.H, 0, len(reqs))
	for _, w := range reqs {
		views = append(views, toWithdrawalView(w))
	}
	successResponse(c, views)
}

// handleSettleWithdrawal approves or cancels a pending withdrawal.
func (s *Server) handleSettleWithdrawal(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		errorResponse(c, http.StatusBadRequest, "Invalid withdrawal id")
		return
	}
	var req struct {
		Approve *bool `json:"approve" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "approve is required")
		return
	}

	if err := s.engine.SettleWithdrawal(c.Request.Context(), id, *req.Approve); err != nil {
		errorResponse(c, statusForError(err), err.Error())
		return
	}

	action := "cancelled"
	if *req.Approve {
		action = "approved"
	}
	successResponse(c, gin.H{"message": "Withdrawal " + action})
}

// handleRevenueSummary returns the platform revenue aggregate.
func (s *Server) handleRevenueSummary(c *gin.Context) {
	totals, err := s.engine.RevenueSummary(c.Request.Context())
	if err != nil {
		errorResponse(c, statusForError(err), err.Error())
		return
	}

	boardFees := make([]string, 0, len(totals.BoardFees))
	for _, f := range totals.BoardFees {
		boardFees = append(boardFees, f.StringFixed(2))
	}
	successResponse(c, gin.H{
		"total_fees":        totals.TotalFees.StringFixed(2),
		"board_fees":        boardFees,
		"total_withdrawals": totals.TotalWithdrawals.StringFixed(2),
		"updated_at":        totals.UpdatedAt,
	})
}

// handleBoardOccupancy reports seated member counts per board.
func (s *Server) handleBoardOccupancy(c *gin.Context) {
	counts, err := s.repo.BoardOccupancy(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "Failed to fetch board occupancy")
		return
	}

	occupancy := make([]gin.H, 0, matrix.MaxBoard)
	for board := 1; board <= matrix.MaxBoard; board++ {
		cfg, _ := matrix.BoardFor(board)
		occupancy = append(occupancy, gin.H{
			"board":  board,
			"name":   cfg.Name,
			"seated": counts[board],
		})
	}
	successResponse(c, occupancy)
}

// handleReconcileBoard recomputes a member's fill count from the live tree.
func (s *Server) handleReconcileBoard(c *gin.Context) {
	id, ok := memberIDParam(c)
	if !ok {
		return
	}
	board, ok := boardParam(c)
	if !ok {
		return
	}

	count, err := s.engine.ReconcileBoardCount(c.Request.Context(), id, board)
	if err != nil {
		errorResponse(c, statusForError(err), err.Error())
		return
	}
	if s.cacheSvc != nil {
		s.cacheSvc.InvalidateTree(c.Request.Context(), id, board)
	}
	successResponse(c, gin.H{"member_id": id, "board": board, "fill_count": count})
}
