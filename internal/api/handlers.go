package api

import (
	"errors"
	"net/http"
	"strconv"

	"matrix-board-platform/internal/matrix"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// memberView is the wire shape of a member. Structural pointers and payment
// internals stay server-side.
type memberView struct {
	ID             int64    `json:"id"`
	FullName       string   `json:"full_name"`
	RefID          string   `json:"ref_id"`
	SponsorID      *int64   `json:"sponsor_id,omitempty"`
	Active         bool     `json:"active"`
	PaymentStatus  string   `json:"payment_status"`
	PaymentOrderID string   `json:"payment_order_id"`
	Balance        string   `json:"balance"`
	Wallet         string   `json:"wallet"`
	RewardPoints   string   `json:"reward_points"`
	CurrentBoard   int      `json:"current_board"`
	CycleCount     int      `json:"cycle_count"`
	BoardCounts    []int    `json:"board_counts"`
	BoardEarnings  []string `json:"board_earnings"`
}

func toMemberView(m *matrix.Member) *memberView {
	if m == nil {
		return nil
	}
	v := &memberView{
		ID:             m.ID,
		FullName:       m.FullName,
		RefID:          m.RefID,
		SponsorID:      m.SponsorID,
		Active:         m.Active,
		PaymentStatus:  m.PaymentStatus,
		PaymentOrderID: m.PaymentOrderID,
		Balance:        m.Balance.StringFixed(2),
		Wallet:         m.Wallet.StringFixed(2),
		RewardPoints:   m.RewardPoints.StringFixed(2),
		CurrentBoard:   m.CurrentBoard,
		CycleCount:     m.CycleCount,
	}
	for i := range m.Boards {
		v.BoardCounts = append(v.BoardCounts, m.Boards[i].FillCount)
		v.BoardEarnings = append(v.BoardEarnings, m.Boards[i].Earned.StringFixed(2))
	}
	return v
}

// statusForError maps engine errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, matrix.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, matrix.ErrDuplicateReference),
		errors.Is(err, matrix.ErrAlreadyPlaced),
		errors.Is(err, matrix.ErrPendingWithdrawal):
		return http.StatusConflict
	case errors.Is(err, matrix.ErrInvalidAmount),
		errors.Is(err, matrix.ErrNotActive),
		errors.Is(err, matrix.ErrMissingSponsor),
		errors.Is(err, matrix.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, matrix.ErrSlotContention):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func memberIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		errorResponse(c, http.StatusBadRequest, "Invalid member id")
		return 0, false
	}
	return id, true
}

func boardParam(c *gin.Context) (int, bool) {
	board, err := strconv.Atoi(c.Param("board"))
	if err != nil || board < 1 || board > matrix.MaxBoard {
		errorResponse(c, http.StatusBadRequest, "Invalid board level")
		return 0, false
	}
	return board, true
}

// handleRegisterMember creates a pending member under a sponsor's referral
// code.
func (s *Server) handleRegisterMember(c *gin.Context) {
	var req struct {
		FullName   string `json:"full_name" binding:"required"`
		SponsorRef string `json:"sponsor_ref"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "full_name is required")
		return
	}

	m, err := s.engine.RegisterMember(c.Request.Context(), req.FullName, req.SponsorRef)
	if err != nil {
		errorResponse(c, statusForError(err), err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": toMemberView(m)})
}

func (s *Server) handleGetMember(c *gin.Context) {
	id, ok := memberIDParam(c)
	if !ok {
		return
	}
	m, err := s.engine.MemberByID(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, statusForError(err), err.Error())
		return
	}
	successResponse(c, toMemberView(m))
}

func (s *Server) handleGetMemberByRef(c *gin.Context) {
	m, err := s.engine.MemberByRefID(c.Request.Context(), c.Param("ref_id"))
	if err != nil {
		errorResponse(c, statusForError(err), err.Error())
		return
	}
	successResponse(c, toMemberView(m))
}

// handleSubmitPaymentReference records the member's claimed payment
// identifier.
func (s *Server) handleSubmitPaymentReference(c *gin.Context) {
	id, ok := memberIDParam(c)
	if !ok {
		return
	}
	var req struct {
		Reference string `json:"reference" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "reference is required")
		return
	}

	if err := s.engine.SubmitPaymentReference(c.Request.Context(), id, req.Reference); err != nil {
		errorResponse(c, statusForError(err), err.Error())
		return
	}
	successResponse(c, gin.H{"message": "Payment reference recorded"})
}

// handleActivateMember confirms the member's payment and seats them on
// board 1. Placement can cascade payline bonuses and cycles upstream.
func (s *Server) handleActivateMember(c *gin.Context) {
	id, ok := memberIDParam(c)
	if !ok {
		return
	}
	if err := s.engine.ActivateMember(c.Request.Context(), id); err != nil {
		errorResponse(c, statusForError(err), err.Error())
		return
	}

	// Structural state changed anywhere up the tree; drop this member's
	// snapshots and let reads repopulate.
	if s.cacheSvc != nil {
		s.cacheSvc.InvalidateMember(c.Request.Context(), id, matrix.MaxBoard)
	}
	successResponse(c, gin.H{"message": "Member activated"})
}

// handleGetBoardTree returns the member's 2x2 matrix snapshot on a board,
// served from cache when available.
func (s *Server) handleGetBoardTree(c *gin.Context) {
	id, ok := memberIDParam(c)
	if !ok {
		return
	}
	board, ok := boardParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if s.cacheSvc != nil {
		var cached treeView
		if err := s.cacheSvc.GetTree(ctx, id, board, &cached); err == nil {
			successResponse(c, &cached)
			return
		}
	}

	tree, err := s.engine.GetBoardTree(ctx, id, board)
	if err != nil {
		errorResponse(c, statusForError(err), err.Error())
		return
	}

	view := toTreeView(tree)
	if s.cacheSvc != nil {
		s.cacheSvc.SetTree(ctx, id, board, view)
	}
	successResponse(c, view)
}

// treeView is the wire shape of a board tree snapshot.
type treeView struct {
	Board  int       `json:"board"`
	Name   string    `json:"name"`
	Filled int       `json:"filled"`
	Target int       `json:"target"`
	Root   *slotView `json:"root"`
	Left   *slotView `json:"left"`
	Right  *slotView `json:"right"`
	LL     *slotView `json:"ll"`
	LR     *slotView `json:"lr"`
	RL     *slotView `json:"rl"`
	RR     *slotView `json:"rr"`
}

type slotView struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	RefID    string `json:"ref_id"`
}

func toSlotView(m *matrix.Member) *slotView {
	if m == nil {
		return nil
	}
	return &slotView{ID: m.ID, FullName: m.FullName, RefID: m.RefID}
}

func toTreeView(t *matrix.BoardTree) *treeView {
	return &treeView{
		Board:  t.Board,
		Name:   t.Name,
		Filled: t.Filled,
		Target: t.Target,
		Root:   toSlotView(t.Root),
		Left:   toSlotView(t.Left),
		Right:  toSlotView(t.Right),
		LL:     toSlotView(t.LL),
		LR:     toSlotView(t.LR),
		RL:     toSlotView(t.RL),
		RR:     toSlotView(t.RR),
	}
}

// handleGetLedger returns the member's transaction history, newest first.
func (s *Server) handleGetLedger(c *gin.Context) {
	id, ok := memberIDParam(c)
	if !ok {
		return
	}
	entries, err := s.engine.MemberLedger(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, statusForError(err), err.Error())
		return
	}

	views := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		views = append(views, gin.H{
			"id":         e.ID,
			"kind":       e.Kind,
			"amount":     e.Amount.StringFixed(2),
			"memo":       e.Memo,
			"created_at": e.CreatedAt,
		})
	}
	successResponse(c, views)
}

// handleRequestWithdrawal opens a payout request against the member's
// wallet.
func (s *Server) handleRequestWithdrawal(c *gin.Context) {
	id, ok := memberIDParam(c)
	if !ok {
		return
	}
	var req struct {
		Amount      string `json:"amount" binding:"required"`
		Destination string `json:"destination" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "amount and destination are required")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid amount")
		return
	}

	w, err := s.engine.RequestWithdrawal(c.Request.Context(), id, amount, req.Destination)
	if err != nil {
		errorResponse(c, statusForError(err), err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": toWithdrawalView(w)})
}

func (s *Server) handleGetWithdrawals(c *gin.Context) {
	id, ok := memberIDParam(c)
	if !ok {
		return
	}
	reqs, err := s.engine.MemberWithdrawals(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, statusForError(err), err.Error())
		return
	}

	views := make([]gin.H, 0, len(reqs))
	for _, w := range reqs {
		views = append(views, toWithdrawalView(w))
	}
	successResponse(c, views)
}

func toWithdrawalView(w *matrix.WithdrawalRequest) gin.H {
	return gin.H{
		"id":          w.ID,
		"member_id":   w.MemberID,
		"amount":      w.Amount.StringFixed(2),
		"fee":         w.Fee.StringFixed(2),
		"net_amount":  w.NetAmount.StringFixed(2),
		"destination": w.Destination,
		"status":      w.Status,
		"created_at":  w.CreatedAt,
	}
}
