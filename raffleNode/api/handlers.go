package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/solraffle/raffle-node/raffleNode/authz"
	"github.com/solraffle/raffle-node/raffleNode/engine"
	rerrors "github.com/solraffle/raffle-node/raffleNode/errors"
	"github.com/solraffle/raffle-node/raffleNode/raffle"
	"github.com/solraffle/raffle-node/raffleNode/rafflestore"
)

const maxBodyBytes = 1 << 20

// Actions signed by privileged callers.
const (
	ActionCreate         = "create"
	ActionDeposit        = "deposit"
	ActionDelete         = "delete"
	ActionActivate       = "activate"
	ActionDraw           = "draw"
	ActionPayout         = "payout"
	ActionPayoutWinner   = "payout-winner"
	ActionBuy            = "buy"
	ActionApproveCreator = "approve-creator"
	ActionRevokeCreator  = "revoke-creator"
	ActionRenameCreator  = "rename-creator"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int, fields map[string]interface{}) {
	body := map[string]interface{}{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := rerrors.HTTPStatus(err)
	severity := rerrors.GetSeverity(err)
	var ev *zerolog.Event
	switch severity {
	case rerrors.SeverityCritical, rerrors.SeverityHigh:
		ev = s.logger.Error()
	case rerrors.SeverityMedium:
		ev = s.logger.Warn()
	default:
		ev = s.logger.Debug()
	}
	ev.Err(err).Str("path", r.URL.Path).Int("status", status).Str("severity", string(severity)).Msg("request failed")
	writeJSON(w, status, ErrorResponse{Error: rerrors.PublicMessage(err)})
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return rerrors.New(rerrors.ErrCodeValidation, "invalid request body", err)
	}
	return nil
}

func required(msg string) error {
	return rerrors.New(rerrors.ErrCodeValidation, msg, nil)
}

// authorize checks the signed envelope for action on subject. With no roles
// only the signature is checked.
func (s *Server) authorize(r *http.Request, env SignedRequest, action, subject string, roles ...authz.Role) error {
	req := authz.Request{
		Wallet:    env.Wallet,
		Timestamp: env.Timestamp,
		Signature: env.Signature,
		Action:    action,
		RaffleID:  subject,
	}
	if len(roles) == 0 {
		return s.auth.Authenticate(req)
	}
	return s.auth.Authorize(r.Context(), req, roles...)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleCreateRaffle handles POST /api/raffle/create
func (s *Server) handleCreateRaffle(w http.ResponseWriter, r *http.Request) {
	var req createRaffleRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.CreatorWallet == "" {
		req.CreatorWallet = req.Wallet
	}
	if req.CreatorWallet != req.Wallet {
		s.writeError(w, r, rerrors.New(rerrors.ErrCodeForbidden, "raffles can only be created for the signing wallet", nil))
		return
	}

	roles := []authz.Role{authz.RoleAdmin, authz.RoleCreator}
	if raffle.Type(req.RaffleType) == raffle.TypeOfficial {
		roles = []authz.Role{authz.RoleAdmin}
	}
	if err := s.authorize(r, req.SignedRequest, ActionCreate, "", roles...); err != nil {
		s.writeError(w, r, err)
		return
	}

	created, err := s.engine.CreateRaffle(r.Context(), engine.CreateRequest{
		CreateParams: raffle.CreateParams{
			CreatorWallet: req.CreatorWallet,
			RaffleType:    raffle.Type(req.RaffleType),
			IsFree:        req.IsFree,
			Prize:         req.PrizeLamports,
			TicketPrice:   req.TicketPriceLamports,
			MaxTickets:    req.MaxTickets,
			DurationHours: req.DurationHours,
		},
		DisplayName:      req.DisplayName,
		DepositSignature: req.DepositSignature,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]interface{}{"raffle": raffleView(created)})
}

// handleSubmitDeposit handles POST /api/raffle/deposit
func (s *Server) handleSubmitDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.RaffleID == "" || req.DepositSignature == "" {
		s.writeError(w, r, required("raffleId and depositSignature are required"))
		return
	}
	if err := s.authorize(r, req.SignedRequest, ActionDeposit, req.RaffleID); err != nil {
		s.writeError(w, r, err)
		return
	}

	updated, err := s.engine.SubmitDeposit(r.Context(), req.RaffleID, req.Wallet, req.DepositSignature)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"raffle": raffleView(updated)})
}

// decodeAdminAction decodes a {raffleId} body signed for action by a wallet
// holding one of roles.
func (s *Server) decodeAdminAction(w http.ResponseWriter, r *http.Request, action string, roles ...authz.Role) (string, bool) {
	var req raffleIDRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return "", false
	}
	if req.RaffleID == "" {
		s.writeError(w, r, required("raffleId is required"))
		return "", false
	}
	if err := s.authorize(r, req.SignedRequest, action, req.RaffleID, roles...); err != nil {
		s.writeError(w, r, err)
		return "", false
	}
	s.logger.Info().Str("action", action).Str("raffle_id", req.RaffleID).Str("wallet", req.Wallet).Msg("privileged request accepted")
	return req.RaffleID, true
}

// handleDeleteRaffle handles POST /api/raffle/delete
func (s *Server) handleDeleteRaffle(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeAdminAction(w, r, ActionDelete, authz.RoleAdmin)
	if !ok {
		return
	}
	if err := s.engine.DeleteRaffle(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"message": "raffle deleted"})
}

// handleForceActivate handles POST /api/raffle/activate/force
func (s *Server) handleForceActivate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeAdminAction(w, r, ActionActivate, authz.RoleAdmin)
	if !ok {
		return
	}
	activated, err := s.engine.ForceActivate(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"message": "raffle activated",
		"raffle":  raffleView(activated),
	})
}

// handleDraw handles POST /api/raffle/draw
func (s *Server) handleDraw(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeAdminAction(w, r, ActionDraw, authz.RoleAdmin)
	if !ok {
		return
	}
	res, err := s.engine.Draw(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"winner":    res.Winner,
		"signature": res.PrizeSignature,
		"result":    res,
	})
}

// handlePayoutWinner handles POST /api/raffle/payout/winner
func (s *Server) handlePayoutWinner(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeAdminAction(w, r, ActionPayoutWinner, authz.RoleAdmin)
	if !ok {
		return
	}
	p, err := s.engine.PayoutWinner(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"signature": p.TxSignature,
		"payout":    payoutView(p),
	})
}

// handlePayoutCreator handles POST /api/raffle/payout
func (s *Server) handlePayoutCreator(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeAdminAction(w, r, ActionPayout, authz.RoleOwner)
	if !ok {
		return
	}
	res, err := s.engine.PayoutCreator(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"payoutAmount": res.PayoutLamports,
		"signature":    res.Signature,
		"payout":       res,
	})
}

// handleBuyTicket handles POST /api/raffle/ticket/buy
func (s *Server) handleBuyTicket(w http.ResponseWriter, r *http.Request) {
	var req buyTicketRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.RaffleID == "" || req.UserWallet == "" || req.Quantity == 0 {
		s.writeError(w, r, required("missing required fields"))
		return
	}

	target, err := s.engine.GetRaffle(r.Context(), req.RaffleID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// Paid tickets are proven by the on-chain payment; free tickets need the
	// wallet's signature instead.
	if target.IsFree {
		if req.Wallet != req.UserWallet {
			s.writeError(w, r, rerrors.New(rerrors.ErrCodeUnauthorized, "free tickets must be signed by the buying wallet", nil))
			return
		}
		if err := s.authorize(r, req.SignedRequest, ActionBuy, req.RaffleID); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	entry, err := s.engine.BuyTicket(r.Context(), engine.BuyRequest{
		RaffleID:    req.RaffleID,
		Wallet:      req.UserWallet,
		Quantity:    req.Quantity,
		TxSignature: req.TxSignature,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"entry": entryView(entry)})
}

// handlePriorityCheck handles GET /api/raffle/priority/check?wallet=<wallet>
func (s *Server) handlePriorityCheck(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("wallet")
	writeJSON(w, http.StatusOK, map[string]bool{"isPriority": wallet != "" && s.engine.IsPriorityWallet(wallet)})
}

// handleAutoActivate handles GET /api/raffle/activate/auto
func (s *Server) handleAutoActivate(w http.ResponseWriter, r *http.Request) {
	results, err := s.engine.VerifyDeposits(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"results": results})
}

// handleAutoDraw handles GET /api/raffle/draw/auto
func (s *Server) handleAutoDraw(w http.ResponseWriter, r *http.Request) {
	results, err := s.engine.DrawDue(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"results": results})
}

// handleAutoPayout handles GET /api/raffle/payout/auto
func (s *Server) handleAutoPayout(w http.ResponseWriter, r *http.Request) {
	results, err := s.engine.PayoutDue(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"results": results})
}

// handleAutoRefund handles GET /api/raffle/refund/auto
func (s *Server) handleAutoRefund(w http.ResponseWriter, r *http.Request) {
	results, err := s.engine.ProcessRefunds(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"results": results})
}

// handleAutoReconcile handles GET /api/raffle/reconcile/auto
func (s *Server) handleAutoReconcile(w http.ResponseWriter, r *http.Request) {
	if s.reconciler == nil {
		s.writeError(w, r, rerrors.New(rerrors.ErrCodeConfig, "payout reconciliation is not configured", nil))
		return
	}
	res, err := s.reconciler.Reconcile(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"result": res})
}

func (s *Server) decodeCreatorRequest(w http.ResponseWriter, r *http.Request, action string) (creatorRequest, bool) {
	var req creatorRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return req, false
	}
	if req.CreatorWallet == "" {
		s.writeError(w, r, required("creatorWallet is required"))
		return req, false
	}
	if err := s.authorize(r, req.SignedRequest, action, req.CreatorWallet, authz.RoleAdmin); err != nil {
		s.writeError(w, r, err)
		return req, false
	}
	return req, true
}

// handleApproveCreator handles POST /api/creators/approve
func (s *Server) handleApproveCreator(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCreatorRequest(w, r, ActionApproveCreator)
	if !ok {
		return
	}
	c, err := s.engine.ApproveCreator(r.Context(), req.CreatorWallet, req.Wallet, req.DisplayName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"creator": creatorView(c)})
}

// handleRevokeCreator handles POST /api/creators/revoke
func (s *Server) handleRevokeCreator(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCreatorRequest(w, r, ActionRevokeCreator)
	if !ok {
		return
	}
	if err := s.engine.RevokeCreator(r.Context(), req.CreatorWallet); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"message": "creator revoked"})
}

// handleUpdateCreatorName handles POST /api/creators/display-name
// A creator may rename itself; anyone else needs the admin role.
func (s *Server) handleUpdateCreatorName(w http.ResponseWriter, r *http.Request) {
	var req creatorRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.CreatorWallet == "" {
		s.writeError(w, r, required("creatorWallet is required"))
		return
	}
	if req.DisplayName == "" {
		s.writeError(w, r, required("displayName is required"))
		return
	}
	roles := []authz.Role{authz.RoleAdmin}
	if req.Wallet == req.CreatorWallet {
		roles = append(roles, authz.RoleCreator)
	}
	if err := s.authorize(r, req.SignedRequest, ActionRenameCreator, req.CreatorWallet, roles...); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.engine.UpdateCreatorName(r.Context(), req.CreatorWallet, req.DisplayName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"creator": creatorView(c)})
}

// handleListCreators handles GET /api/creators?active=<bool>
func (s *Server) handleListCreators(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") != "false"
	creators, err := s.engine.ListCreators(r.Context(), activeOnly)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]CreatorView, 0, len(creators))
	for i := range creators {
		out = append(out, creatorView(&creators[i]))
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"creators": out})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, rerrors.Newf(rerrors.ErrCodeValidation, "%s must be a non-negative integer", key)
	}
	return n, nil
}

// handleListRaffles handles GET /api/raffles?status=&creator=&sort=&limit=&offset=
func (s *Server) handleListRaffles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := rafflestore.RaffleFilter{Creator: q.Get("creator"), Sort: q.Get("sort")}
	if st := q.Get("status"); st != "" {
		status, err := raffle.ParseStatus(st)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		f.Status = status
	}
	var err error
	if f.Limit, err = queryInt(r, "limit", 50); err != nil {
		s.writeError(w, r, err)
		return
	}
	if f.Offset, err = queryInt(r, "offset", 0); err != nil {
		s.writeError(w, r, err)
		return
	}

	raffles, err := s.engine.ListRaffles(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"raffles": raffleViews(raffles)})
}

// handleGetRaffle handles GET /api/raffles/{id}
func (s *Server) handleGetRaffle(w http.ResponseWriter, r *http.Request) {
	found, err := s.engine.GetRaffle(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"raffle": raffleView(found)})
}

// handleRaffleTickets handles GET /api/raffles/{id}/tickets
func (s *Server) handleRaffleTickets(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.ListEntries(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"tickets": entryViews(entries)})
}

// handleWinOdds handles GET /api/raffles/{id}/odds?wallet=<wallet>
func (s *Server) handleWinOdds(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("wallet")
	if wallet == "" {
		s.writeError(w, r, required("wallet is required"))
		return
	}
	odds, err := s.engine.WinOdds(r.Context(), mux.Vars(r)["id"], wallet)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"odds": odds})
}

// handleRafflePayouts handles GET /api/raffles/{id}/payouts
func (s *Server) handleRafflePayouts(w http.ResponseWriter, r *http.Request) {
	payouts, err := s.engine.Payouts(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]PayoutView, 0, len(payouts))
	for i := range payouts {
		out = append(out, payoutView(&payouts[i]))
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"payouts": out})
}

// handleWalletTickets handles GET /api/wallets/{wallet}/tickets
func (s *Server) handleWalletTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := s.engine.WalletTickets(r.Context(), mux.Vars(r)["wallet"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"tickets": walletTicketViews(tickets)})
}

// handleWinners handles GET /api/winners?limit=<n>
func (s *Server) handleWinners(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	winners, err := s.engine.Winners(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"winners": raffleViews(winners)})
}

// handleStats handles GET /api/v1/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.cache.IsStale(s.statsAge) {
		// Cold cache, or the stats job has stopped refreshing it.
		stats, err := s.engine.Stats(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.cache.UpdateStats(stats)
	}
	snap := s.cache.Stats()

	writeJSON(w, http.StatusOK, QueryResponse{
		Data:        snap.Stats,
		LastFetched: snap.UpdatedAt,
	})
}
