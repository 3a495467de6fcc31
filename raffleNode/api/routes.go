package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/solraffle/raffle-node/raffleNode/metrics"
)

// setupRoutes configures all HTTP routes for the API server.
//
// /api routes are registered on the root router rather than a PathPrefix
// subrouter: a subrouter reports a wrong method as 404, the root router
// answers 405.
func (s *Server) setupRoutes() *mux.Router {
	router := mux.NewRouter()
	router.Use(recoverer(s.logger), accessLog(s.logger))
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
	})
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
	})

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := func(path string, h http.Handler, methods ...string) {
		router.Handle("/api"+path, s.rateLimit(h)).Methods(methods...)
	}
	post := func(path string, h http.HandlerFunc) { api(path, h, http.MethodPost) }
	get := func(path string, h http.HandlerFunc) { api(path, h, http.MethodGet) }
	auto := func(path string, h http.HandlerFunc) {
		api(path, s.requireCronSecret(h), http.MethodGet, http.MethodPost)
	}

	// Raffle lifecycle
	post("/raffle/create", s.handleCreateRaffle)
	post("/raffle/deposit", s.handleSubmitDeposit)
	post("/raffle/delete", s.handleDeleteRaffle)
	post("/raffle/activate/force", s.handleForceActivate)
	post("/raffle/draw", s.handleDraw)
	post("/raffle/payout", s.handlePayoutCreator)
	post("/raffle/payout/winner", s.handlePayoutWinner)
	post("/raffle/ticket/buy", s.handleBuyTicket)
	get("/raffle/priority/check", s.handlePriorityCheck)

	// Cron triggers
	auto("/raffle/activate/auto", s.handleAutoActivate)
	auto("/raffle/draw/auto", s.handleAutoDraw)
	auto("/raffle/payout/auto", s.handleAutoPayout)
	auto("/raffle/refund/auto", s.handleAutoRefund)
	auto("/raffle/reconcile/auto", s.handleAutoReconcile)

	// Creators
	get("/creators", s.handleListCreators)
	post("/creators/approve", s.handleApproveCreator)
	post("/creators/revoke", s.handleRevokeCreator)
	post("/creators/display-name", s.handleUpdateCreatorName)

	// Queries
	get("/raffles", s.handleListRaffles)
	get("/raffles/{id}", s.handleGetRaffle)
	get("/raffles/{id}/tickets", s.handleRaffleTickets)
	get("/raffles/{id}/payouts", s.handleRafflePayouts)
	get("/raffles/{id}/odds", s.handleWinOdds)
	get("/wallets/{wallet}/tickets", s.handleWalletTickets)
	get("/winners", s.handleWinners)
	get("/v1/stats", s.handleStats)

	return router
}
