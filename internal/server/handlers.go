package server

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lox/blackjack/internal/auth"
	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/gateway"
	"github.com/lox/blackjack/internal/protocol"
	"github.com/lox/blackjack/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.Health{Status: "ok", Timestamp: s.clock.Now().UTC()})
}

func (s *Server) handleDeal(w http.ResponseWriter, r *http.Request) {
	var req protocol.Deal
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !auth.Authorize(r.Context(), req.UserID) {
		writeError(w, blackjack.ErrUnauthenticated)
		return
	}

	view, err := s.gw.Deal(r.Context(), dealRequest(req))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.NewEnvelope(view))
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req protocol.Action
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !auth.Authorize(r.Context(), req.UserID) {
		writeError(w, blackjack.ErrUnauthenticated)
		return
	}

	view, err := s.gw.Apply(r.Context(), actionRequest(req))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.NewEnvelope(view))
}

// handleGetGame returns a game. The userId query parameter, or the
// authenticated player, restricts it to its owner.
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if id := auth.FromContext(r.Context()); id != nil {
		userID = id.PlayerID
	}

	view, err := s.gw.Game(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.NewEnvelope(view))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if !auth.Authorize(r.Context(), userID) {
		writeError(w, blackjack.ErrUnauthenticated)
		return
	}

	balance, err := s.gw.Balance(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.User{ID: userID, Balance: balance})
}

// handleCurrentUser returns the authenticated player's account, else the
// userId query parameter's, else the demo account. Accounts open on first
// use.
func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if id := auth.FromContext(r.Context()); id != nil {
		userID = id.PlayerID
	}

	player, err := s.gw.Player(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.User{ID: player.ID, Balance: player.Balance})
}

func (s *Server) handleSetBalance(w http.ResponseWriter, r *http.Request) {
	var req protocol.BalanceUpdate
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Balance == nil {
		writeError(w, blackjack.ErrMissingField)
		return
	}
	userID := req.UserID
	if userID == "" {
		userID = gateway.DemoPlayerID
	}

	balance, err := s.gw.SetBalance(r.Context(), userID, *req.Balance)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.Account{Success: true, ID: userID, Balance: balance})
}

func (s *Server) handleAdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req protocol.BalanceAdjustment
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Amount == nil {
		writeError(w, blackjack.ErrMissingField)
		return
	}
	typ, err := gateway.ParseAdjustmentType(req.Type)
	if err != nil {
		writeError(w, err)
		return
	}

	userID := chi.URLParam(r, "id")
	balance, err := s.gw.AdjustBalance(r.Context(), gateway.Adjustment{UserID: userID, Amount: *req.Amount, Type: typ})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.Account{
		Success: true,
		ID:      userID,
		Balance: balance,
		Amount:  req.Amount,
		Type:    string(typ),
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := paging(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := s.gw.Players(r.Context(), store.PlayerQuery{Limit: limit, Offset: offset})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.NewUsers(page))
}

// handleHistory lists settled games. Filters: userId, result (or
// resultFilter), limit, and offset or page.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q, err := historyQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if id := auth.FromContext(r.Context()); id != nil {
		if q.PlayerID != "" && q.PlayerID != id.PlayerID {
			writeError(w, blackjack.ErrUnauthenticated)
			return
		}
		q.PlayerID = id.PlayerID
	}

	page, err := s.gw.History(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.NewHistory(page))
}

func historyQuery(r *http.Request) (store.HistoryQuery, error) {
	params := r.URL.Query()
	q := store.HistoryQuery{PlayerID: params.Get("userId")}

	filter := params.Get("result")
	if filter == "" {
		filter = params.Get("resultFilter")
	}
	result, err := store.ParseResultFilter(filter)
	if err != nil {
		return q, blackjack.Wrap(blackjack.ErrInvalidFilter, err)
	}
	q.Result = result

	q.Limit, q.Offset, err = paging(params)
	return q, err
}

// paging reads limit and offset, or page (1-based) when offset is absent.
func paging(params url.Values) (limit, offset int, err error) {
	intParam := func(name string) (int, error) {
		v := params.Get(name)
		if v == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, blackjack.Wrap(blackjack.ErrInvalidFilter, strconv.ErrSyntax)
		}
		return n, nil
	}
	if limit, err = intParam("limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = intParam("offset"); err != nil {
		return 0, 0, err
	}
	page, err := intParam("page")
	if err != nil {
		return 0, 0, err
	}
	if page > 0 && offset == 0 {
		size := limit
		if size == 0 {
			size = store.DefaultHistoryLimit
		}
		offset = (page - 1) * size
	}
	return limit, offset, nil
}

func dealRequest(req protocol.Deal) gateway.DealRequest {
	return gateway.DealRequest{UserID: req.UserID, Bet: req.BetAmount, RequestID: req.RequestID}
}

func actionRequest(req protocol.Action) gateway.Request {
	out := gateway.Request{
		GameID:    req.GameID,
		Action:    req.Action,
		UserID:    req.UserID,
		RequestID: req.RequestID,
	}
	if req.Payload != nil {
		out.Payload = *req.Payload
	}
	return out
}
