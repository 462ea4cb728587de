package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"agentpay/internal/amount"
	"agentpay/internal/domain"
	"agentpay/internal/fault"
)

// Server routes JSON requests to the underlying services. Session
// management endpoints exercise the configured owner signer; transfer and
// balance endpoints never touch it.
type Server struct {
	accounts  domain.AccountService
	sessions  domain.SessionService
	transfers domain.TransferService
	balances  domain.BalanceService
	owner     domain.OwnerSigner
	mux       *http.ServeMux
}

// NewServer builds the route table over the given services.
func NewServer(accounts domain.AccountService, sessions domain.SessionService, transfers domain.TransferService, balances domain.BalanceService, owner domain.OwnerSigner) *Server {
	s := &Server{
		accounts:  accounts,
		sessions:  sessions,
		transfers: transfers,
		balances:  balances,
		owner:     owner,
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /account/{identity}", s.handleAccount)
	s.mux.HandleFunc("POST /session/install", s.handleInstall)
	s.mux.HandleFunc("POST /session/rotate", s.handleRotate)
	s.mux.HandleFunc("POST /session/revoke", s.handleRevoke)
	s.mux.HandleFunc("POST /transfer/native", s.handleNative)
	s.mux.HandleFunc("POST /transfer/token", s.handleToken)
	s.mux.HandleFunc("GET /balance/{address}", s.handleBalance)
	return s
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler { return s.mux }

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

type errorBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeError maps a classified fault to its HTTP status. The error string
// travels as-is; secret material never reaches error paths upstream.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch fault.KindOf(err) {
	case fault.InvalidInput:
		status = http.StatusBadRequest
	case fault.AuthorizationRejected:
		status = http.StatusForbidden
	case fault.PolicyViolation:
		status = http.StatusUnprocessableEntity
	case fault.NetworkUnavailable:
		status = http.StatusBadGateway
	case fault.UnknownOutcome:
		status = http.StatusGatewayTimeout
	}
	writeJSON(w, status, errorBody{OK: false, Error: err.Error(), Kind: fault.KindOf(err).String()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeError(w, fault.Wrap(fault.InvalidInput, "httpapi.decode", err))
		return false
	}
	return true
}

type accountResponse struct {
	Address  common.Address `json:"address"`
	Slot     uint64         `json:"slot"`
	Deployed bool           `json:"deployed"`
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	identity := domain.Identity(r.PathValue("identity"))
	acct, err := s.accounts.ResolveAddress(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{
		Address:  acct.Address,
		Slot:     uint64(acct.Slot),
		Deployed: acct.OwnerInstalled,
	})
}

type installRequest struct {
	Identity            domain.Identity `json:"identity"`
	Policies            json.RawMessage `json:"policies"`
	AllowTimeWindowOnly bool            `json:"allowTimeWindowOnly"`
}

type installResponse struct {
	AccountAddress common.Address `json:"accountAddress"`
	SessionAddress common.Address `json:"sessionPublicAddress"`
	InstallTxHash  common.Hash    `json:"installTxHash"`
	Grant          domain.Grant   `json:"grant"`
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	s.install(w, r, s.sessions.Install)
}

func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	s.install(w, r, s.sessions.Rotate)
}

type installFunc func(ctx context.Context, signer domain.OwnerSigner, identity domain.Identity, params domain.InstallParams) (domain.InstallResult, error)

func (s *Server) install(w http.ResponseWriter, r *http.Request, run installFunc) {
	var req installRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Identity == "" {
		writeError(w, fault.New(fault.InvalidInput, "httpapi.install", "identity is required"))
		return
	}
	policies, err := domain.UnmarshalPolicies(req.Policies)
	if err != nil {
		writeError(w, fault.Wrap(fault.InvalidInput, "httpapi.install", err))
		return
	}
	res, err := run(r.Context(), s.owner, req.Identity, domain.InstallParams{
		Policies:            policies,
		AllowTimeWindowOnly: req.AllowTimeWindowOnly,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, installResponse{
		AccountAddress: res.Account.Address,
		SessionAddress: res.SessionAddress,
		InstallTxHash:  res.TxHash,
		Grant:          res.Grant,
	})
}

type revokeRequest struct {
	Identity domain.Identity `json:"identity"`
}

type revokeResponse struct {
	TxHash common.Hash `json:"txHash"`
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	txHash, err := s.sessions.Revoke(r.Context(), s.owner, req.Identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, revokeResponse{TxHash: txHash})
}

type nativeRequest struct {
	Identity domain.Identity `json:"identity"`
	To       common.Address  `json:"to"`
	Amount   string          `json:"amount"` // decimal, native units
}

func (s *Server) handleNative(w http.ResponseWriter, r *http.Request) {
	var req nativeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	acct, err := s.accounts.ResolveAddress(r.Context(), req.Identity)
	if err != nil {
		writeError(w, err)
		return
	}
	wei, err := amount.ParseUnits(req.Amount, amount.NativeDecimals)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.transfers.SubmitNative(r.Context(), acct.Address, req.Identity, req.To, wei)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Printf("relayed native transfer: identity=%s to=%s tx=%s", req.Identity, req.To, rec.TxHash)
	writeJSON(w, http.StatusOK, rec)
}

type tokenRequest struct {
	Identity domain.Identity `json:"identity"`
	Token    common.Address  `json:"token"`
	To       common.Address  `json:"to"`
	Amount   string          `json:"amount"` // decimal, token units
	Decimals *uint8          `json:"decimals,omitempty"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	acct, err := s.accounts.ResolveAddress(r.Context(), req.Identity)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.transfers.SubmitToken(r.Context(), acct.Address, req.Identity, req.Token, req.To, req.Amount, req.Decimals)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Printf("relayed token transfer: identity=%s token=%s to=%s tx=%s", req.Identity, req.Token, req.To, rec.TxHash)
	writeJSON(w, http.StatusOK, rec)
}

type balanceResponse struct {
	OK bool `json:"ok"`
	domain.Balance
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("address")
	if !common.IsHexAddress(raw) {
		writeError(w, fault.Newf(fault.InvalidInput, "httpapi.balance", "malformed address %q", raw))
		return
	}
	bal, err := s.balances.Native(r.Context(), common.HexToAddress(raw))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{OK: true, Balance: bal})
}
