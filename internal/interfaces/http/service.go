package httpinterface

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/x42protocol/xserverd/internal/core/application"
	"github.com/x42protocol/xserverd/internal/core/domain"
	"github.com/x42protocol/xserverd/internal/core/ports"
	"github.com/x42protocol/xserverd/pkg/xsclient"
)

// Service exposes the peer-facing JSON surface plus the thin client
// operations (quotes, payments, profile registration). Handlers only decode,
// call the application layer and encode.
type Service struct {
	network    *application.NetworkService
	ledger     ports.LedgerClient
	currencies []string
	version    string
}

// ServiceOpts defines the parameters needed for creating the HTTP interface
// with NewService.
type ServiceOpts struct {
	Network    *application.NetworkService
	Ledger     ports.LedgerClient
	Currencies []string
	Version    string
}

// NewService ...
func NewService(opts ServiceOpts) *Service {
	return &Service{
		network:    opts.Network,
		ledger:     opts.Ledger,
		currencies: opts.Currencies,
		version:    opts.Version,
	}
}

// Router assembles the route table.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ping", s.ping)
	r.Post("/registerserver", s.registerServer)
	r.Get("/getactivexservers", s.getActiveXServers)
	r.Get("/getxserverstats", s.getXServerStats)
	r.Post("/updatepricelock", s.updatePriceLock)
	r.Get("/getpricelock", s.getPriceLock)
	r.Post("/createpricelock", s.createPriceLock)
	r.Get("/getprices", s.getPrices)
	r.Post("/receiveprofilereservation", s.receiveProfileReservation)
	r.Get("/getnextprofiles", s.getNextProfiles)

	r.Post("/submitpayment", s.submitPayment)
	r.Post("/reserveprofile", s.reserveProfile)
	r.Get("/getprofile", s.getProfile)

	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Service) ping(w http.ResponseWriter, r *http.Request) {
	info, err := s.ledger.GetBlockchainInfo(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, xsclient.PingResponse{
		Version:    s.version,
		BestHeight: info.Blocks,
	})
}

func (s *Service) registerServer(w http.ResponseWriter, r *http.Request) {
	var dto xsclient.ServerNodeDTO
	if !decode(w, r, &dto) {
		return
	}

	err := s.network.Membership().Register(r.Context(), dto.ToDomain())
	if err != nil && err != domain.ErrServerNodeAlreadyExists {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (s *Service) getActiveXServers(w http.ResponseWriter, r *http.Request) {
	fromId, err := strconv.ParseUint(r.URL.Query().Get("fromId"), 10, 64)
	if err != nil && r.URL.Query().Get("fromId") != "" {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	nodes, err := s.network.Membership().ActiveServerNodesSince(r.Context(), fromId)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, toNodeDTOs(nodes))
}

func (s *Service) getXServerStats(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.network.Membership().AllServerNodes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"nodes":     toNodeDTOs(nodes),
		"connected": len(nodes),
	})
}

func (s *Service) updatePriceLock(w http.ResponseWriter, r *http.Request) {
	var dto xsclient.PriceLockDTO
	if !decode(w, r, &dto) {
		return
	}

	if err := s.network.PriceLocks().ReceivePriceLock(r.Context(), dto.ToDomain()); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (s *Service) getPriceLock(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("priceLockId")
	lock, err := s.network.PriceLocks().GetPriceLock(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, xsclient.NewPriceLockDTO(lock))
}

func (s *Service) createPriceLock(w http.ResponseWriter, r *http.Request) {
	if !s.network.Ready() {
		writeError(w, http.StatusServiceUnavailable, application.ErrNetworkNotReady)
		return
	}
	var dto xsclient.CreateLockRequestDTO
	if !decode(w, r, &dto) {
		return
	}

	destination := dto.DestinationAddress
	if destination == "" {
		destination = s.network.Self().FeeAddress
	}

	lock, err := s.network.PriceLocks().CreatePriceLock(
		r.Context(),
		application.CreatePriceLockRequest{
			RequestAmount:   dto.RequestAmount,
			RequestCurrency: dto.RequestCurrency,
		},
		destination,
	)
	if err != nil {
		status := http.StatusBadRequest
		if err == application.ErrInsufficientPriceData {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, xsclient.NewPriceLockDTO(lock))
}

func (s *Service) getPrices(w http.ResponseWriter, r *http.Request) {
	now := time.Now().Unix()
	samples := make([]xsclient.PriceSampleDTO, 0, len(s.currencies))
	for _, currency := range s.currencies {
		price, err := s.network.PriceLocks().Aggregator().ConsensusPrice(currency)
		if err != nil {
			continue
		}
		samples = append(samples, xsclient.PriceSampleDTO{
			Currency: currency,
			Price:    price,
			Time:     now,
		})
	}
	writeJSON(w, samples)
}

func (s *Service) receiveProfileReservation(w http.ResponseWriter, r *http.Request) {
	var dto xsclient.ProfileReservationDTO
	if !decode(w, r, &dto) {
		return
	}

	if err := s.network.Profiles().ReceiveReservation(r.Context(), dto.ToDomain()); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (s *Service) getNextProfiles(w http.ResponseWriter, r *http.Request) {
	fromBlock, err := strconv.ParseInt(r.URL.Query().Get("fromBlock"), 10, 64)
	if err != nil && r.URL.Query().Get("fromBlock") != "" {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	profiles, err := s.network.Profiles().NextProfiles(r.Context(), fromBlock)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]xsclient.ProfileDTO, 0, len(profiles))
	for _, p := range profiles {
		dtos = append(dtos, xsclient.NewProfileDTO(p))
	}
	writeJSON(w, dtos)
}

type submitPaymentRequest struct {
	PriceLockId    string `json:"priceLockId"`
	PayeeSignature string `json:"payeeSignature"`
	TransactionId  string `json:"transactionId"`
	TransactionHex string `json:"transactionHex"`
}

func (s *Service) submitPayment(w http.ResponseWriter, r *http.Request) {
	var req submitPaymentRequest
	if !decode(w, r, &req) {
		return
	}

	result := s.network.PriceLocks().SubmitPayment(r.Context(), application.SubmitPaymentRequest{
		PriceLockId:    req.PriceLockId,
		PayeeSignature: req.PayeeSignature,
		TransactionId:  req.TransactionId,
		TransactionHex: req.TransactionHex,
	})
	writeJSON(w, map[string]interface{}{
		"success":   result.Success,
		"errorCode": int(result.ErrorCode),
	})
}

type reserveProfileRequest struct {
	Name          string `json:"name"`
	KeyAddress    string `json:"keyAddress"`
	ReturnAddress string `json:"returnAddress"`
	Signature     string `json:"signature"`
}

func (s *Service) reserveProfile(w http.ResponseWriter, r *http.Request) {
	if !s.network.Ready() {
		writeError(w, http.StatusServiceUnavailable, application.ErrNetworkNotReady)
		return
	}
	var req reserveProfileRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := s.network.Profiles().Reserve(r.Context(), application.ReserveProfileRequest{
		Name:          req.Name,
		KeyAddress:    req.KeyAddress,
		ReturnAddress: req.ReturnAddress,
		Signature:     req.Signature,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp := map[string]interface{}{
		"success":     result.Success,
		"status":      int(result.Status),
		"expireBlock": result.ExpireBlock,
	}
	if result.PriceLock != nil {
		resp["priceLock"] = xsclient.NewPriceLockDTO(result.PriceLock)
	}
	writeJSON(w, resp)
}

func (s *Service) getProfile(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	keyAddress := r.URL.Query().Get("keyAddress")

	info, err := s.network.Profiles().GetProfile(r.Context(), name, keyAddress)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"name":           info.Name,
		"keyAddress":     info.KeyAddress,
		"returnAddress":  info.ReturnAddress,
		"signature":      info.Signature,
		"status":         int(info.Status),
		"priceLockId":    info.PriceLockId,
		"blockConfirmed": info.BlockConfirmed,
		"pending":        info.Pending,
	})
}

func toNodeDTOs(nodes []*domain.ServerNode) []xsclient.ServerNodeDTO {
	dtos := make([]xsclient.ServerNodeDTO, 0, len(nodes))
	for _, n := range nodes {
		dtos = append(dtos, xsclient.NewServerNodeDTO(n))
	}
	return dtos
}

func decode(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("http: writing response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
