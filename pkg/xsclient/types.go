package xsclient

import (
	"github.com/shopspring/decimal"

	"github.com/x42protocol/xserverd/internal/core/domain"
)

// Wire shapes of the peer-to-peer JSON surface. Decimal amounts travel as
// quoted strings.

// ServerNodeDTO ...
type ServerNodeDTO struct {
	Id              uint64 `json:"id"`
	ProfileName     string `json:"profileName"`
	NetworkAddress  string `json:"networkAddress"`
	NetworkPort     uint32 `json:"networkPort"`
	NetworkProtocol uint32 `json:"networkProtocol"`
	KeyAddress      string `json:"keyAddress"`
	SignAddress     string `json:"signAddress"`
	FeeAddress      string `json:"feeAddress"`
	Tier            int    `json:"tier"`
	Signature       string `json:"signature"`
	Priority        int    `json:"priority"`
}

// ToDomain ...
func (d ServerNodeDTO) ToDomain() *domain.ServerNode {
	return &domain.ServerNode{
		Id:              d.Id,
		ProfileName:     d.ProfileName,
		NetworkAddress:  d.NetworkAddress,
		NetworkPort:     d.NetworkPort,
		NetworkProtocol: d.NetworkProtocol,
		KeyAddress:      d.KeyAddress,
		SignAddress:     d.SignAddress,
		FeeAddress:      d.FeeAddress,
		Tier:            domain.Tier(d.Tier),
		Signature:       d.Signature,
		Priority:        d.Priority,
	}
}

// NewServerNodeDTO ...
func NewServerNodeDTO(n *domain.ServerNode) ServerNodeDTO {
	return ServerNodeDTO{
		Id:              n.Id,
		ProfileName:     n.ProfileName,
		NetworkAddress:  n.NetworkAddress,
		NetworkPort:     n.NetworkPort,
		NetworkProtocol: n.NetworkProtocol,
		KeyAddress:      n.KeyAddress,
		SignAddress:     n.SignAddress,
		FeeAddress:      n.FeeAddress,
		Tier:            int(n.Tier),
		Signature:       n.Signature,
		Priority:        n.Priority,
	}
}

// PriceLockDTO ...
type PriceLockDTO struct {
	Id                 string          `json:"priceLockId"`
	Status             int             `json:"status"`
	RequestAmount      decimal.Decimal `json:"requestAmount"`
	RequestCurrency    string          `json:"requestAmountPair"`
	DestinationAmount  decimal.Decimal `json:"destinationAmount"`
	DestinationAddress string          `json:"destinationAddress"`
	FeeAmount          decimal.Decimal `json:"feeAmount"`
	FeeAddress         string          `json:"feeAddress"`
	SignAddress        string          `json:"signAddress"`
	PriceLockSignature string          `json:"priceLockSignature"`
	PayeeSignature     string          `json:"payeeSignature"`
	TransactionId      string          `json:"transactionId"`
	ExpireBlock        int64           `json:"expireBlock"`
}

// ToDomain ...
func (d PriceLockDTO) ToDomain() *domain.PriceLock {
	return &domain.PriceLock{
		Id:                 d.Id,
		Status:             domain.PriceLockStatus(d.Status),
		RequestAmount:      d.RequestAmount,
		RequestCurrency:    d.RequestCurrency,
		DestinationAmount:  d.DestinationAmount,
		DestinationAddress: d.DestinationAddress,
		FeeAmount:          d.FeeAmount,
		FeeAddress:         d.FeeAddress,
		SignAddress:        d.SignAddress,
		PriceLockSignature: d.PriceLockSignature,
		PayeeSignature:     d.PayeeSignature,
		TransactionId:      d.TransactionId,
		ExpireBlock:        d.ExpireBlock,
	}
}

// NewPriceLockDTO ...
func NewPriceLockDTO(l *domain.PriceLock) PriceLockDTO {
	return PriceLockDTO{
		Id:                 l.Id,
		Status:             int(l.Status),
		RequestAmount:      l.RequestAmount,
		RequestCurrency:    l.RequestCurrency,
		DestinationAmount:  l.DestinationAmount,
		DestinationAddress: l.DestinationAddress,
		FeeAmount:          l.FeeAmount,
		FeeAddress:         l.FeeAddress,
		SignAddress:        l.SignAddress,
		PriceLockSignature: l.PriceLockSignature,
		PayeeSignature:     l.PayeeSignature,
		TransactionId:      l.TransactionId,
		ExpireBlock:        l.ExpireBlock,
	}
}

// ProfileReservationDTO ...
type ProfileReservationDTO struct {
	Id             string `json:"id"`
	Name           string `json:"name"`
	KeyAddress     string `json:"keyAddress"`
	ReturnAddress  string `json:"returnAddress"`
	Signature      string `json:"signature"`
	Status         int    `json:"status"`
	PriceLockId    string `json:"priceLockId"`
	ExpireBlock    int64  `json:"reservationExpirationBlock"`
	BlockConfirmed int64  `json:"blockConfirmed,omitempty"`
	Relayed        bool   `json:"relayed"`
}

// ToDomain ...
func (d ProfileReservationDTO) ToDomain() *domain.ProfileReservation {
	return &domain.ProfileReservation{
		Id:             d.Id,
		Name:           d.Name,
		KeyAddress:     d.KeyAddress,
		ReturnAddress:  d.ReturnAddress,
		Signature:      d.Signature,
		Status:         domain.ProfileStatus(d.Status),
		PriceLockId:    d.PriceLockId,
		ExpireBlock:    d.ExpireBlock,
		BlockConfirmed: d.BlockConfirmed,
		Relayed:        d.Relayed,
	}
}

// NewProfileReservationDTO ...
func NewProfileReservationDTO(r *domain.ProfileReservation) ProfileReservationDTO {
	return ProfileReservationDTO{
		Id:             r.Id,
		Name:           r.Name,
		KeyAddress:     r.KeyAddress,
		ReturnAddress:  r.ReturnAddress,
		Signature:      r.Signature,
		Status:         int(r.Status),
		PriceLockId:    r.PriceLockId,
		ExpireBlock:    r.ExpireBlock,
		BlockConfirmed: r.BlockConfirmed,
		Relayed:        r.Relayed,
	}
}

// ProfileDTO ...
type ProfileDTO struct {
	Id             string `json:"id"`
	Name           string `json:"name"`
	KeyAddress     string `json:"keyAddress"`
	ReturnAddress  string `json:"returnAddress"`
	Signature      string `json:"signature"`
	Status         int    `json:"status"`
	PriceLockId    string `json:"priceLockId"`
	BlockConfirmed int64  `json:"blockConfirmed"`
}

// ToDomain ...
func (d ProfileDTO) ToDomain() *domain.Profile {
	return &domain.Profile{
		Id:             d.Id,
		Name:           d.Name,
		KeyAddress:     d.KeyAddress,
		ReturnAddress:  d.ReturnAddress,
		Signature:      d.Signature,
		Status:         domain.ProfileStatus(d.Status),
		PriceLockId:    d.PriceLockId,
		BlockConfirmed: d.BlockConfirmed,
	}
}

// NewProfileDTO ...
func NewProfileDTO(p *domain.Profile) ProfileDTO {
	return ProfileDTO{
		Id:             p.Id,
		Name:           p.Name,
		KeyAddress:     p.KeyAddress,
		ReturnAddress:  p.ReturnAddress,
		Signature:      p.Signature,
		Status:         int(p.Status),
		PriceLockId:    p.PriceLockId,
		BlockConfirmed: p.BlockConfirmed,
	}
}

// PriceSampleDTO ...
type PriceSampleDTO struct {
	Currency string          `json:"pair"`
	Price    decimal.Decimal `json:"price"`
	Time     int64           `json:"time"`
}

// PingResponse ...
type PingResponse struct {
	Version    string `json:"version"`
	BestHeight int64  `json:"bestBlockHeight"`
}

// CreateLockRequestDTO asks for a quote. DestinationAddress is optional;
// when empty, the serving node quotes against its own fee address.
type CreateLockRequestDTO struct {
	RequestAmount      decimal.Decimal `json:"requestAmount"`
	RequestCurrency    string          `json:"requestAmountPair"`
	DestinationAddress string          `json:"destinationAddress,omitempty"`
}
