package domain

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// ServerNode is a peer xServer record. The signature is the node operator's
// self-attestation over the identity fields and is the trust anchor for
// everything learned through gossip.
type ServerNode struct {
	Id              uint64 `badgerhold:"key"`
	ProfileName     string
	NetworkAddress  string
	NetworkPort     uint32
	NetworkProtocol uint32
	KeyAddress      string
	SignAddress     string
	FeeAddress      string
	Tier            Tier
	Signature       string
	Priority        int
	Active          bool
	LastSeen        int64
	Relayed         bool
	DateAdded       int64
}

// NewServerNode returns an unrelayed, active node first seen now.
func NewServerNode(
	profileName, networkAddress string, networkPort, networkProtocol uint32,
	keyAddress, signAddress, feeAddress string,
	tier Tier, signature string,
) (*ServerNode, error) {
	if !tier.IsValid() {
		return nil, ErrInvalidTier
	}
	if !IsRoutableAddress(networkAddress) {
		return nil, ErrServerNodeInvalidAddress
	}
	now := time.Now().Unix()
	return &ServerNode{
		ProfileName:     profileName,
		NetworkAddress:  networkAddress,
		NetworkPort:     networkPort,
		NetworkProtocol: networkProtocol,
		KeyAddress:      keyAddress,
		SignAddress:     signAddress,
		FeeAddress:      feeAddress,
		Tier:            tier,
		Signature:       signature,
		Active:          true,
		LastSeen:        now,
		DateAdded:       now,
	}, nil
}

// SignaturePayload returns the message the node's self-attestation signs.
func (n *ServerNode) SignaturePayload() string {
	return fmt.Sprintf(
		"%s%s%d%d%s%s%s%d",
		n.ProfileName, n.NetworkAddress, n.NetworkPort, n.NetworkProtocol,
		n.KeyAddress, n.SignAddress, n.FeeAddress, n.Tier,
	)
}

// MarkSeen refreshes the liveness state after a successful check.
func (n *ServerNode) MarkSeen(now time.Time) {
	n.Active = true
	n.LastSeen = now.Unix()
}

// Deactivate flags the node as unresponsive without evicting it. Eviction is
// the sweep's call, after the downtime grace period.
func (n *ServerNode) Deactivate() {
	n.Active = false
}

// IsStale returns whether the node has been out of sight for longer than the
// downtime grace period.
func (n *ServerNode) IsStale(grace time.Duration, now time.Time) bool {
	return now.After(time.Unix(n.LastSeen, 0).Add(grace))
}

// MarkRelayed flags the node as already pushed to peers.
func (n *ServerNode) MarkRelayed() {
	n.Relayed = true
}

// Endpoint returns the base URL of the node's peer API.
func (n *ServerNode) Endpoint() string {
	scheme := "http"
	if n.NetworkProtocol == NetworkProtocolHTTPS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, n.NetworkAddress, n.NetworkPort)
}

const (
	NetworkProtocolHTTP  uint32 = 1
	NetworkProtocolHTTPS uint32 = 2
)

// IsRoutableAddress rejects loopback and unspecified addresses as peer
// network addresses, closing the trivial self-registration spoof.
func IsRoutableAddress(address string) bool {
	host := strings.TrimSpace(strings.ToLower(address))
	if host == "" || host == "localhost" {
		return false
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsUnspecified() {
			return false
		}
	}
	return true
}
