package xsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/x42protocol/xserverd/internal/core/domain"
	"github.com/x42protocol/xserverd/internal/core/ports"
	"github.com/x42protocol/xserverd/pkg/circuitbreaker"
	"github.com/x42protocol/xserverd/pkg/util"
)

const (
	// requestsPerSecond caps the outbound call rate across all peers so a
	// burst of scheduled tasks cannot flood the network.
	requestsPerSecond = 20
	requestBurst      = 40
)

// Client talks to other xServers over their JSON HTTP interface. A shared
// circuit breaker trips when too many peers fail in a row, which keeps the
// scheduled tasks from hammering an unreachable network segment.
type Client struct {
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewClient ...
func NewClient() ports.PeerClient {
	return &Client{
		breaker: circuitbreaker.NewCircuitBreaker("xsclient"),
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
	}
}

func (c *Client) Ping(ctx context.Context, peer *domain.ServerNode) (int64, error) {
	var resp PingResponse
	if err := c.get(ctx, peer, "/ping", &resp); err != nil {
		return 0, err
	}
	return resp.BestHeight, nil
}

func (c *Client) RegisterServer(ctx context.Context, peer, node *domain.ServerNode) error {
	return c.post(ctx, peer, "/registerserver", NewServerNodeDTO(node), nil)
}

func (c *Client) GetActiveServerNodes(
	ctx context.Context, peer *domain.ServerNode, fromId uint64,
) ([]*domain.ServerNode, error) {
	var dtos []ServerNodeDTO
	path := fmt.Sprintf("/getactivexservers?fromId=%d", fromId)
	if err := c.get(ctx, peer, path, &dtos); err != nil {
		return nil, err
	}
	nodes := make([]*domain.ServerNode, 0, len(dtos))
	for _, dto := range dtos {
		nodes = append(nodes, dto.ToDomain())
	}
	return nodes, nil
}

func (c *Client) GetServerNodeStats(
	ctx context.Context, peer *domain.ServerNode,
) ([]*domain.ServerNode, error) {
	var resp struct {
		Nodes []ServerNodeDTO `json:"nodes"`
	}
	if err := c.get(ctx, peer, "/getxserverstats", &resp); err != nil {
		return nil, err
	}
	nodes := make([]*domain.ServerNode, 0, len(resp.Nodes))
	for _, dto := range resp.Nodes {
		nodes = append(nodes, dto.ToDomain())
	}
	return nodes, nil
}

func (c *Client) UpdatePriceLock(
	ctx context.Context, peer *domain.ServerNode, lock *domain.PriceLock,
) error {
	return c.post(ctx, peer, "/updatepricelock", NewPriceLockDTO(lock), nil)
}

func (c *Client) GetPriceLock(
	ctx context.Context, peer *domain.ServerNode, priceLockId string,
) (*domain.PriceLock, error) {
	var dto PriceLockDTO
	path := fmt.Sprintf("/getpricelock?priceLockId=%s", priceLockId)
	if err := c.get(ctx, peer, path, &dto); err != nil {
		return nil, err
	}
	return dto.ToDomain(), nil
}

func (c *Client) CreatePriceLock(
	ctx context.Context, peer *domain.ServerNode, req ports.CreateLockRequest,
) (*domain.PriceLock, error) {
	body := CreateLockRequestDTO{
		RequestAmount:   req.RequestAmount,
		RequestCurrency: req.RequestCurrency,
	}
	var dto PriceLockDTO
	if err := c.post(ctx, peer, "/createpricelock", body, &dto); err != nil {
		return nil, err
	}
	return dto.ToDomain(), nil
}

func (c *Client) GetPrices(
	ctx context.Context, peer *domain.ServerNode,
) ([]ports.PriceSample, error) {
	var dtos []PriceSampleDTO
	if err := c.get(ctx, peer, "/getprices", &dtos); err != nil {
		return nil, err
	}
	samples := make([]ports.PriceSample, 0, len(dtos))
	for _, dto := range dtos {
		samples = append(samples, ports.PriceSample{
			Currency: dto.Currency,
			Price:    dto.Price,
			Time:     dto.Time,
		})
	}
	return samples, nil
}

func (c *Client) ReceiveProfileReservation(
	ctx context.Context, peer *domain.ServerNode, reservation *domain.ProfileReservation,
) error {
	return c.post(
		ctx, peer, "/receiveprofilereservation",
		NewProfileReservationDTO(reservation), nil,
	)
}

func (c *Client) GetNextProfiles(
	ctx context.Context, peer *domain.ServerNode, fromBlock int64,
) ([]*domain.Profile, error) {
	var dtos []ProfileDTO
	path := fmt.Sprintf("/getnextprofiles?fromBlock=%d", fromBlock)
	if err := c.get(ctx, peer, path, &dtos); err != nil {
		return nil, err
	}
	profiles := make([]*domain.Profile, 0, len(dtos))
	for _, dto := range dtos {
		profiles = append(profiles, dto.ToDomain())
	}
	return profiles, nil
}

func (c *Client) get(
	ctx context.Context, peer *domain.ServerNode, path string, out interface{},
) error {
	return c.call(ctx, http.MethodGet, peer, path, "", out)
}

func (c *Client) post(
	ctx context.Context, peer *domain.ServerNode, path string,
	payload, out interface{},
) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodPost, peer, path, string(body), out)
}

func (c *Client) call(
	ctx context.Context, method string, peer *domain.ServerNode,
	path, body string, out interface{},
) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	url := peer.Endpoint() + path
	resp, err := c.breaker.Execute(func() (interface{}, error) {
		status, resp, err := util.NewHTTPRequest(
			ctx, method, url, body,
			map[string]string{"Content-Type": "application/json"},
		)
		if err != nil {
			return "", err
		}
		if status != http.StatusOK {
			return "", fmt.Errorf("peer %s: %s", url, resp)
		}
		return resp, nil
	})
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal([]byte(resp.(string)), out)
}
