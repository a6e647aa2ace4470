package document

import (
	"context"
	"encoding/json"

	"idv/internal/vendor"
)

// GatewayClient drives the document vendor through the vendor gateway, one
// POST per stage:
//
//	POST {baseURL}/v1/documents/{stage}
type GatewayClient struct {
	gw *vendor.GatewayClient
}

func NewGatewayClient(gw *vendor.GatewayClient) *GatewayClient {
	return &GatewayClient{gw: gw}
}

// stageWire adds the fields StageRequest keeps out of its own JSON. Image
// travels base64 encoded.
type stageWire struct {
	StageRequest
	Token string `json:"token,omitempty"`
	Image []byte `json:"image,omitempty"`
}

type stageReply struct {
	StageResponse
	Token string `json:"token,omitempty"`
}

func (c *GatewayClient) Call(ctx context.Context, req StageRequest) (StageResponse, error) {
	api, ok := req.Stage.API()
	if !ok {
		return StageResponse{}, vendor.NewError(vendor.ErrorInternal, "", "stage "+string(req.Stage)+" calls no vendor api", nil)
	}
	raw, err := c.gw.Post(ctx, api, stageWire{StageRequest: req, Token: req.Token, Image: req.Image},
		"v1", "documents", string(req.Stage))
	if err != nil {
		return StageResponse{}, err
	}
	var reply stageReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return StageResponse{}, vendor.NewError(vendor.ErrorContractMismatch, api, "decode stage response", err)
	}
	resp := reply.StageResponse
	resp.Token = reply.Token
	return resp, nil
}
