package api

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/splitthat/internal/models"
)

const SplitServiceName = "splitthat.v1.SplitService"

const (
	SplitServiceExtractSplitProcedure = "/splitthat.v1.SplitService/ExtractSplit"
	SplitServicePublishSplitProcedure = "/splitthat.v1.SplitService/PublishSplit"
	SplitServiceListSplitsProcedure   = "/splitthat.v1.SplitService/ListSplits"
	SplitServiceGetSplitProcedure     = "/splitthat.v1.SplitService/GetSplit"
	SplitServiceDeleteSplitProcedure  = "/splitthat.v1.SplitService/DeleteSplit"
)

type ExtractSplitRequest struct {
	// Media is the receipt file, base64 encoded on the wire.
	Media        []byte   `json:"media"`
	ContentType  string   `json:"content_type"`
	Participants []string `json:"participants"`
	Instruction  string   `json:"instruction,omitempty"`
}

type ExtractSplitResponse struct {
	Split *models.Split `json:"split"`
	// OwedShares suggests what each participant owes, as decimal strings.
	OwedShares map[string]string `json:"owed_shares,omitempty"`
	// Warnings are advisory reconciliation findings.
	Warnings []string `json:"warnings,omitempty"`
	Cached   bool     `json:"cached,omitempty"`
}

type PublishSplitRequest struct {
	Split *models.PublishRequest `json:"split"`
}

type PublishSplitResponse struct {
	ExpenseID int64                  `json:"expense_id"`
	Split     *models.PersistedSplit `json:"split"`
	// CommentError is set when the comment could not be attached. The
	// expense and local record were saved.
	CommentError string `json:"comment_error,omitempty"`
}

type ListSplitsRequest struct{}

type ListSplitsResponse struct {
	Splits []*models.PersistedSplit `json:"splits"`
}

type GetSplitRequest struct {
	SplitID string `json:"split_id"`
}

type GetSplitResponse struct {
	Split *models.PersistedSplit `json:"split"`
}

type DeleteSplitRequest struct {
	SplitID string `json:"split_id"`
}

type DeleteSplitResponse struct{}

// SplitServiceHandler is implemented by the split service.
type SplitServiceHandler interface {
	ExtractSplit(context.Context, *connect.Request[ExtractSplitRequest]) (*connect.Response[ExtractSplitResponse], error)
	PublishSplit(context.Context, *connect.Request[PublishSplitRequest]) (*connect.Response[PublishSplitResponse], error)
	ListSplits(context.Context, *connect.Request[ListSplitsRequest]) (*connect.Response[ListSplitsResponse], error)
	GetSplit(context.Context, *connect.Request[GetSplitRequest]) (*connect.Response[GetSplitResponse], error)
	DeleteSplit(context.Context, *connect.Request[DeleteSplitRequest]) (*connect.Response[DeleteSplitResponse], error)
}

// NewSplitServiceHandler returns the service path and its handler.
func NewSplitServiceHandler(svc SplitServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	return route("/"+SplitServiceName+"/", map[string]http.Handler{
		SplitServiceExtractSplitProcedure: unary(SplitServiceExtractSplitProcedure, svc.ExtractSplit, opts),
		SplitServicePublishSplitProcedure: unary(SplitServicePublishSplitProcedure, svc.PublishSplit, opts),
		SplitServiceListSplitsProcedure:   unary(SplitServiceListSplitsProcedure, svc.ListSplits, opts),
		SplitServiceGetSplitProcedure:     unary(SplitServiceGetSplitProcedure, svc.GetSplit, opts),
		SplitServiceDeleteSplitProcedure:  unary(SplitServiceDeleteSplitProcedure, svc.DeleteSplit, opts),
	})
}

// SplitServiceClient calls the split service.
type SplitServiceClient struct {
	extractSplit *connect.Client[ExtractSplitRequest, ExtractSplitResponse]
	publishSplit *connect.Client[PublishSplitRequest, PublishSplitResponse]
	listSplits   *connect.Client[ListSplitsRequest, ListSplitsResponse]
	getSplit     *connect.Client[GetSplitRequest, GetSplitResponse]
	deleteSplit  *connect.Client[DeleteSplitRequest, DeleteSplitResponse]
}

func NewSplitServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *SplitServiceClient {
	return &SplitServiceClient{
		extractSplit: client[ExtractSplitRequest, ExtractSplitResponse](httpClient, baseURL, SplitServiceExtractSplitProcedure, opts),
		publishSplit: client[PublishSplitRequest, PublishSplitResponse](httpClient, baseURL, SplitServicePublishSplitProcedure, opts),
		listSplits:   client[ListSplitsRequest, ListSplitsResponse](httpClient, baseURL, SplitServiceListSplitsProcedure, opts),
		getSplit:     client[GetSplitRequest, GetSplitResponse](httpClient, baseURL, SplitServiceGetSplitProcedure, opts),
		deleteSplit:  client[DeleteSplitRequest, DeleteSplitResponse](httpClient, baseURL, SplitServiceDeleteSplitProcedure, opts),
	}
}

func (c *SplitServiceClient) ExtractSplit(ctx context.Context, req *connect.Request[ExtractSplitRequest]) (*connect.Response[ExtractSplitResponse], error) {
	return c.extractSplit.CallUnary(ctx, req)
}

func (c *SplitServiceClient) PublishSplit(ctx context.Context, req *connect.Request[PublishSplitRequest]) (*connect.Response[PublishSplitResponse], error) {
	return c.publishSplit.CallUnary(ctx, req)
}

func (c *SplitServiceClient) ListSplits(ctx context.Context, req *connect.Request[ListSplitsRequest]) (*connect.Response[ListSplitsResponse], error) {
	return c.listSplits.CallUnary(ctx, req)
}

func (c *SplitServiceClient) GetSplit(ctx context.Context, req *connect.Request[GetSplitRequest]) (*connect.Response[GetSplitResponse], error) {
	return c.getSplit.CallUnary(ctx, req)
}

func (c *SplitServiceClient) DeleteSplit(ctx context.Context, req *connect.Request[DeleteSplitRequest]) (*connect.Response[DeleteSplitResponse], error) {
	return c.deleteSplit.CallUnary(ctx, req)
}
