package rpc

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/Cogwheel-Validator/spectra-nft-minter/minter/models"
)

const MintServiceName = "minter.v1.MintService"

const (
	MintServiceGetStateProcedure     = "/minter.v1.MintService/GetState"
	MintServiceSetRecipientProcedure = "/minter.v1.MintService/SetRecipient"
	MintServiceSelectFileProcedure   = "/minter.v1.MintService/SelectFile"
	MintServiceMintProcedure         = "/minter.v1.MintService/Mint"
)

// MintServiceHandler serves the page-view API
type MintServiceHandler interface {
	GetState(context.Context, *connect.Request[models.GetStateRequest]) (*connect.Response[models.SessionState], error)
	SetRecipient(context.Context, *connect.Request[models.SetRecipientRequest]) (*connect.Response[models.SessionState], error)
	SelectFile(context.Context, *connect.Request[models.SelectFileRequest]) (*connect.Response[models.SessionState], error)
	Mint(context.Context, *connect.Request[models.MintRequest]) (*connect.Response[models.SessionState], error)
}

// NewMintServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewMintServiceHandler(svc MintServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	getState := connect.NewUnaryHandler(MintServiceGetStateProcedure, svc.GetState, opts...)
	setRecipient := connect.NewUnaryHandler(MintServiceSetRecipientProcedure, svc.SetRecipient, opts...)
	selectFile := connect.NewUnaryHandler(MintServiceSelectFileProcedure, svc.SelectFile, opts...)
	mint := connect.NewUnaryHandler(MintServiceMintProcedure, svc.Mint, opts...)

	return "/" + MintServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case MintServiceGetStateProcedure:
			getState.ServeHTTP(w, r)
		case MintServiceSetRecipientProcedure:
			setRecipient.ServeHTTP(w, r)
		case MintServiceSelectFileProcedure:
			selectFile.ServeHTTP(w, r)
		case MintServiceMintProcedure:
			mint.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// MintServiceClient calls the API for one page view
type MintServiceClient struct {
	session      string
	getState     *connect.Client[models.GetStateRequest, models.SessionState]
	setRecipient *connect.Client[models.SetRecipientRequest, models.SessionState]
	selectFile   *connect.Client[models.SelectFileRequest, models.SessionState]
	mint         *connect.Client[models.MintRequest, models.SessionState]
}

// NewMintServiceClient creates a client bound to the page view session.
// A nil httpClient uses http.DefaultClient.
func NewMintServiceClient(httpClient connect.HTTPClient, baseURL, session string, opts ...connect.ClientOption) *MintServiceClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)
	return &MintServiceClient{
		session:      session,
		getState:     connect.NewClient[models.GetStateRequest, models.SessionState](httpClient, baseURL+MintServiceGetStateProcedure, opts...),
		setRecipient: connect.NewClient[models.SetRecipientRequest, models.SessionState](httpClient, baseURL+MintServiceSetRecipientProcedure, opts...),
		selectFile:   connect.NewClient[models.SelectFileRequest, models.SessionState](httpClient, baseURL+MintServiceSelectFileProcedure, opts...),
		mint:         connect.NewClient[models.MintRequest, models.SessionState](httpClient, baseURL+MintServiceMintProcedure, opts...),
	}
}

func call[Req, Res any](ctx context.Context, client *connect.Client[Req, Res], session string, msg *Req) (*Res, error) {
	req := connect.NewRequest(msg)
	req.Header().Set(models.SessionHeader, session)
	resp, err := client.CallUnary(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *MintServiceClient) GetState(ctx context.Context) (*models.SessionState, error) {
	return call(ctx, c.getState, c.session, &models.GetStateRequest{})
}

func (c *MintServiceClient) SetRecipient(ctx context.Context, recipient string) (*models.SessionState, error) {
	return call(ctx, c.setRecipient, c.session, &models.SetRecipientRequest{Recipient: recipient})
}

func (c *MintServiceClient) SelectFile(ctx context.Context, name, contentType string, data []byte) (*models.SessionState, error) {
	return call(ctx, c.selectFile, c.session, &models.SelectFileRequest{Name: name, ContentType: contentType, Data: data})
}

func (c *MintServiceClient) Mint(ctx context.Context) (*models.SessionState, error) {
	return call(ctx, c.mint, c.session, &models.MintRequest{})
}
