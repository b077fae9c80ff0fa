package rpc

import (
	"context"
	"errors"
	"time"

	"connectrpc.com/connect"
	"github.com/Cogwheel-Validator/spectra-nft-minter/minter/models"
	"github.com/Cogwheel-Validator/spectra-nft-minter/minter/session"
)

// MintServer implements MintServiceHandler on top of the session registry
type MintServer struct {
	sessions        *session.Registry
	contractAddress string
	metrics         *mintMetrics
}

var _ MintServiceHandler = (*MintServer)(nil)

// NewMintServer creates a MintServer. contractAddress is shown on the page and may be empty.
func NewMintServer(sessions *session.Registry, contractAddress string) *MintServer {
	return &MintServer{
		sessions:        sessions,
		contractAddress: contractAddress,
	}
}

// GetState returns what the page view should render
func (s *MintServer) GetState(
	ctx context.Context,
	req *connect.Request[models.GetStateRequest],
) (*connect.Response[models.SessionState], error) {
	c, err := s.controller(req.Header().Get(models.SessionHeader))
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(s.state(c)), nil
}

// SetRecipient stores the recipient exactly as typed
func (s *MintServer) SetRecipient(
	ctx context.Context,
	req *connect.Request[models.SetRecipientRequest],
) (*connect.Response[models.SessionState], error) {
	c, err := s.controller(req.Header().Get(models.SessionHeader))
	if err != nil {
		return nil, err
	}
	c.SetRecipient(req.Msg.Recipient)
	return connect.NewResponse(s.state(c)), nil
}

// SelectFile replaces the selected image of the page view
//
// Returns:
// - InvalidArgument: empty file or not an image
// - ResourceExhausted: file over the size limit, or no room for a new page view
// - Aborted: the page view was closed while the file was stored
func (s *MintServer) SelectFile(
	ctx context.Context,
	req *connect.Request[models.SelectFileRequest],
) (*connect.Response[models.SessionState], error) {
	c, err := s.controller(req.Header().Get(models.SessionHeader))
	if err != nil {
		return nil, err
	}

	_, err = c.SelectFile(req.Msg.Name, req.Msg.ContentType, req.Msg.Data)
	switch {
	case errors.Is(err, session.ErrClosed):
		return nil, connect.NewError(connect.CodeAborted, err)
	case errors.Is(err, session.ErrFileTooLarge):
		return nil, connect.NewError(connect.CodeResourceExhausted, err)
	case err != nil:
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return connect.NewResponse(s.state(c)), nil
}

// Mint runs the mint action and returns once it has settled.
// A trigger while a mint is in flight changes nothing and returns the current state.
func (s *MintServer) Mint(
	ctx context.Context,
	req *connect.Request[models.MintRequest],
) (*connect.Response[models.SessionState], error) {
	c, err := s.controller(req.Header().Get(models.SessionHeader))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = c.Mint(ctx)
	if errors.Is(err, session.ErrMintInFlight) {
		return connect.NewResponse(s.state(c)), nil
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	state := s.state(c)
	if kind := session.Kind(state.StatusKind); kind == session.KindSuccess || kind == session.KindError {
		s.metrics.record(context.WithoutCancel(ctx), state.StatusKind, time.Since(start))
	}
	return connect.NewResponse(state), nil
}

func (s *MintServer) controller(id string) (*session.Controller, error) {
	c, err := s.sessions.Get(id)
	if errors.Is(err, session.ErrTooManySessions) {
		return nil, connect.NewError(connect.CodeResourceExhausted, err)
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return c, nil
}

func (s *MintServer) state(c *session.Controller) *models.SessionState {
	snap := c.Snapshot()

	state := &models.SessionState{
		ContractAddress: s.contractAddress,
		Recipient:       snap.Recipient,
		FileName:        snap.FileName,
		FileSize:        snap.FileSize,
		Status:          snap.Status.Message,
		StatusKind:      string(snap.Status.Kind),
		Tone:            snap.Status.Tone(),
		Loading:         snap.Loading,
	}
	if snap.PreviewID != "" {
		state.PreviewURL = previewPath + snap.PreviewID
	}
	// receipt details only accompany the success message they belong to
	if snap.Status.Kind == session.KindSuccess && snap.LastReceipt != nil {
		state.TxHash = snap.LastReceipt.TxHash.Hex()
		state.BlockNumber = snap.LastReceipt.BlockNumber
		state.FeeEth = snap.LastReceipt.Fee.String()
	}
	return state
}
