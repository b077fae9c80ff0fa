package session

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Cogwheel-Validator/spectra-nft-minter/minter/chain"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "session").Logger()
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "session").Logger()
}

var (
	ErrMintInFlight = errors.New("a mint is already in flight")
	ErrEmptyFile    = errors.New("file is empty")
	ErrFileTooLarge = errors.New("file exceeds the size limit")
	ErrNotImage     = errors.New("file is not an image")
	ErrClosed       = errors.New("page view was closed")
)

// Minter submits a mint for recipient and waits until it is included
type Minter interface {
	Mint(ctx context.Context, recipient string) (*chain.Receipt, error)
}

// Limits bounds what a controller accepts
type Limits struct {
	// MaxFileBytes is the largest image accepted
	MaxFileBytes int64
	// MintTimeout bounds a mint from submission to inclusion
	MintTimeout time.Duration
}

// DefaultLimits returns sensible defaults
func DefaultLimits() Limits {
	return Limits{
		MaxFileBytes: 10 << 20,
		MintTimeout:  35 * time.Second,
	}
}

// SelectedFile is the image picked or dropped by the user
type SelectedFile struct {
	Name        string
	ContentType string
	Data        []byte
	PreviewID   string
}

// Snapshot is a copy of what the page shows
type Snapshot struct {
	Recipient   string
	FileName    string
	FileSize    int
	PreviewID   string
	Status      Status
	Loading     bool
	LastReceipt *chain.Receipt
}

// Controller holds the state of one page view and runs its mint action.
// At most one mint is in flight at a time; further triggers are ignored until it ends.
type Controller struct {
	contract Minter
	previews *PreviewStore
	limits   Limits
	now      func() time.Time

	loading atomic.Bool

	mu          sync.Mutex
	recipient   string
	file        *SelectedFile
	status      Status
	lastReceipt *chain.Receipt
	lastActive  time.Time
	closed      bool
}

// NewController creates a controller. A nil contract means the connection could not be
// set up; minting then reports the contract as not loaded.
func NewController(contract Minter, previews *PreviewStore, limits Limits) *Controller {
	if previews == nil {
		previews = NewPreviewStore()
	}
	c := &Controller{
		contract: contract,
		previews: previews,
		limits:   limits,
		now:      time.Now,
		status:   statusIdle,
	}
	c.lastActive = c.now()
	return c
}

// SelectFile replaces the selected image. The picker and drag-and-drop both end up here.
// The previous preview is revoked.
func (c *Controller) SelectFile(name, contentType string, data []byte) (SelectedFile, error) {
	if len(data) == 0 {
		return SelectedFile{}, ErrEmptyFile
	}
	if c.limits.MaxFileBytes > 0 && int64(len(data)) > c.limits.MaxFileBytes {
		return SelectedFile{}, ErrFileTooLarge
	}
	detected, ok := imageType(contentType, data)
	if !ok {
		return SelectedFile{}, ErrNotImage
	}

	file := &SelectedFile{
		Name:        name,
		ContentType: detected,
		Data:        data,
		PreviewID:   c.previews.Put(detected, data),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.previews.Revoke(file.PreviewID)
		return SelectedFile{}, ErrClosed
	}
	previous := c.file
	c.file = file
	c.lastActive = c.now()
	c.mu.Unlock()

	if previous != nil {
		c.previews.Revoke(previous.PreviewID)
	}
	return *file, nil
}

// imageType sniffs data. SVG sniffs as text, so a declared image/svg+xml is trusted then.
func imageType(declared string, data []byte) (string, bool) {
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed, true
	}
	if strings.HasPrefix(declared, "image/svg+xml") && strings.HasPrefix(sniffed, "text/") {
		return "image/svg+xml", true
	}
	return "", false
}

// SetRecipient stores the recipient text as typed
func (c *Controller) SetRecipient(recipient string) {
	c.mu.Lock()
	c.recipient = recipient
	c.lastActive = c.now()
	c.mu.Unlock()
}

// Mint runs the mint action. It returns ErrMintInFlight without touching any state when a
// mint is already running. Every other outcome, including failures, is reported through the
// status and a nil error.
//
// The mint is detached from ctx cancellation: once started it runs until it is included,
// fails, or MintTimeout passes.
func (c *Controller) Mint(ctx context.Context) error {
	if !c.loading.CompareAndSwap(false, true) {
		return ErrMintInFlight
	}
	defer c.loading.Store(false)

	c.mu.Lock()
	c.lastActive = c.now()
	switch {
	case c.contract == nil:
		c.status = statusContractNotLoaded
		c.mu.Unlock()
		return nil
	case strings.TrimSpace(c.recipient) == "":
		c.status = statusInvalidRecipient
		c.mu.Unlock()
		return nil
	case c.file == nil:
		c.status = statusNoFile
		c.mu.Unlock()
		return nil
	}
	recipient := c.recipient
	c.status = statusMinting
	c.mu.Unlock()

	mintCtx := context.WithoutCancel(ctx)
	if c.limits.MintTimeout > 0 {
		var cancel context.CancelFunc
		mintCtx, cancel = context.WithTimeout(mintCtx, c.limits.MintTimeout)
		defer cancel()
	}

	receipt, err := c.contract.Mint(mintCtx, recipient)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActive = c.now()
	if err != nil {
		log.Error().Err(err).Str("recipient", recipient).Msg("Error minting NFT")
		c.status = statusMintError
		return nil
	}

	log.Info().
		Str("recipient", recipient).
		Str("tx", receipt.TxHash.Hex()).
		Uint64("block", receipt.BlockNumber).
		Str("fee_eth", receipt.Fee.String()).
		Msg("NFT minted")
	c.status = statusMinted
	c.lastReceipt = receipt
	return nil
}

// Loading reports whether a mint is in flight
func (c *Controller) Loading() bool {
	return c.loading.Load()
}

// touch marks the page view as active now
func (c *Controller) touch() {
	c.mu.Lock()
	c.lastActive = c.now()
	c.mu.Unlock()
}

// LastActive returns when the page view last did anything
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Snapshot returns a copy of the visible state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Recipient:   c.recipient,
		Status:      c.status,
		Loading:     c.loading.Load(),
		LastReceipt: c.lastReceipt,
	}
	if c.file != nil {
		snap.FileName = c.file.Name
		snap.FileSize = len(c.file.Data)
		snap.PreviewID = c.file.PreviewID
	}
	return snap
}

// Close drops the preview of the selected file. A closed controller refuses new files.
func (c *Controller) Close() {
	c.mu.Lock()
	file := c.file
	c.file = nil
	c.closed = true
	c.mu.Unlock()

	if file != nil {
		c.previews.Revoke(file.PreviewID)
	}
}
