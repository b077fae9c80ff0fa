package models

// Request and response messages of the minter.v1.MintService API.
// They travel as JSON over the Connect protocol.

// SessionHeader identifies the page view a request belongs to
const SessionHeader = "Mint-Session"

type GetStateRequest struct{}

type SetRecipientRequest struct {
	Recipient string `json:"recipient"`
}

// SelectFileRequest carries the picked or dropped image. Data is base64 in JSON.
type SelectFileRequest struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

type MintRequest struct{}

// SessionState is what the page renders
type SessionState struct {
	ContractAddress string `json:"contract_address"`
	Recipient       string `json:"recipient"`

	FileName   string `json:"file_name,omitempty"`
	FileSize   int    `json:"file_size,omitempty"`
	PreviewURL string `json:"preview_url,omitempty"`

	Status     string `json:"status"`
	StatusKind string `json:"status_kind"`

	// Tone is success, error or neutral
	Tone string `json:"tone"`

	// Loading is true while a mint is in flight
	Loading bool `json:"loading"`

	TxHash      string `json:"tx_hash,omitempty"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	FeeEth      string `json:"fee_eth,omitempty"`
}
