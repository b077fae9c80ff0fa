package session

import "strings"

// Kind classifies a status message
type Kind string

const (
	KindIdle       Kind = "idle"
	KindNotice     Kind = "notice"
	KindInProgress Kind = "in_progress"
	KindSuccess    Kind = "success"
	KindError      Kind = "error"
)

// Messages shown to the user. They are part of the page contract and must not change.
const (
	MsgContractNotLoaded = "Contract not loaded."
	MsgInvalidRecipient  = "Please enter a valid recipient address."
	MsgNoFile            = "Please select an image file."
	MsgMinting           = "Minting NFT..."
	MsgMinted            = "NFT minted successfully!"
	MsgMintError         = "Error minting NFT."
)

// Status is the single message the page shows. Every transition overwrites it.
type Status struct {
	Message string
	Kind    Kind
}

var (
	statusIdle              = Status{Kind: KindIdle}
	statusContractNotLoaded = Status{Message: MsgContractNotLoaded, Kind: KindNotice}
	statusInvalidRecipient  = Status{Message: MsgInvalidRecipient, Kind: KindNotice}
	statusNoFile            = Status{Message: MsgNoFile, Kind: KindNotice}
	statusMinting           = Status{Message: MsgMinting, Kind: KindInProgress}
	statusMinted            = Status{Message: MsgMinted, Kind: KindSuccess}
	statusMintError         = Status{Message: MsgMintError, Kind: KindError}
)

// Tone picks the banner colour the page uses for the message
func (s Status) Tone() string {
	switch {
	case strings.Contains(s.Message, "successfully"):
		return "success"
	case strings.Contains(s.Message, "Error"):
		return "error"
	default:
		return "neutral"
	}
}
