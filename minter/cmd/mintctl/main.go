package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Cogwheel-Validator/spectra-nft-minter/minter/models"
	"github.com/Cogwheel-Validator/spectra-nft-minter/minter/rpc"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Logger()
}

func main() {
	server := flag.String("server", "http://localhost:8080", "base URL of the minter")
	file := flag.String("file", "", "image to mint")
	recipient := flag.String("recipient", "", "address receiving the NFT")
	sessionID := flag.String("session", "", "page view ID, a fresh one when empty")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	if *sessionID == "" {
		*sessionID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := rpc.NewMintServiceClient(http.DefaultClient, *server, *sessionID)
	state, err := run(ctx, client, *file, *recipient)
	if err != nil {
		log.Fatal().Err(err).Str("server", *server).Msg("Mint request failed")
	}

	event := log.Info()
	if state.Tone == "error" {
		event = log.Error()
	}
	event.
		Str("session", *sessionID).
		Str("contract", state.ContractAddress).
		Str("tx", state.TxHash).
		Uint64("block", state.BlockNumber).
		Str("fee_eth", state.FeeEth).
		Msg(state.Status)

	if state.Tone != "success" {
		os.Exit(1)
	}
}

// run walks the same steps as the form: recipient, image, then the mint button
func run(ctx context.Context, client *rpc.MintServiceClient, file, recipient string) (*models.SessionState, error) {
	if _, err := client.SetRecipient(ctx, recipient); err != nil {
		return nil, err
	}

	// no file is left for the server to report, like an empty picker
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		state, err := client.SelectFile(ctx, filepath.Base(file), mime.TypeByExtension(filepath.Ext(file)), data)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("file", state.FileName).Int("bytes", state.FileSize).Msg("Image selected")
	}

	return client.Mint(ctx)
}
