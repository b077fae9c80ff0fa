package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/hashicorp/go-getter"
)

// ABIFetchTimeout bounds the download of a remote ABI artifact
const ABIFetchTimeout = 120 * time.Second

// hardhatArtifact is the part of a Hardhat/Foundry build artifact we care about
type hardhatArtifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
}

// ABILoader reads contract ABIs from local files or anything go-getter understands
// (http, git, s3, gcs...). Remote sources are downloaded into WorkDir, or into a
// temporary directory removed once the ABI is read when WorkDir is empty.
type ABILoader struct {
	fileReader FileReader
	WorkDir    string
}

// FileReader defines the interface for reading files
type FileReader interface {
	// ReadFile reads the file at the given path and returns the contents
	ReadFile(path string) ([]byte, error)
}

// DefaultFileReader implements FileReader using os.ReadFile
type DefaultFileReader struct{}

func (d *DefaultFileReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// NewABILoader creates a new ABILoader with the given FileReader
func NewABILoader(fileReader FileReader) *ABILoader {
	return &ABILoader{fileReader: fileReader}
}

// NewDefaultABILoader creates an ABILoader with the default file reader
func NewDefaultABILoader() *ABILoader {
	return NewABILoader(&DefaultFileReader{})
}

// Load resolves source and parses the ABI it points to
func (l *ABILoader) Load(ctx context.Context, source string) (abi.ABI, error) {
	path := source
	if _, err := os.Stat(source); err != nil {
		fetched, cleanup, err := l.fetch(ctx, source)
		if err != nil {
			return abi.ABI{}, err
		}
		defer cleanup()
		path = fetched
	}

	body, err := l.fileReader.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to read abi file: %w", err)
	}
	return ParseABI(body)
}

// fetch downloads source and returns its local path plus a func removing what it created
func (l *ABILoader) fetch(ctx context.Context, source string) (string, func(), error) {
	workDir := l.WorkDir
	cleanup := func() {}
	if workDir == "" {
		dir, err := os.MkdirTemp("", "minter-abi-")
		if err != nil {
			return "", cleanup, fmt.Errorf("failed to create abi work dir: %w", err)
		}
		workDir = dir
		cleanup = func() { _ = os.RemoveAll(dir) }
	}
	dst := filepath.Join(workDir, "artifact.json")

	ctx, cancel := context.WithTimeout(ctx, ABIFetchTimeout)
	defer cancel()

	pwd, _ := os.Getwd()
	client := getter.Client{
		Ctx:  ctx,
		Src:  source,
		Dst:  dst,
		Pwd:  pwd,
		Mode: getter.ClientModeFile,
	}
	if err := client.Get(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("failed to fetch abi from %s: %w", source, err)
	}
	return dst, cleanup, nil
}

// ParseABI accepts either a build artifact with an "abi" field or a bare ABI array
func ParseABI(body []byte) (abi.ABI, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return abi.ABI{}, fmt.Errorf("abi file is empty")
	}

	raw := trimmed
	if trimmed[0] == '{' {
		var artifact hardhatArtifact
		if err := json.Unmarshal(trimmed, &artifact); err != nil {
			return abi.ABI{}, fmt.Errorf("failed to parse artifact: %w", err)
		}
		if len(artifact.ABI) == 0 {
			return abi.ABI{}, fmt.Errorf("artifact has no abi field")
		}
		raw = artifact.ABI
	}

	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse abi: %w", err)
	}
	return parsed, nil
}
