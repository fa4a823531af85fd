// Package ingest decodes raw metric files and item catalogs.
//
// Metric files hold an array of loosely typed records that are handed to
// analytics.ProcessMetrics unchanged. JSON, newline-delimited JSON and CBOR
// are supported; the format is chosen from the file extension.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"

	"github.com/onnwee/rankiro/internal/ranking"
)

// Format identifies an input encoding.
type Format string

// Supported formats.
const (
	FormatJSON   Format = "json"
	FormatNDJSON Format = "ndjson"
	FormatCBOR   Format = "cbor"
)

// Decoding errors.
var (
	ErrUnknownFormat = errors.New("unknown input format")
	ErrNotAnArray    = errors.New("input is not an array")
	ErrInvalidCBOR   = errors.New("invalid CBOR data")
)

// cborMode decodes maps with string keys so records look the same as JSON input.
var cborMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DefaultMapType:   reflect.TypeOf(map[string]any(nil)),
		MapKeyByteString: cbor.MapKeyByteStringAllowed,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("ingest: invalid CBOR decode options: %v", err))
	}
	return dm
}()

// FormatFromPath returns the format implied by a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".ndjson", ".jsonl":
		return FormatNDJSON, nil
	case ".cbor":
		return FormatCBOR, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
}

// DecodeRecords decodes raw metric records. Elements are returned as decoded
// (maps, or whatever else the input holds) for the record builder to judge.
func DecodeRecords(r io.Reader, format Format) ([]any, error) {
	switch format {
	case FormatJSON:
		var records []any
		if err := decodeJSONArray(r, &records); err != nil {
			return nil, err
		}
		return records, nil

	case FormatNDJSON:
		return decodeNDJSON(r)

	case FormatCBOR:
		var records []any
		if err := decodeCBORArray(r, &records); err != nil {
			return nil, err
		}
		return records, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// DecodeItems decodes an item catalog array. NDJSON holds one item per line.
func DecodeItems(r io.Reader, format Format) ([]ranking.Item, error) {
	var items []ranking.Item
	switch format {
	case FormatJSON:
		if err := decodeJSONArray(r, &items); err != nil {
			return nil, err
		}

	case FormatNDJSON:
		dec := json.NewDecoder(r)
		for {
			var item ranking.Item
			err := dec.Decode(&item)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("failed to decode item %d: %w", len(items), err)
			}
			items = append(items, item)
		}

	case FormatCBOR:
		if err := decodeCBORArray(r, &items); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	if items == nil {
		items = []ranking.Item{}
	}
	return items, nil
}

// ReadRecordsFile decodes the metric records in a file.
func ReadRecordsFile(path string) ([]any, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metrics file: %w", err)
	}
	defer f.Close()

	records, err := DecodeRecords(f, format)
	if err != nil {
		return nil, fmt.Errorf("failed to decode metrics file %s: %w", path, err)
	}
	return records, nil
}

// ReadItemsFile decodes the item catalog in a file.
func ReadItemsFile(path string) ([]ranking.Item, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open items file: %w", err)
	}
	defer f.Close()

	items, err := DecodeItems(f, format)
	if err != nil {
		return nil, fmt.Errorf("failed to decode items file %s: %w", path, err)
	}
	return items, nil
}

func decodeJSONArray(r io.Reader, v any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed[0] != '[' {
		return ErrNotAnArray
	}
	if err := json.Unmarshal([]byte(trimmed), v); err != nil {
		return fmt.Errorf("failed to decode JSON: %w", err)
	}
	return nil
}

func decodeNDJSON(r io.Reader) ([]any, error) {
	records := []any{}
	dec := json.NewDecoder(r)
	for {
		var rec any
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
}

func decodeCBORArray(r io.Reader, v any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if len(data) == 0 {
		return ErrInvalidCBOR
	}
	// Major type 4 is an array.
	if data[0]>>5 != 4 {
		return ErrNotAnArray
	}
	if err := cborMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCBOR, err)
	}
	return nil
}

// EncodeCBOR encodes a value to CBOR bytes.
func EncodeCBOR(v any) ([]byte, error) {
	data, err := cbor.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR: %w", err)
	}
	return data, nil
}
