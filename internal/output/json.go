// internal/output/json.go
package output

import (
	"encoding/json"
	"os"

	"github.com/valpere/landwatch/internal/utils"
	"github.com/valpere/landwatch/pkg/types"
)

// JSONWriter collects listings and writes one indented array on Close.
type JSONWriter struct {
	file     *os.File
	listings []types.Listing
}

// NewJSONWriter creates filename.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeOutputFailed, "create JSON file").WithContext("path", filename)
	}
	return &JSONWriter{file: f, listings: []types.Listing{}}, nil
}

// Write buffers listings.
func (w *JSONWriter) Write(listings []types.Listing) error {
	w.listings = append(w.listings, listings...)
	return nil
}

// Close encodes the buffer and closes the file.
func (w *JSONWriter) Close() error {
	defer w.file.Close()
	enc := json.NewEncoder(w.file)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(w.listings); err != nil {
		return utils.WrapError(err, utils.ErrCodeOutputFailed, "encode JSON")
	}
	return nil
}
