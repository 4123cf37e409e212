// internal/output/manager.go
package output

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/valpere/landwatch/internal/utils"
	"github.com/valpere/landwatch/pkg/types"
)

// Source lists stored listings.
type Source interface {
	All(ctx context.Context) ([]types.Listing, error)
}

// Manager exports stored listings in the requested format.
type Manager struct {
	source Source
	logger *slog.Logger
}

// NewManager creates a new output manager
func NewManager(source Source, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = utils.NewComponentLogger("output")
	}
	return &Manager{source: source, logger: logger}
}

// GetWriter returns the writer for format at path.
func GetWriter(format Format, path string) (Writer, error) {
	switch format {
	case FormatXLSX:
		return NewExcelWriter(ExcelConfig{FilePath: path, AutoFilter: true, FreezePane: true})
	case FormatCSV:
		return NewCSVFileWriter(path)
	case FormatJSON:
		return NewJSONWriter(path)
	default:
		return nil, utils.NewError(utils.ErrCodeConfiguration, fmt.Sprintf("unsupported output format: %s", format)).Build()
	}
}

// Export writes every stored listing to path and returns the count.
func (m *Manager) Export(ctx context.Context, format Format, path string) (int, error) {
	listings, err := m.source.All(ctx)
	if err != nil {
		return 0, err
	}
	w, err := GetWriter(format, path)
	if err != nil {
		return 0, err
	}
	if err := w.Write(listings); err != nil {
		w.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	m.logger.Info("export written", "format", format, "path", path, "listings", len(listings))
	return len(listings), nil
}
