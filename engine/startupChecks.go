package engine

import (
	"fmt"
	"os"

	"github.com/drummonds/pdfbitmap/config"
)

// StartupChecks performs all the checks to make sure everything works
func (serverHandler *ServerHandler) StartupChecks() error {
	if err := rendererChecks(serverHandler); err != nil {
		return err
	}
	if err := exportDirectoryChecks(serverHandler.ServerConfig); err != nil {
		return err
	}
	exportFormatChecks(&serverHandler.ServerConfig)
	return nil
}

func rendererChecks(serverHandler *ServerHandler) error {
	if serverHandler.Renderer == nil {
		Logger.Error("No render backend configured", "backend", serverHandler.ServerConfig.RenderBackend)
		return fmt.Errorf("no render backend configured")
	}
	if serverHandler.Renderer.Name() != serverHandler.ServerConfig.RenderBackend {
		Logger.Warn("Render backend differs from configuration", "configured", serverHandler.ServerConfig.RenderBackend, "using", serverHandler.Renderer.Name())
	}
	Logger.Info("Render backend ready", "backend", serverHandler.Renderer.Name())
	return nil
}

// exportDirectoryChecks ensures the export directory exists
func exportDirectoryChecks(serverConfig config.ViewerConfig) error {
	if serverConfig.ExportPath == "" {
		Logger.Warn("Export path not configured, exports will be written to the working directory")
		return nil
	}

	exportInfo, err := os.Stat(serverConfig.ExportPath)
	if err != nil {
		if os.IsNotExist(err) {
			Logger.Info("Creating export directory", "path", serverConfig.ExportPath)
			if err := os.MkdirAll(serverConfig.ExportPath, 0755); err != nil {
				Logger.Error("Failed to create export directory", "path", serverConfig.ExportPath, "error", err)
				return err
			}
			return nil
		}
		Logger.Error("Error checking export directory", "path", serverConfig.ExportPath, "error", err)
		return err
	}

	if !exportInfo.IsDir() {
		Logger.Error("Export path exists but is not a directory", "path", serverConfig.ExportPath)
		return fmt.Errorf("export path is not a directory: %s", serverConfig.ExportPath)
	}

	Logger.Info("Export directory exists", "path", serverConfig.ExportPath)
	return nil
}

// exportFormatChecks falls back to png when EXPORT_FORMAT is not an image
// format we can write
func exportFormatChecks(serverConfig *config.ViewerConfig) {
	ext, err := ExportFormat(serverConfig.ExportFormat)
	if err != nil {
		Logger.Warn("Unsupported export format, using png", "format", serverConfig.ExportFormat, "error", err)
		ext = "png"
	}
	serverConfig.ExportFormat = ext
}
