package tools

import (
	"github.com/nugget/easycall/internal/config"
	"github.com/nugget/easycall/internal/desktop"
	"github.com/nugget/easycall/internal/fetch"
	"github.com/nugget/easycall/internal/search"
)

// Deps are the collaborators built-in tools delegate to. Nil members
// disable the tools that need them.
type Deps struct {
	Fetcher *fetch.Fetcher
	Search  search.Provider
	Memory  *MemoryTools
	Desktop desktop.Automation
}

// NewBuiltinRegistry registers the built-in tools api enables. The
// memory-save id enables both memory_save and memory_save_batch.
func NewBuiltinRegistry(api config.ApiConfig, deps Deps) *Registry {
	r := NewRegistry()

	if api.ToolEnabled(config.ToolFetch) && deps.Fetcher != nil {
		r.Register(&Tool{
			Name:        fetch.ToolName,
			Description: "Fetch webpage text.",
			Parameters:  fetch.ToolDefinition(),
			Handler:     fetch.ToolHandler(deps.Fetcher),
		})
	}

	if api.ToolEnabled(config.ToolBingSearch) && deps.Search != nil {
		r.Register(&Tool{
			Name:        search.ToolName,
			Description: "Search web with Bing.",
			Parameters:  search.ToolDefinition(),
			Handler:     search.ToolHandler(deps.Search),
		})
	}

	if api.ToolEnabled(config.ToolMemorySave) && deps.Memory != nil {
		r.Register(&Tool{
			Name:        MemorySaveToolName,
			Description: "Save a long-term memory about the user that will stay useful. Never save passwords, keys, or other secrets.",
			Parameters:  SaveDefinition(),
			Handler:     deps.Memory.Save,
		})
		r.Register(&Tool{
			Name:        MemorySaveBatchToolName,
			Description: "Save up to 7 long-term memories about the user at once. Never save sensitive information.",
			Parameters:  SaveBatchDefinition(),
			Handler:     deps.Memory.SaveBatch,
		})
	}

	if api.ToolEnabled(config.ToolDesktopScreenshot) && deps.Desktop != nil {
		r.Register(&Tool{
			Name:        desktop.ScreenshotToolName,
			Description: "Capture the desktop, one monitor, or a screen region as a WebP image.",
			Parameters:  desktop.ScreenshotToolDefinition(),
			Handler:     desktop.ScreenshotToolHandler(deps.Desktop),
		})
	}

	if api.ToolEnabled(config.ToolDesktopWait) {
		r.Register(&Tool{
			Name:        desktop.WaitToolName,
			Description: "Pause for a number of milliseconds, for example while a window opens.",
			Parameters:  desktop.WaitToolDefinition(),
			Handler:     desktop.WaitToolHandler(),
		})
	}

	return r
}
