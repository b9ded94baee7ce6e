package maintenance

import (
	"context"
	"log"

	"github.com/ryansname/drivectl/src/tasks"
)

// AssetManager fetches models and themes. Implementations may block; they are
// only called from background tasks, except UpdateHoliday which must not block.
type AssetManager interface {
	DownloadAllModels()
	DownloadModel(model string)
	UpdateModels(boot bool)

	UpdateActiveTheme()
	DownloadTheme(kind, name string)
	UpdateThemes(boot bool)
	UpdateHoliday()
}

// One-shot requests left in the ephemeral store by the UI
const (
	KeyDownloadAllModels = "DownloadAllModels"
	KeyModelToDownload   = "ModelToDownload"
	KeyUpdateTheme       = "UpdateTheme"
)

// ThemeAsset maps a request key to the asset kind it downloads
type ThemeAsset struct {
	Key  string
	Kind string
}

var ThemeAssets = []ThemeAsset{
	{"ColorToDownload", "colors"},
	{"DistanceIconToDownload", "distance_icons"},
	{"IconToDownload", "icons"},
	{"SignalToDownload", "signals"},
	{"SoundToDownload", "sounds"},
	{"WheelToDownload", "steering_wheels"},
}

// CheckAssets dispatches any pending asset requests. A request key is removed
// once its job has run; a dropped dispatch leaves it for the next cycle.
func (m *Maintenance) CheckAssets(ctx context.Context) {
	jobCtx := context.WithoutCancel(ctx)

	if all, _ := m.memory.GetBool(ctx, KeyDownloadAllModels); all {
		m.tasks.Dispatch(tasks.DownloadAllModels, func() {
			m.assets.DownloadAllModels()
			m.clear(jobCtx, KeyDownloadAllModels)
		})
	}

	if model, ok, _ := m.memory.Get(ctx, KeyModelToDownload); ok {
		m.tasks.Dispatch(tasks.DownloadModel, func() {
			m.assets.DownloadModel(model)
			m.clear(jobCtx, KeyModelToDownload)
		})
	}

	if update, _ := m.memory.GetBool(ctx, KeyUpdateTheme); update {
		m.tasks.Dispatch(tasks.UpdateActiveTheme, func() {
			m.assets.UpdateActiveTheme()
			m.clear(jobCtx, KeyUpdateTheme)
		})
	}

	for _, asset := range ThemeAssets {
		name, ok, _ := m.memory.Get(ctx, asset.Key)
		if !ok {
			continue
		}
		m.tasks.Dispatch(tasks.DownloadTheme, func() {
			m.assets.DownloadTheme(asset.Kind, name)
			m.clear(jobCtx, asset.Key)
		})
	}
}

func (m *Maintenance) clear(ctx context.Context, key string) {
	if err := m.memory.Remove(ctx, key); err != nil {
		log.Printf("Failed to clear %s: %v\n", key, err)
	}
}
