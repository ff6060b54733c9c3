package catalog

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/modelmux/modelmux/pkg/types"
)

// The overlay file is the catalog's remote-update layer: a YAML
// document of model metadata, preset slots and aliases merged on top of
// the baseline. Changes to the file are picked up live.

type overlayModel struct {
	ID              string                  `mapstructure:"id"`
	Provider        string                  `mapstructure:"provider"`
	Capabilities    []string                `mapstructure:"capabilities"`
	ContextWindow   int                     `mapstructure:"context_window"`
	EmbeddingDims   int                     `mapstructure:"embedding_dims"`
	MaxOutputTokens int                     `mapstructure:"max_output_tokens"`
	Parameters      map[string]overlayParam `mapstructure:"parameters"`
	InputPrice      float64                 `mapstructure:"input_price"`
	OutputPrice     float64                 `mapstructure:"output_price"`
}

type overlayParam struct {
	Availability string   `mapstructure:"availability"`
	Min          *float64 `mapstructure:"min"`
	Max          *float64 `mapstructure:"max"`
	Fixed        *float64 `mapstructure:"fixed"`
}

type overlayPreset struct {
	Model    string                   `mapstructure:"model"`
	Defaults *types.GenerationOptions `mapstructure:"defaults"`
}

type overlayFile struct {
	Models  []overlayModel                      `mapstructure:"models"`
	Presets map[string]map[string]overlayPreset `mapstructure:"presets"`
	Aliases map[string]string                   `mapstructure:"aliases"`
}

// Overlay watches one YAML file and merges its contents into the
// catalog on load and on every change.
type Overlay struct {
	catalog *Catalog
	viper   *viper.Viper
	path    string
	watcher *fsnotify.Watcher
}

// NewOverlay reads the overlay file and applies it. The file must
// exist; catalogs without an overlay simply never construct one.
func NewOverlay(c *Catalog, path string) (*Overlay, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("catalog: failed to read overlay %s: %w", path, err)
	}

	o := &Overlay{catalog: c, viper: v, path: path}
	if err := o.apply(); err != nil {
		return nil, err
	}
	return o, nil
}

// Watch re-applies the overlay whenever the file changes. Malformed
// updates are logged and skipped; the previous state stays in effect.
// The watcher runs until Close.
func (o *Overlay) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: failed to watch overlay: %w", err)
	}
	// Editors replace files on save, so watch the directory and filter
	// events down to the overlay file.
	if err := watcher.Add(filepath.Dir(o.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("catalog: failed to watch overlay: %w", err)
	}
	o.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(o.path) {
					continue
				}
				if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
					continue
				}
				o.reload(event.Name)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

func (o *Overlay) reload(name string) {
	if err := o.viper.ReadInConfig(); err != nil {
		o.catalog.logger.WithError(err).Warn("Overlay reload failed, keeping previous catalog state")
		return
	}
	if err := o.apply(); err != nil {
		o.catalog.logger.WithError(err).Warn("Overlay reload failed, keeping previous catalog state")
		return
	}
	o.catalog.logger.WithField("file", name).Info("Catalog overlay reloaded")
}

// Close stops the change watcher. Safe when Watch never ran.
func (o *Overlay) Close() error {
	if o.watcher == nil {
		return nil
	}
	watcher := o.watcher
	o.watcher = nil
	return watcher.Close()
}

func (o *Overlay) apply() error {
	var file overlayFile
	if err := o.viper.Unmarshal(&file); err != nil {
		return fmt.Errorf("catalog: failed to decode overlay: %w", err)
	}

	infos := make([]types.ModelInfo, 0, len(file.Models))
	for _, m := range file.Models {
		if m.ID == "" {
			return fmt.Errorf("catalog: overlay model entry missing id")
		}
		infos = append(infos, m.toModelInfo())
	}
	o.catalog.MergeModels(infos)

	for tier, byCapability := range file.Presets {
		for capabilityName, preset := range byCapability {
			o.catalog.SetPreset(tier, types.Capability(capabilityName), types.Preset{
				Model:    preset.Model,
				Defaults: preset.Defaults,
			})
		}
	}

	if len(file.Aliases) > 0 {
		o.catalog.SetAliases(file.Aliases)
	}
	return nil
}

func (m overlayModel) toModelInfo() types.ModelInfo {
	info := types.ModelInfo{
		ID:              m.ID,
		Provider:        m.Provider,
		ContextWindow:   m.ContextWindow,
		EmbeddingDims:   m.EmbeddingDims,
		MaxOutputTokens: m.MaxOutputTokens,
	}
	for _, capabilityName := range m.Capabilities {
		info.Capabilities = append(info.Capabilities, types.Capability(capabilityName))
	}
	if len(m.Parameters) > 0 {
		info.Parameters = make(map[string]types.ParamSpec, len(m.Parameters))
		for name, p := range m.Parameters {
			info.Parameters[name] = types.ParamSpec{
				Availability: types.ParamAvailability(p.Availability),
				Min:          p.Min,
				Max:          p.Max,
				Fixed:        p.Fixed,
			}
		}
	}
	if m.InputPrice > 0 || m.OutputPrice > 0 {
		info.Pricing = &types.ModelPricing{
			InputPrice:  m.InputPrice,
			OutputPrice: m.OutputPrice,
			Currency:    "USD",
		}
	}
	return info
}
