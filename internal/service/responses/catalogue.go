// Package responses provides the canned replies the chat demo streams.
package responses

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"chatwidget/internal/domain"
	"chatwidget/internal/domain/services"
	"chatwidget/internal/service/streaming"
)

//go:embed default_responses.yaml
var defaultResponses []byte

// Preset is one named reply
type Preset struct {
	Name        string
	Description string
	Chunks      []string
}

type presetFile struct {
	Presets map[string]struct {
		Description string `yaml:"description"`
		Chunks      any    `yaml:"chunks"`
	} `yaml:"presets"`
}

// Catalogue holds reply presets by name. It is read-only after loading.
type Catalogue struct {
	presets map[string]Preset
	// latency simulates a round trip before a preset is returned
	latency time.Duration
	logger  *slog.Logger
}

// Default returns the embedded catalogue.
func Default(logger *slog.Logger) (*Catalogue, error) {
	return Parse(defaultResponses, logger)
}

// Load reads a catalogue from a YAML file
func Load(path string, logger *slog.Logger) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read responses file: %w", err)
	}
	return Parse(data, logger)
}

// Parse decodes a YAML catalogue. Every preset needs at least one chunk.
func Parse(data []byte, logger *slog.Logger) (*Catalogue, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: parse responses: %v", domain.ErrValidation, err)
	}

	c := &Catalogue{
		presets: make(map[string]Preset, len(file.Presets)),
		logger:  logger,
	}
	for name, raw := range file.Presets {
		chunks, err := streaming.NormalizeChunks(raw.Chunks)
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		if len(chunks) == 0 {
			return nil, &domain.ValidationError{Message: fmt.Sprintf("preset %q has no chunks", name)}
		}
		c.presets[name] = Preset{
			Name:        name,
			Description: raw.Description,
			Chunks:      chunks,
		}
	}

	logger.Debug("responses loaded", "presets", len(c.presets))
	return c, nil
}

// WithLatency returns a copy of c whose sources wait d before returning chunks
func (c *Catalogue) WithLatency(d time.Duration) *Catalogue {
	clone := *c
	clone.latency = d
	return &clone
}

// Names returns preset names, sorted
func (c *Catalogue) Names() []string {
	names := make([]string, 0, len(c.presets))
	for name := range c.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a preset by name
func (c *Catalogue) Get(name string) (Preset, error) {
	p, ok := c.presets[name]
	if !ok {
		return Preset{}, &domain.NotFoundError{Message: fmt.Sprintf("response preset %q not found", name)}
	}
	return p, nil
}

// Random returns any preset, like the demo does for free-form user messages
func (c *Catalogue) Random() (Preset, error) {
	names := c.Names()
	if len(names) == 0 {
		return Preset{}, &domain.NotFoundError{Message: "response catalogue is empty"}
	}
	return c.presets[names[rand.Intn(len(names))]], nil
}

// Source returns a ChunkSource for the named preset. The lookup happens when
// the chunks are requested, so an unknown name fails the stream, not the caller.
func (c *Catalogue) Source(name string) services.ChunkSource {
	return &presetSource{catalogue: c, name: name}
}

type presetSource struct {
	catalogue *Catalogue
	name      string
}

// Chunks implements services.ChunkSource
func (s *presetSource) Chunks(ctx context.Context) ([]string, error) {
	if d := s.catalogue.latency; d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p, err := s.catalogue.Get(s.name)
	if err != nil {
		return nil, err
	}

	chunks := make([]string, len(p.Chunks))
	copy(chunks, p.Chunks)
	return chunks, nil
}
