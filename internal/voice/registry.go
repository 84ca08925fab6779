package voice

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/schollz/closestmatch"

	"github.com/tahcohcat/monument-narrator/internal/logger"
)

// CloudCatalog exposes the curated voices of the premium provider.
type CloudCatalog interface {
	Configured() bool
	Voices() []Option
}

// DeviceLister enumerates the voices of the local speech engine.
type DeviceLister interface {
	Voices(ctx context.Context) ([]Option, error)
}

// PermissionRequester is asked for audio permission once during initialization.
type PermissionRequester interface {
	RequestAutomatic(ctx context.Context) bool
}

// preferredDeviceNames are substrings of device voice names known to sound
// good for narration.
var preferredDeviceNames = []string{
	"samantha",
	"daniel",
	"karen",
	"serena",
	"alex",
	"google us english",
	"english (america)",
	"en-us-x",
}

// Registry holds the voices available for this process.
type Registry struct {
	cloud      CloudCatalog
	device     DeviceLister
	permission PermissionRequester
	logger     *logger.Log

	mu              sync.RWMutex
	initialized     bool
	cloudConfigured bool
	cloudVoices     []Option
	deviceVoices    []Option
}

func NewRegistry(cloud CloudCatalog, device DeviceLister, permission PermissionRequester) *Registry {
	return &Registry{
		cloud:      cloud,
		device:     device,
		permission: permission,
		logger:     logger.New().WithField("component", "voices"),
	}
}

// Initialize discovers the cloud and device voices. It runs once; later calls
// return immediately. Provider failures never reach the caller.
func (r *Registry) Initialize(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return
	}

	if r.permission != nil {
		granted := r.permission.RequestAutomatic(ctx)
		r.logger.Debug(fmt.Sprintf("audio permission granted: %t", granted))
	}

	r.cloudConfigured = r.cloud != nil && r.cloud.Configured()
	r.cloudVoices = nil
	if r.cloudConfigured {
		for _, v := range r.cloud.Voices() {
			v.Provider = ProviderCloud
			r.cloudVoices = append(r.cloudVoices, v)
		}
	}

	r.deviceVoices = r.loadDeviceVoices(ctx)
	r.initialized = true

	r.logger.Info(fmt.Sprintf("voices ready: %d cloud, %d device", len(r.cloudVoices), len(r.deviceVoices)))
}

func (r *Registry) loadDeviceVoices(ctx context.Context) []Option {
	if r.device == nil {
		return []Option{DefaultDeviceVoice()}
	}

	listed, err := r.device.Voices(ctx)
	if err != nil {
		r.logger.WithError(err).Warn("could not enumerate device voices, using default")
		return []Option{DefaultDeviceVoice()}
	}

	taken := make(map[string]bool, len(r.cloudVoices)+len(listed))
	for _, v := range r.cloudVoices {
		taken[v.ID] = true
	}

	voices := make([]Option, 0, len(listed))
	for _, v := range listed {
		if v.ID == "" || taken[v.ID] {
			continue
		}
		taken[v.ID] = true
		v.Provider = ProviderDevice
		voices = append(voices, v)
	}

	if len(voices) == 0 {
		return []Option{DefaultDeviceVoice()}
	}
	return voices
}

// Initialized reports whether Initialize has completed.
func (r *Registry) Initialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initialized
}

// CloudConfigured reports whether the premium provider was usable at initialization.
func (r *Registry) CloudConfigured() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cloudConfigured
}

// AvailableVoices returns the cloud voices followed by the device voices.
func (r *Registry) AvailableVoices() []Option {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Option, 0, len(r.cloudVoices)+len(r.deviceVoices))
	out = append(out, r.cloudVoices...)
	out = append(out, r.deviceVoices...)
	return out
}

// Lookup finds an available voice by identifier.
func (r *Registry) Lookup(id string) (Option, bool) {
	if id == "" {
		return Option{}, false
	}
	for _, v := range r.AvailableVoices() {
		if v.ID == id {
			return v, true
		}
	}
	return Option{}, false
}

// BestVoice returns the pinned cloud voice when the cloud provider is
// configured, otherwise the best device voice. Before Initialize has run it
// returns the synthesized device fallback.
func (r *Registry) BestVoice() (Option, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.initialized {
		return DefaultDeviceVoice(), true
	}
	if r.cloudConfigured && len(r.cloudVoices) > 0 {
		return r.cloudVoices[0], true
	}
	return bestDevice(r.deviceVoices), true
}

// BestDeviceVoice ranks only the device voices. It is what the fallback path
// narrates with.
func (r *Registry) BestDeviceVoice() (Option, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.initialized {
		return DefaultDeviceVoice(), true
	}
	return bestDevice(r.deviceVoices), true
}

func bestDevice(voices []Option) Option {
	for _, v := range voices {
		if !v.IsEnglish() {
			continue
		}
		name := strings.ToLower(v.Name)
		for _, preferred := range preferredDeviceNames {
			if strings.Contains(name, preferred) {
				return v
			}
		}
	}

	for _, v := range voices {
		if v.IsEnglish() {
			return v
		}
	}

	if len(voices) > 0 {
		return voices[0]
	}
	return DefaultDeviceVoice()
}

// Search returns up to n voices whose display name is closest to query.
func (r *Registry) Search(query string, n int) []Option {
	query = strings.ToLower(strings.TrimSpace(query))
	voices := r.AvailableVoices()
	if query == "" || n <= 0 || len(voices) == 0 {
		return nil
	}

	byName := make(map[string][]Option, len(voices))
	names := make([]string, 0, len(voices))
	for _, v := range voices {
		key := strings.ToLower(v.Name)
		if _, seen := byName[key]; !seen {
			names = append(names, key)
		}
		byName[key] = append(byName[key], v)
	}

	cm := closestmatch.New(names, []int{2, 3})

	var out []Option
	for _, name := range cm.ClosestN(query, n) {
		for _, v := range byName[name] {
			if len(out) == n {
				return out
			}
			out = append(out, v)
		}
	}
	return out
}
