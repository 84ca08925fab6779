// Package voice describes the narrator voices offered by the cloud and device
// speech providers and ranks them to pick a default.
package voice

import "strings"

// Provider identifies the synthesis backend that owns a voice.
type Provider string

const (
	ProviderCloud  Provider = "cloud"
	ProviderDevice Provider = "device"
)

// Quality is an ordinal voice category; higher is better.
type Quality int

const (
	QualityBasic Quality = iota
	QualityEnhanced
	QualityPremium
)

func (q Quality) String() string {
	switch q {
	case QualityEnhanced:
		return "enhanced"
	case QualityPremium:
		return "premium"
	default:
		return "basic"
	}
}

// MarshalText keeps the JSON form readable for API clients.
func (q Quality) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// DefaultID is the identifier of the synthesized device fallback voice. The
// device engine is invoked without an explicit voice when it is selected.
const DefaultID = "default"

// Option is a selectable narrator voice.
type Option struct {
	ID       string   `json:"identifier"`
	Name     string   `json:"display_name"`
	Language string   `json:"language"`
	Quality  Quality  `json:"quality"`
	Gender   string   `json:"gender,omitempty"`
	Provider Provider `json:"provider"`
}

// IsCloud reports whether the voice is served by the premium cloud provider.
func (o Option) IsCloud() bool {
	return o.Provider == ProviderCloud
}

// IsEnglish reports whether the language tag is an English variant ("en", "en-US", "en_GB").
func (o Option) IsEnglish() bool {
	lang := strings.ToLower(o.Language)
	return lang == "en" || strings.HasPrefix(lang, "en-") || strings.HasPrefix(lang, "en_")
}

// DefaultDeviceVoice is used whenever the device engine reports no voices.
func DefaultDeviceVoice() Option {
	return Option{
		ID:       DefaultID,
		Name:     "Default device voice",
		Language: "en-US",
		Quality:  QualityBasic,
		Provider: ProviderDevice,
	}
}
