package device

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/tahcohcat/monument-narrator/internal/voice"
)

// baseWordsPerMinute is the normal speaking rate of both drivers.
const baseWordsPerMinute = 175

// driver knows the command line of one speech synthesizer.
type driver interface {
	name() string
	binary() string
	speakArgs(opts Options) []string
	listArgs() []string
	parseVoices(out []byte) []voice.Option
}

func driverFor(name, goos string) (driver, error) {
	switch name {
	case "espeak", "espeak-ng":
		return espeakDriver{}, nil
	case "say":
		return sayDriver{}, nil
	case "":
		if goos == "darwin" {
			return sayDriver{}, nil
		}
		return espeakDriver{}, nil
	default:
		return nil, fmt.Errorf("unknown device speech driver %q", name)
	}
}

func wordsPerMinute(rate float64) int {
	if rate <= 0 {
		rate = 1.0
	}
	return int(math.Round(baseWordsPerMinute * rate))
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

type espeakDriver struct{}

func (espeakDriver) name() string   { return "espeak" }
func (espeakDriver) binary() string { return "espeak-ng" }

// speakArgs reads the text from stdin so utterances starting with a dash are
// not taken for flags.
func (espeakDriver) speakArgs(opts Options) []string {
	args := []string{"--stdin"}

	switch {
	case opts.Voice.ID != "" && opts.Voice.ID != voice.DefaultID:
		args = append(args, "-v", opts.Voice.ID)
	case opts.Language != "":
		args = append(args, "-v", strings.ToLower(opts.Language))
	}

	args = append(args, "-s", fmt.Sprint(wordsPerMinute(opts.Rate)))

	if opts.Pitch > 0 {
		args = append(args, "-p", fmt.Sprint(clamp(int(math.Round(50*opts.Pitch)), 0, 99)))
	}
	if opts.Volume > 0 {
		args = append(args, "-a", fmt.Sprint(clamp(int(math.Round(100*opts.Volume)), 0, 200)))
	}
	return args
}

func (espeakDriver) listArgs() []string {
	return []string{"--voices"}
}

// parseVoices reads the table printed by "espeak-ng --voices":
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US
func (espeakDriver) parseVoices(out []byte) []voice.Option {
	var voices []voice.Option

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] == "Pty" {
			continue
		}

		gender := ""
		if _, g, ok := strings.Cut(fields[2], "/"); ok {
			switch g {
			case "M":
				gender = "male"
			case "F":
				gender = "female"
			}
		}

		voices = append(voices, voice.Option{
			ID:       fields[4],
			Name:     strings.ReplaceAll(fields[3], "_", " "),
			Language: normalizeLanguage(fields[1]),
			Quality:  voice.QualityBasic,
			Gender:   gender,
			Provider: voice.ProviderDevice,
		})
	}
	return voices
}

type sayDriver struct{}

func (sayDriver) name() string   { return "say" }
func (sayDriver) binary() string { return "say" }

// speakArgs has no pitch or volume flags; say ignores them.
func (sayDriver) speakArgs(opts Options) []string {
	args := []string{"-f", "-"}
	if opts.Voice.ID != "" && opts.Voice.ID != voice.DefaultID {
		args = append(args, "-v", opts.Voice.ID)
	}
	return append(args, "-r", fmt.Sprint(wordsPerMinute(opts.Rate)))
}

func (sayDriver) listArgs() []string {
	return []string{"-v", "?"}
}

// parseVoices reads the list printed by `say -v '?'`:
//
//	Samantha            en_US    # Hello, my name is Samantha.
//	Eddy (English (UK)) en_GB    # Hello! My name is Eddy.
func (sayDriver) parseVoices(out []byte) []voice.Option {
	var voices []voice.Option

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line, _, _ := strings.Cut(scanner.Text(), "#")
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		locale := fields[len(fields)-1]
		name := strings.Join(fields[:len(fields)-1], " ")

		quality := voice.QualityBasic
		if strings.Contains(strings.ToLower(name), "enhanced") || strings.Contains(strings.ToLower(name), "premium") {
			quality = voice.QualityEnhanced
		}

		voices = append(voices, voice.Option{
			ID:       name,
			Name:     name,
			Language: normalizeLanguage(locale),
			Quality:  quality,
			Provider: voice.ProviderDevice,
		})
	}
	return voices
}

// normalizeLanguage turns "en_us" or "en-us" into "en-US".
func normalizeLanguage(tag string) string {
	parts := strings.Split(strings.ReplaceAll(tag, "_", "-"), "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) > 1 && len(parts[1]) == 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}
