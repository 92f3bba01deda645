package language

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// DefaultLabel is used when the user gives no language label
const DefaultLabel = "Portuguese"

// MetadataFile is the sidecar describing a model
const MetadataFile = "model_metadata.json"

// names maps the language names accepted on the command line to ISO 639-1 codes
var names = map[string]string{
	"english":    "en",
	"portuguese": "pt",
	"spanish":    "es",
	"french":     "fr",
}

// ModelMetadata describes the loaded speech model
type ModelMetadata struct {
	ModelLanguage string `json:"model_language"`
}

// LoadMetadata reads the sidecar next to the model, then the one in the
// working directory. Missing or malformed files yield the zero value.
func LoadMetadata(modelPath string) ModelMetadata {
	for _, p := range []string{filepath.Join(modelPath, MetadataFile), MetadataFile} {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		var md ModelMetadata
		if err := json.Unmarshal(data, &md); err != nil {
			continue
		}
		return md
	}
	return ModelMetadata{}
}

// Target is a resolved translation target
type Target struct {
	Label string // as given by the user, or the override that replaced it
	Code  string
}

// CodeFor returns the ISO code for a language name, if known.
func CodeFor(name string) (string, bool) {
	code, ok := names[strings.ToLower(strings.TrimSpace(name))]
	return code, ok
}

// Resolve picks the translation target. An explicit target always wins. A
// Portuguese model with the default or a Portuguese label prefers English.
// Names and codes are normalized the same way for both inputs; Label keeps
// the value as given. ok is false when nothing usable resolves and
// translation should be skipped.
func Resolve(explicit, label string, md ModelMetadata) (Target, bool) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return Target{Label: explicit, Code: normalizeCode(explicit)}, true
	}

	input := strings.TrimSpace(label)
	if strings.EqualFold(md.ModelLanguage, "pt") && (input == "" || strings.HasPrefix(strings.ToLower(input), "portugu")) {
		input = "en"
	}
	if input == "" {
		return Target{}, false
	}
	return Target{Label: input, Code: normalizeCode(input)}, true
}

// normalizeCode lowercases two-letter codes and maps known names to codes.
// Unknown names are passed through unchanged.
func normalizeCode(input string) string {
	if len(input) <= 2 {
		return strings.ToLower(input)
	}
	if code, ok := CodeFor(input); ok {
		return code
	}
	return input
}
