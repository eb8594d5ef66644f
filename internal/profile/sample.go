package profile

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

var sampleIDRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SampleIDFromPath derives a sample id from an input file name: the base name
// without its extension, upper cased, with '-' and '.' replaced by '_'. Ids
// that would start with a digit are prefixed with 'S'.
func SampleIDFromPath(path string) string {
	base := filepath.Base(path)
	return sanitizeSampleID(strings.TrimSuffix(base, filepath.Ext(base)))
}

// SampleIDFromProfile derives a sample id from the directory a snapshot is in.
func SampleIDFromProfile(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return sanitizeSampleID(filepath.Base(filepath.Dir(abs)))
}

func sanitizeSampleID(name string) string {
	id := strings.NewReplacer("-", "_", ".", "_").Replace(strings.ToUpper(name))
	if id != "" && unicode.IsDigit(rune(id[0])) {
		id = "S" + id
	}
	return id
}

// ValidateSampleID checks that an id is made of letters, digits and '_' and
// does not start with a digit.
func ValidateSampleID(id string) error {
	if !sampleIDRegex.MatchString(id) {
		return configErrorf("sample id %q has to be letters, digits and '_', and can't start with a digit", id)
	}
	return nil
}

// resolveSampleID returns the run's sample id, deriving it if it was not set.
func resolveSampleID(rc *Context) (string, error) {
	id := rc.SampleID
	if id == "" {
		if rc.Input != "" {
			id = SampleIDFromPath(rc.Input)
		} else {
			id = SampleIDFromProfile(rc.Profile)
		}
	}
	if err := ValidateSampleID(id); err != nil {
		return "", err
	}
	return id, nil
}
