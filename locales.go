package paagrab

import "sort"

// Locale is a language/region pair applied to search requests.
type Locale struct {
	Language string // hl
	Region   string // gl
}

// locales maps preset names to language/region pairs. Preset names follow
// the region's common short name, not ISO codes, because that is what ends
// up in shell history.
var locales = map[string]Locale{
	"us": {"en", "us"},
	"uk": {"en", "gb"},
	"au": {"en", "au"},
	"ca": {"en", "ca"},
	"in": {"en", "in"},
	"de": {"de", "de"},
	"fr": {"fr", "fr"},
	"es": {"es", "es"},
	"it": {"it", "it"},
	"nl": {"nl", "nl"},
	"pl": {"pl", "pl"},
	"se": {"sv", "se"},
	"br": {"pt", "br"},
	"mx": {"es", "mx"},
	"jp": {"ja", "jp"},
	"kr": {"ko", "kr"},
	"tr": {"tr", "tr"},
	"ua": {"uk", "ua"},
}

// LookupLocale returns the preset for a name.
func LookupLocale(name string) (Locale, bool) {
	loc, ok := locales[name]
	return loc, ok
}

// LocaleNames returns the preset names, sorted, for CLI help output.
func LocaleNames() []string {
	names := make([]string, 0, len(locales))
	for name := range locales {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
