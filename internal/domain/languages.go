package domain

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Language family labels used by the family table.
const (
	FamilyRomance      = "romance"
	FamilyGermanic     = "germanic"
	FamilySlavic       = "slavic"
	FamilyCJK          = "cjk"
	FamilyAustronesian = "austronesian"
	FamilyIndoAryan    = "indo_aryan"
	FamilySemitic      = "semitic"
	FamilyTurkic       = "turkic"
	FamilyUralic       = "uralic"
	FamilyBaltic       = "baltic"
	FamilyCeltic       = "celtic"
	FamilyDravidian    = "dravidian"
	FamilyIranian      = "iranian"
	FamilyTaiKadai     = "tai_kadai"
	FamilyHellenic     = "hellenic"
)

// languageFamilies maps language codes to family labels. Read-only.
var languageFamilies = map[string]string{
	"es": FamilyRomance, "pt": FamilyRomance, "fr": FamilyRomance, "it": FamilyRomance,
	"ro": FamilyRomance, "ca": FamilyRomance, "gl": FamilyRomance, "oc": FamilyRomance,

	"en": FamilyGermanic, "de": FamilyGermanic, "nl": FamilyGermanic, "sv": FamilyGermanic,
	"no": FamilyGermanic, "nb": FamilyGermanic, "nn": FamilyGermanic, "da": FamilyGermanic,
	"is": FamilyGermanic, "af": FamilyGermanic, "lb": FamilyGermanic, "fy": FamilyGermanic,

	"ru": FamilySlavic, "uk": FamilySlavic, "be": FamilySlavic, "pl": FamilySlavic,
	"cs": FamilySlavic, "sk": FamilySlavic, "hr": FamilySlavic, "sr": FamilySlavic,
	"bs": FamilySlavic, "sl": FamilySlavic, "bg": FamilySlavic, "mk": FamilySlavic,

	"zh": FamilyCJK, "ja": FamilyCJK, "ko": FamilyCJK,

	"id": FamilyAustronesian, "ms": FamilyAustronesian, "tl": FamilyAustronesian,
	"jv": FamilyAustronesian, "mg": FamilyAustronesian,

	"hi": FamilyIndoAryan, "mr": FamilyIndoAryan, "ne": FamilyIndoAryan, "bn": FamilyIndoAryan,
	"ur": FamilyIndoAryan, "pa": FamilyIndoAryan, "gu": FamilyIndoAryan,

	"ar": FamilySemitic, "he": FamilySemitic, "mt": FamilySemitic, "am": FamilySemitic,

	"tr": FamilyTurkic, "az": FamilyTurkic, "kk": FamilyTurkic, "uz": FamilyTurkic,
	"ky": FamilyTurkic, "tt": FamilyTurkic,

	"fi": FamilyUralic, "et": FamilyUralic, "hu": FamilyUralic,

	"lt": FamilyBaltic, "lv": FamilyBaltic,

	"ga": FamilyCeltic, "cy": FamilyCeltic, "gd": FamilyCeltic, "br": FamilyCeltic,

	"ta": FamilyDravidian, "te": FamilyDravidian, "kn": FamilyDravidian, "ml": FamilyDravidian,

	"fa": FamilyIranian, "ps": FamilyIranian, "ku": FamilyIranian, "tg": FamilyIranian,

	"th": FamilyTaiKadai, "lo": FamilyTaiKadai,

	"el": FamilyHellenic,
}

// LanguageFamily returns the family label of code.
func LanguageFamily(code string) (string, bool) {
	f, ok := languageFamilies[code]
	return f, ok
}

// FamilyMembers returns every language of family in lexical order.
func FamilyMembers(family string) []string {
	var members []string
	for code, f := range languageFamilies {
		if f == family {
			members = append(members, code)
		}
	}
	slices.Sort(members)
	return members
}

// ConfusionGroup is a set of two or more languages that detectors
// frequently mistake for one another, with lexical markers that tell them
// apart.
type ConfusionGroup struct {
	// Languages holds the member codes in lexical order.
	Languages []string

	// Words maps a member language to whole words that are characteristic
	// of it and not of the other members.
	Words map[string][]string

	// Fragments maps a member language to characters or letter sequences
	// that point to it when found inside a word that is not itself a
	// marker. Fragments of a group never contain one another.
	Fragments map[string][]string
}

// Key returns the canonical identifier of the group, e.g. "da|no|sv".
func (g ConfusionGroup) Key() string { return strings.Join(g.Languages, "|") }

// Contains reports whether lang is a member of the group.
func (g ConfusionGroup) Contains(lang string) bool {
	return slices.Contains(g.Languages, lang)
}

// Covers reports whether every language in langs is a member of the group.
func (g ConfusionGroup) Covers(langs ...string) bool {
	if len(langs) == 0 {
		return false
	}
	for _, l := range langs {
		if !g.Contains(l) {
			return false
		}
	}
	return true
}

// confusionGroups is the static ConfusionPairTable. Read-only.
var confusionGroups = []ConfusionGroup{
	newConfusionGroup(
		map[string][]string{
			"es": {"pero", "tengo", "yo", "muy", "hola", "gracias", "usted", "ustedes", "ahora",
				"bueno", "también", "hay", "qué", "cómo", "estoy", "hacer", "mucho", "nosotros",
				"ella", "ellos", "cuando", "donde", "el", "los", "las", "del", "una", "con", "esto", "sí"},
			"pt": {"mas", "tenho", "eu", "muito", "olá", "obrigado", "obrigada", "você", "vocês",
				"agora", "bom", "também", "há", "não", "estou", "fazer", "nós", "ela", "eles",
				"quando", "onde", "do", "uma", "um", "com", "isso", "isto", "sim", "ao"},
		},
		map[string][]string{
			"es": {"ñ", "¿", "¡"},
			"pt": {"ã", "õ"},
		},
	),
	newConfusionGroup(
		map[string][]string{
			"no": {"ikkje", "hva", "takk", "meg", "deg", "noe", "mye", "nå", "litt", "sånn", "veldig", "etter"},
			"da": {"hvad", "tak", "noget", "meget", "nu", "lidt", "sådan", "rigtig", "efter"},
			"sv": {"inte", "jag", "vad", "hur", "tack", "något", "mycket", "lite", "och", "är", "också"},
		},
		map[string][]string{
			"sv": {"ä", "ö"},
		},
	),
	newConfusionGroup(
		map[string][]string{
			"hr": {"što", "tko", "kruh", "tisuća", "kava", "tjedan", "zrak"},
			"sr": {"šta", "ko", "hleb", "hiljada", "kafa", "nedelja", "vazduh"},
			"bs": {"hljeb", "kahva", "lahko", "sahat", "hiljadu"},
		},
		nil,
	),
	newConfusionGroup(
		map[string][]string{
			"id": {"bisa", "uang", "kantor", "mobil", "gimana", "kamu", "sekali"},
			"ms": {"boleh", "wang", "pejabat", "kereta", "awak", "sangat", "tak"},
		},
		nil,
	),
	newConfusionGroup(
		map[string][]string{
			"cs": {"jsem", "jsi", "není", "protože", "také", "děkuji"},
			"sk": {"som", "nie", "pretože", "tiež", "ďakujem", "ako"},
		},
		map[string][]string{
			"cs": {"ř", "ů", "ě"},
			"sk": {"ä", "ô", "ľ", "ĺ", "ŕ"},
		},
	),
	newConfusionGroup(
		map[string][]string{
			"ru": {"что", "это", "как", "быть", "спасибо", "привет"},
			"uk": {"що", "це", "дякую", "привіт", "бути"},
			"be": {"што", "гэта", "дзякуй", "прывітанне"},
		},
		map[string][]string{
			"ru": {"ъ"},
			"uk": {"ї", "є", "ґ"},
			"be": {"ў"},
		},
	),
	newConfusionGroup(
		nil,
		map[string][]string{
			"zh": {"的", "了", "们", "这", "吗", "么"},
			"ja": {"の", "は", "です", "ます", "が", "を", "に"},
		},
	),
}

func newConfusionGroup(words, fragments map[string][]string) ConfusionGroup {
	members := make(map[string]struct{})
	for lang := range words {
		members[lang] = struct{}{}
	}
	for lang := range fragments {
		members[lang] = struct{}{}
	}
	langs := slices.Sorted(maps.Keys(members))
	return ConfusionGroup{Languages: langs, Words: words, Fragments: fragments}
}

// ConfusionGroups returns the static confusion table in its fixed order.
// The returned groups must be treated as read-only.
func ConfusionGroups() []ConfusionGroup {
	return slices.Clone(confusionGroups)
}

// Backend reliability bounds and the rating given to unknown backends.
const (
	MinReliability     = 1
	MaxReliability     = 5
	DefaultReliability = 3
)

// builtinReliability rates the well-known detection backends on a 1..5 scale.
var builtinReliability = map[string]int{
	"fasttext":   5,
	"lingua":     5,
	"pycld3":     4,
	"cld3":       4,
	"langdetect": 3,
	"langid":     2,
}

// ReliabilityTable maps backend names to a 1..5 reliability rating.
// It is immutable after construction and safe for concurrent reads.
type ReliabilityTable struct {
	ratings map[string]int
}

// NewReliabilityTable returns the builtin ratings extended with overrides.
// Ratings outside [MinReliability, MaxReliability] are rejected.
func NewReliabilityTable(overrides map[string]int) (*ReliabilityTable, error) {
	verr := NewValidationError("ReliabilityTable")
	ratings := maps.Clone(builtinReliability)
	for _, name := range sortedKeys(overrides) {
		r := overrides[name]
		switch {
		case name == "":
			verr.AddError("backend name cannot be empty")
		case r < MinReliability || r > MaxReliability:
			verr.AddErrorf("reliability %d for backend %s outside [%d, %d]",
				r, name, MinReliability, MaxReliability)
		default:
			ratings[name] = r
		}
	}
	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}
	return &ReliabilityTable{ratings: ratings}, nil
}

// DefaultReliabilityTable returns the builtin ratings.
func DefaultReliabilityTable() *ReliabilityTable {
	return &ReliabilityTable{ratings: maps.Clone(builtinReliability)}
}

// Rating returns the rating of backend, or DefaultReliability when unknown.
func (t *ReliabilityTable) Rating(backend string) int {
	if t != nil {
		if r, ok := t.ratings[backend]; ok {
			return r
		}
	}
	return DefaultReliability
}

// Weight returns the rating of backend scaled to (0, 1].
func (t *ReliabilityTable) Weight(backend string) float64 {
	return float64(t.Rating(backend)) / MaxReliability
}

// String implements fmt.Stringer for debugging.
func (t *ReliabilityTable) String() string {
	return fmt.Sprintf("ReliabilityTable%v", t.ratings)
}
