package testutils

import (
	"maps"
	"math/rand/v2"
	"slices"
)

// Phrases holds short chat messages per language. Every message carries at
// least one marker of its own language from the confusion table and none of
// the character fragments of its confusable siblings.
var Phrases = map[string][]string{
	"es": {
		"hola, tengo mucho trabajo ahora",
		"gracias, pero yo no puedo hacer esto",
		"¿cómo estás? estoy muy bien",
		"bueno, cuando llegues te llamo",
		"ellos viven donde trabaja ella",
		"nosotros también queremos ir",
	},
	"pt": {
		"olá, eu tenho muito trabalho agora",
		"obrigado, mas não posso fazer isso",
		"como você está? estou bem",
		"quando chegar eu te ligo",
		"eles moram onde ela trabalha",
		"nós também queremos ir",
	},
	"no": {
		"takk, jeg har det veldig bra nå",
		"hva gjør du etter jobb?",
		"jeg har litt mye å gjøre",
		"det var sånn det skjedde",
		"kan du hjelpe meg?",
		"vi ses etter ferien",
	},
	"da": {
		"tak, jeg har det rigtig godt nu",
		"hvad laver du efter arbejde?",
		"jeg har lidt meget at lave",
		"sådan gik det til",
		"kan du hjælpe mig med noget?",
		"vi ses efter ferien",
	},
	"sv": {
		"tack, jag mår mycket bra",
		"vad gör du i kväll?",
		"jag har lite att göra",
		"hur är det med dig?",
		"det är inte så farligt",
		"vi ses också imorgon",
	},
	"cs": {
		"děkuji, jsem velmi unavený",
		"není to tak těžké",
		"protože jsem tady také",
		"kde jsi byl včera?",
		"to je moje řeč",
		"také mám rád českou kuchyni",
	},
	"sk": {
		"ďakujem, som veľmi unavený",
		"nie je to tak ťažké",
		"pretože som tu tiež",
		"kde si bol včera, ako vždy?",
		"ako sa máš?",
		"mám rád slovenskú kuchyňu, ako každý",
	},
	"ru": {
		"привет, как дела?",
		"спасибо, это очень важно",
		"что ты делаешь сегодня?",
		"я хочу быть там",
		"это объявление для всех",
		"как тебя зовут?",
	},
	"uk": {
		"привіт, як справи?",
		"дякую, це дуже важливо",
		"що ти робиш сьогодні?",
		"я хочу бути там",
		"це її книга",
		"як тебе звати? дякую",
	},
	"id": {
		"kamu bisa datang ke kantor?",
		"uang saya hilang",
		"gimana kabarmu?",
		"mobil itu bagus sekali",
		"terima kasih, kamu baik sekali",
		"saya bisa membantu",
	},
	"ms": {
		"awak boleh datang ke pejabat?",
		"wang saya hilang",
		"apa khabar? sangat baik",
		"kereta itu sangat cantik",
		"terima kasih, tak apa",
		"saya boleh membantu",
	},
	"hr": {
		"što radiš ovaj tjedan?",
		"tko je to bio?",
		"kupio sam kruh i kavu",
		"trebam svjež zrak",
		"tisuća ljudi je došlo",
		"što je novo?",
	},
	"sr": {
		"šta radiš ove nedelje?",
		"ko je to bio?",
		"kupio sam hleb i kafu",
		"treba mi svež vazduh",
		"hiljada ljudi je došlo",
		"šta ima novo?",
	},
}

// PhraseLanguages returns the languages of Phrases in lexical order.
func PhraseLanguages() []string {
	return slices.Sorted(maps.Keys(Phrases))
}

// RandomPhrase picks a message in lang.
func RandomPhrase(rng *rand.Rand, lang string) string {
	phrases := Phrases[lang]
	return phrases[rng.IntN(len(phrases))]
}
