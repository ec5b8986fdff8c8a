package translator

import (
	"strings"
	"unicode"
)

var scripts = []struct {
	table *unicode.RangeTable
	lang  string
}{
	{unicode.Han, "zh"},
	{unicode.Arabic, "ar"},
	{unicode.Cyrillic, "ru"},
	{unicode.Devanagari, "hi"},
	{unicode.Hiragana, "ja"},
	{unicode.Katakana, "ja"},
	{unicode.Hangul, "ko"},
	{unicode.Thai, "th"},
	{unicode.Hebrew, "he"},
	{unicode.Greek, "el"},
}

// Checked in order; the first language with a matching word wins.
var commonWords = []struct {
	lang  string
	words map[string]bool
}{
	{"es", wordSet("el la que y en un ser se no por con su para como estar tener pero más hacer poder decir este ir otro ese si ya ver porque cuando muy sin vez mucho saber qué sobre también hasta año dos querer entre así desde grande eso ni nos llegar tiempo ella sí día uno bien poco entonces donde ahora después vida siempre hablar nada cada algo solo casa mundo gente bueno")},
	{"fr", wordSet("le de un être et à il avoir ne je son qui ce dans du elle au pour pas vous par sur faire plus dire me on mon lui nous comme mais avec tout aller voir bien où sans tu ou leur homme deux même autre aussi grand chose femme jour fois moins rien pays vie très temps nouveau jamais monde déjà jeune petit")},
	{"de", wordSet("der die und in den von zu das mit sich des auf für ist im dem nicht ein eine als auch es an werden aus er hat dass sie nach wird bei einer um am sind noch wie einem über einen so zum war haben nur oder aber vor zur bis mehr durch man sein wurde kann gegen vom können schon wenn habe seine ihre dann unter wir soll ich jahr zwei diese dieser wieder keine wo machen viel kein immer etwas ganz alle")},
	{"it", wordSet("il di e la che per un a da in del nel al le con non alla si dei gli ha più su delle dalla questa della può ai anche sono essere tra tutti se fra cosa oltre questi tutto altro altri dopo nei quindi sempre sia molto tre prima solo anni oggi due fatto come anno così senza ancora già fare grande mai mentre modo primo vita volta")},
	{"pt", wordSet("o a de que e do da em um para é com não uma os no se na por mais as dos como mas foi ao ele das tem à seu sua ou ser quando muito há nos já está eu também só pelo pela até isso ela entre era depois sem mesmo aos ter seus quem nas me esse eles estão você tinha foram essa num nem suas meu às minha têm numa pelos elas havia seja qual será nós tenho lhe deles essas esses pelas este fosse dele")},
}

func wordSet(words string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.Fields(words) {
		set[w] = true
	}
	return set
}

// Detect guesses the language of text from its script, then from common
// words of a few Latin script languages. It defaults to "en".
func Detect(text string) string {
	sample := []rune(strings.ToLower(strings.TrimSpace(text)))
	if len(sample) == 0 {
		return "en"
	}
	if len(sample) > 100 {
		sample = sample[:100]
	}

	for _, r := range sample {
		for _, script := range scripts {
			if unicode.Is(script.table, r) {
				return script.lang
			}
		}
	}

	words := strings.FieldsFunc(string(sample), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, common := range commonWords {
		for _, w := range words {
			if common.words[w] {
				return common.lang
			}
		}
	}
	return "en"
}
