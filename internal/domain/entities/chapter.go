package entities

// chapterNames maps ICD-10 chapter numerals to their CID-10 (pt-BR) titles
var chapterNames = map[string]string{
	"I":     "Algumas doenças infecciosas e parasitárias",
	"II":    "Neoplasias (tumores)",
	"III":   "Doenças do sangue e dos órgãos hematopoéticos e alguns transtornos imunitários",
	"IV":    "Doenças endócrinas, nutricionais e metabólicas",
	"V":     "Transtornos mentais e comportamentais",
	"VI":    "Doenças do sistema nervoso",
	"VII":   "Doenças do olho e anexos",
	"VIII":  "Doenças do ouvido e da apófise mastóide",
	"IX":    "Doenças do aparelho circulatório",
	"X":     "Doenças do aparelho respiratório",
	"XI":    "Doenças do aparelho digestivo",
	"XII":   "Doenças da pele e do tecido subcutâneo",
	"XIII":  "Doenças do sistema osteomuscular e do tecido conjuntivo",
	"XIV":   "Doenças do aparelho geniturinário",
	"XV":    "Gravidez, parto e puerpério",
	"XVI":   "Algumas afecções originadas no período perinatal",
	"XVII":  "Malformações congênitas, deformidades e anomalias cromossômicas",
	"XVIII": "Sintomas, sinais e achados anormais de exames clínicos e de laboratório, não classificados em outra parte",
	"XIX":   "Lesões, envenenamento e algumas outras conseqüências de causas externas",
	"XX":    "Causas externas de morbidade e de mortalidade",
	"XXI":   "Fatores que influenciam o estado de saúde e o contato com os serviços de saúde",
	"XXII":  "Códigos para propósitos especiais",
}

// ChapterName returns the human-readable title of a chapter, falling back to
// "Capítulo {chapter}" for chapters outside the table.
func ChapterName(chapter string) string {
	if name, ok := chapterNames[chapter]; ok {
		return name
	}
	return "Capítulo " + chapter
}

// ChapterSummary is a chapter with the number of codes it holds
type ChapterSummary struct {
	Chapter string `json:"chapter"`
	Name    string `json:"name"`
	Count   int    `json:"count"`
}

var romanValues = map[byte]int{'I': 1, 'V': 5, 'X': 10, 'L': 50}

// romanToInt parses the numerals used by chapter codes; ok is false for
// anything else
func romanToInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	total := 0
	for i := 0; i < len(s); i++ {
		v, ok := romanValues[s[i]]
		if !ok {
			return 0, false
		}
		if i+1 < len(s) && romanValues[s[i+1]] > v {
			total -= v
		} else {
			total += v
		}
	}
	return total, true
}

// ChapterLess orders Roman numeral chapters numerically, before any other
// chapter code, which sort lexically
func ChapterLess(a, b string) bool {
	av, aok := romanToInt(a)
	bv, bok := romanToInt(b)
	switch {
	case aok && bok:
		return av < bv
	case aok:
		return true
	case bok:
		return false
	default:
		return a < b
	}
}
