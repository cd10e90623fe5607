package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kinesica-health/kinesica/internal/domain"
)

// BiblioRefusalMessage is the fixed answer of the bibliographic assistant
// when no study is available in the corpus. It is returned verbatim, the
// assistant never fabricates a citation.
const BiblioRefusalMessage = "Je ne dispose d'aucune étude dans le corpus permettant de répondre à cette question. " +
	"Je ne peux pas fournir de recommandation fondée sur les preuves sans source vérifiable."

// sharedFraming opens every system prompt: the assistant addresses a
// professional, not a patient.
const sharedFraming = "Tu es un assistant destiné aux kinésithérapeutes. " +
	"Tu t'adresses à un professionnel de santé, jamais à un patient. " +
	"Utilise un vocabulaire clinique précis et reste factuel."

// promptBuilder renders the per-variant system prompt from the selected
// sources.
type promptBuilder func(sources []*domain.SelectedSource) string

// promptBuilders is the variant dispatch table, keyed by assistant type and
// validated eagerly at startup.
var promptBuilders = map[domain.AssistantType]promptBuilder{
	domain.AssistantBasic:          buildBasicPrompt,
	domain.AssistantBiblio:         buildBiblioPrompt,
	domain.AssistantClinical:       buildClinicalPrompt,
	domain.AssistantAdministrative: buildAdministrativePrompt,
}

func init() {
	for _, at := range domain.AssistantTypes() {
		if _, ok := promptBuilders[at]; !ok {
			panic(fmt.Sprintf("no prompt builder registered for assistant type %q", at))
		}
	}
}

// BuildPrompt renders the system prompt for the given assistant type and
// selected documents. Unknown types are rejected at the boundary.
func BuildPrompt(assistantType domain.AssistantType, sources []*domain.SelectedSource) (string, error) {
	builder, ok := promptBuilders[assistantType]
	if !ok {
		return "", domain.ErrUnknownAssistantType
	}
	return builder(sources), nil
}

func buildBasicPrompt(sources []*domain.SelectedSource) string {
	var b strings.Builder
	b.WriteString(sharedFraming)
	b.WriteString("\n\nRéponds de façon claire et pédagogique aux questions générales de kinésithérapie.")
	writeFlatDocumentList(&b, sources)
	return b.String()
}

func buildClinicalPrompt(sources []*domain.SelectedSource) string {
	var b strings.Builder
	b.WriteString(sharedFraming)
	b.WriteString("\n\nTu interviens en raisonnement clinique : hypothèses diagnostiques, choix de techniques, ")
	b.WriteString("critères de progression et drapeaux rouges. Structure tes réponses comme un bilan.")
	writeFlatDocumentList(&b, sources)
	return b.String()
}

func buildAdministrativePrompt(sources []*domain.SelectedSource) string {
	var b strings.Builder
	b.WriteString(sharedFraming)
	b.WriteString("\n\nTu interviens sur les questions réglementaires, de nomenclature et de facturation ")
	b.WriteString("du cabinet. Cite les textes applicables quand les documents le permettent.")
	writeFlatDocumentList(&b, sources)
	return b.String()
}

// buildBiblioPrompt enforces the strict evidence-based mode: documents are
// grouped by source file so a multi-chunk study collapses to one
// bibliographic entry, groups are ordered by evidence level, and the answer
// must follow fixed sections with an enforced citation format.
func buildBiblioPrompt(sources []*domain.SelectedSource) string {
	var b strings.Builder
	b.WriteString(sharedFraming)
	b.WriteString("\n\nMode strictement fondé sur les preuves. ")
	b.WriteString("Tu ne cites que les études fournies ci-dessous, jamais de source inventée.\n")

	if len(sources) == 0 {
		b.WriteString("\nAucune étude n'est disponible dans le corpus. ")
		b.WriteString("Réponds exactement : \"")
		b.WriteString(BiblioRefusalMessage)
		b.WriteString("\"")
		return b.String()
	}

	b.WriteString("\nStructure obligatoire de la réponse :\n")
	b.WriteString("1. Recommandations\n")
	b.WriteString("2. Analyse des preuves\n")
	b.WriteString("3. Bibliographie\n")
	b.WriteString("4. Qualité et limites\n")
	b.WriteString("\nFormat de citation obligatoire : [Auteurs, Date] Titre (niveau de preuve X).\n")

	for i, group := range groupBySourceFile(sources) {
		b.WriteString(fmt.Sprintf("\nÉtude %d : %s", i+1, group.title))
		if group.evidenceLevel != "" {
			b.WriteString(fmt.Sprintf(" (niveau de preuve %s)", group.evidenceLevel))
		}
		if group.authors != "" {
			b.WriteString(fmt.Sprintf("\nAuteurs : %s", group.authors))
		}
		if group.date != "" {
			b.WriteString(fmt.Sprintf("\nDate : %s", group.date))
		}
		b.WriteString("\nExtraits :\n")
		for _, content := range group.contents {
			b.WriteString(content)
			b.WriteString("\n")
		}
	}

	return b.String()
}

// studyGroup is one bibliographic entry, possibly assembled from several
// chunks of the same source file.
type studyGroup struct {
	sourceFile    string
	title         string
	authors       string
	date          string
	evidenceLevel domain.EvidenceLevel
	contents      []string
	bestScore     float64
}

// groupBySourceFile collapses chunks sharing a source file into one entry and
// orders entries by evidence level (A first), then score.
func groupBySourceFile(sources []*domain.SelectedSource) []*studyGroup {
	byFile := make(map[string]*studyGroup)
	var order []string

	for _, src := range sources {
		key := src.Metadata.String(domain.MetaSourceFile)
		if key == "" {
			// No source file: the document stands alone.
			key = src.ID
		}
		group, ok := byFile[key]
		if !ok {
			group = &studyGroup{
				sourceFile:    key,
				title:         src.Title,
				authors:       src.Metadata.String(domain.MetaAuthors),
				date:          src.Metadata.String(domain.MetaDate),
				evidenceLevel: domain.EvidenceLevel(src.Metadata.String(domain.MetaEvidenceLevel)),
			}
			byFile[key] = group
			order = append(order, key)
		}
		group.contents = append(group.contents, src.Content)
		if src.FinalScore > group.bestScore {
			group.bestScore = src.FinalScore
		}
	}

	groups := make([]*studyGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, byFile[key])
	}
	sort.SliceStable(groups, func(i, j int) bool {
		ri, rj := domain.EvidenceRank(groups[i].evidenceLevel), domain.EvidenceRank(groups[j].evidenceLevel)
		if ri != rj {
			return ri > rj
		}
		return groups[i].bestScore > groups[j].bestScore
	})
	return groups
}

func writeFlatDocumentList(b *strings.Builder, sources []*domain.SelectedSource) {
	if len(sources) == 0 {
		b.WriteString("\n\nAucun document du corpus n'est pertinent pour cette question. ")
		b.WriteString("Réponds avec tes connaissances générales en le précisant.")
		return
	}

	b.WriteString("\n\nDocuments pertinents du corpus :\n")
	for i, src := range sources {
		b.WriteString(fmt.Sprintf("\nDocument %d (pertinence %.2f) : %s\n", i+1, src.FinalScore, src.Title))
		b.WriteString(src.Content)
		b.WriteString("\n")
	}
}
