// Package masking implements the reversible PII-masking engine that sits
// between raw extracted text and the external AI boundary. No sensitive
// value may cross that boundary unmasked.
package masking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Info is the per-token record in a masking map: the original value a token
// stands for and its sensitivity type.
type Info struct {
	Original string     `json:"original"`
	Type     EntityType `json:"type"`
}

// Engine detects sensitive spans, substitutes stable [TYPE_n] tokens, and
// reverses the substitution on structured AI output. Stateless between
// calls: every Mask invocation runs with fresh per-type counters, so tokens
// are only meaningful within one run.
type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// run holds the per-invocation token counters.
type run struct {
	counters map[EntityType]int
}

func (r *run) nextToken(t EntityType) string {
	r.counters[t]++
	return fmt.Sprintf("[%s_%d]", t, r.counters[t])
}

// Mask replaces every detected sensitive span in text with a token and
// returns the masked text plus the token → original mapping needed to
// reverse it. Counters advance per detected match, including matches later
// dropped by the overlap filter, so token numbering follows detection order.
func (e *Engine) Mask(text string) (string, map[string]Info) {
	r := &run{counters: make(map[EntityType]int)}

	entities := r.detectRegex(text)
	entities = append(entities, r.detectCompanies(text)...)
	entities = append(entities, r.detectPersons(text)...)

	// Sort by start descending so substitution never invalidates the
	// offsets of entities still to be applied. The sort must be stable:
	// for spans starting at the same offset, the entity collected first
	// (earlier detector) wins the overlap filter below.
	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].Start > entities[j].Start
	})

	var kept []Entry
	for _, ent := range entities {
		overlaps := false
		for _, k := range kept {
			if ent.Start < k.End && ent.End > k.Start {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, ent)
		}
	}

	masked := text
	maskingMap := make(map[string]Info, len(kept))
	for _, ent := range kept {
		masked = masked[:ent.Start] + ent.Token + masked[ent.End:]
		maskingMap[ent.Token] = Info{Original: ent.Original, Type: ent.Type}
	}

	e.logger.Info("masking.run.ok",
		"detected", len(entities),
		"masked", len(maskingMap),
	)
	return masked, maskingMap
}

func (r *run) detectRegex(text string) []Entry {
	var entities []Entry
	for _, d := range regexDetectors {
		for _, loc := range d.re.FindAllStringIndex(text, -1) {
			entities = append(entities, Entry{
				Original: text[loc[0]:loc[1]],
				Token:    r.nextToken(d.typ),
				Type:     d.typ,
				Start:    loc[0],
				End:      loc[1],
			})
		}
	}
	return entities
}

func (r *run) detectCompanies(text string) []Entry {
	var entities []Entry
	for _, re := range companyPatterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			entities = append(entities, Entry{
				Original: text[loc[0]:loc[1]],
				Token:    r.nextToken(TypeCompany),
				Type:     TypeCompany,
				Start:    loc[0],
				End:      loc[1],
			})
		}
	}
	return entities
}

func (r *run) detectPersons(text string) []Entry {
	var entities []Entry
	for _, loc := range personPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[2], loc[3]
		name := text[start:end]

		if len(name) < personMinLen || len(name) > personMaxLen {
			continue
		}
		skip := false
		for _, w := range strings.Fields(name) {
			if _, ok := personStoplist[w]; ok {
				skip = true
				break
			}
		}
		if skip {
			continue
		}

		entities = append(entities, Entry{
			Original: name,
			Token:    r.nextToken(TypePerson),
			Type:     TypePerson,
			Start:    start,
			End:      end,
		})
	}
	return entities
}

// Unmask reverses a masking run over a structured AI result: the JSON text
// is scanned for every known token and each occurrence is replaced by its
// original value, then re-parsed. Tokens the model dropped or paraphrased
// cannot be restored; they are counted and logged, not recovered.
func (e *Engine) Unmask(data json.RawMessage, maskingMap map[string]Info) (json.RawMessage, error) {
	if len(data) == 0 || len(maskingMap) == 0 {
		return data, nil
	}

	// Deterministic replacement order; map iteration order is not.
	tokens := make([]string, 0, len(maskingMap))
	for t := range maskingMap {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)

	text := string(data)
	missing := 0
	for _, token := range tokens {
		if !strings.Contains(text, token) {
			missing++
			continue
		}
		text = strings.ReplaceAll(text, token, maskingMap[token].Original)
	}
	if missing > 0 {
		e.logger.Warn("masking.unmask.tokens_missing",
			"missing", missing,
			"total", len(maskingMap),
		)
	}

	var check any
	if err := json.Unmarshal([]byte(text), &check); err != nil {
		return nil, fmt.Errorf("unmasked payload is not valid JSON: %w", err)
	}
	return json.RawMessage(text), nil
}
