package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fieldbridge/fieldbridge-engine/pkg/models"
	"github.com/fieldbridge/fieldbridge-engine/pkg/schema"
	"github.com/fieldbridge/fieldbridge-engine/pkg/store"
)

// Inference thresholds. A best candidate below minInferenceConfidence is
// discarded without touching the store; below reviewThreshold the result
// is flagged for human review.
const (
	minInferenceConfidence = 0.4
	reviewThreshold        = 0.8
	agreementBonus         = 1.1
	confidenceCap          = 0.99
)

// semanticGroups are closed sets of field-name concepts that translate
// across platform naming conventions.
var semanticGroups = [][]string{
	{"id", "identifier", "key", "uid", "guid"},
	{"name", "title", "label", "subject"},
	{"email", "emailaddress", "mail", "emailaddress1"},
	{"phone", "telephone", "mobile", "cell", "telephone1"},
	{"company", "account", "organization", "org", "employer"},
	{"address", "location", "street", "city", "zip", "postal"},
	{"created", "createdon", "createddate", "createdat"},
	{"modified", "updated", "modifiedon", "lastmodified", "updatedat"},
	{"description", "desc", "details", "notes", "body", "content"},
	{"status", "state", "statecode", "stage"},
	{"amount", "value", "price", "cost", "total", "estimatedvalue"},
	{"probability", "likelihood", "chance", "closeprobability"},
	{"owner", "assignee", "assignedto", "ownerid"},
	{"parent", "parentid", "parentcustomerid"},
	{"website", "url", "websiteurl", "homepage"},
	{"industry", "industrycode", "sector", "vertical"},
}

// locationalPrefixes are stripped before semantic-group matching so that
// "billing_city" and "city" land in the same group.
var locationalPrefixes = []string{
	"billing", "shipping", "mailing", "work", "home", "primary", "secondary",
}

// valueKindKeywords map a classified value shape to candidate-name
// keywords and a strategy score.
var valueKindKeywords = map[ValueKind]struct {
	keywords []string
	score    float64
	label    string
}{
	ValueEmail:           {[]string{"email", "mail"}, 0.85, "string (email)"},
	ValueURL:             {[]string{"url", "website", "web", "domain"}, 0.80, "string (url)"},
	ValuePhone:           {[]string{"phone", "telephone", "mobile", "fax"}, 0.80, "string (phone)"},
	ValueDate:            {[]string{"date", "time"}, 0.75, "string (date)"},
	ValueNumericUnit:     {[]string{"probability", "rate", "percent", "score"}, 0.70, "number (unit)"},
	ValueNumericPositive: {[]string{"amount", "revenue", "value", "price", "number", "count"}, 0.65, "number (positive)"},
}

// TranslationResult is the outcome of a field translation or analysis.
type TranslationResult struct {
	TargetField  string                      `json:"target_field"`
	Confidence   float64                     `json:"confidence"`
	NeedsReview  bool                        `json:"needs_review"`
	Reasons      []string                    `json:"reasons,omitempty"`
	Alternatives []models.AlternativeMapping `json:"alternatives,omitempty"`
}

// ValueTranslation is the outcome of a value translation. On a total
// miss the original value passes through at confidence zero.
type ValueTranslation struct {
	TargetValue string  `json:"target_value"`
	Confidence  float64 `json:"confidence"`
}

// InferenceService runs the multi-strategy translation pipeline over the
// brain store. It is not safe for concurrent use; the engine facade
// serializes callers.
type InferenceService struct {
	store  *store.BrainStore
	logger *zap.Logger
}

// NewInferenceService creates an inference service over a brain store.
func NewInferenceService(brain *store.BrainStore, logger *zap.Logger) *InferenceService {
	return &InferenceService{
		store:  brain,
		logger: logger.Named("inference"),
	}
}

// TranslateField resolves a source field to a target-platform field.
// A store hit is served directly; a miss runs multi-strategy inference
// and writes the result back when it clears the confidence floor.
func (s *InferenceService) TranslateField(field string, srcPlat, tgtPlat models.Platform, entity string, record map[string]any) TranslationResult {
	s.store.Counters().TotalTranslations++

	if m, ok := s.store.GetFieldMapping(srcPlat, field, tgtPlat, entity); ok {
		now := time.Now().UTC()
		m.TimesUsed++
		m.LastUsed = &now
		return TranslationResult{
			TargetField: m.TargetField,
			Confidence:  m.Confidence,
			NeedsReview: m.Level() == models.ConfidenceUncertain,
			Reasons:     m.Reasons,
		}
	}

	s.store.Counters().UnknownFieldsEncountered++
	ranked := s.inferCandidates(field, srcPlat, tgtPlat, entity, record)
	if len(ranked) == 0 || ranked[0].score < minInferenceConfidence {
		s.logger.Debug("No confident candidate",
			zap.String("field", field),
			zap.String("source", srcPlat.String()),
			zap.String("target", tgtPlat.String()))
		return TranslationResult{NeedsReview: true}
	}

	best := ranked[0]
	now := time.Now().UTC()
	s.store.PutFieldMapping(&models.FieldMapping{
		SourcePlatform: srcPlat,
		SourceField:    field,
		TargetPlatform: tgtPlat,
		TargetField:    best.target,
		EntityType:     entity,
		Confidence:     best.score,
		Provenance:     models.ProvenanceInferred,
		TimesUsed:      1,
		CreatedAt:      now,
		LastUsed:       &now,
		Reasons:        best.reasons,
	})
	s.store.Counters().SuccessfulInferences++
	s.store.AppendEvent(models.LearningEvent{
		Timestamp:        now,
		EventType:        models.LearningNewMapping,
		SourcePlatform:   srcPlat,
		TargetPlatform:   tgtPlat,
		EntityType:       entity,
		FieldName:        field,
		NewValue:         best.target,
		ConfidenceChange: best.score,
	})

	return TranslationResult{
		TargetField:  best.target,
		Confidence:   best.score,
		NeedsReview:  best.score < reviewThreshold,
		Reasons:      best.reasons,
		Alternatives: alternativesFrom(ranked),
	}
}

// AnalyzeRecord runs inference for every unmapped field in a record and
// returns advisory proposals. It never mutates the store.
func (s *InferenceService) AnalyzeRecord(record map[string]any, srcPlat, tgtPlat models.Platform, entity string) map[string]TranslationResult {
	proposals := make(map[string]TranslationResult)
	for field := range record {
		if _, ok := s.store.GetFieldMapping(srcPlat, field, tgtPlat, entity); ok {
			continue
		}
		ranked := s.inferCandidates(field, srcPlat, tgtPlat, entity, record)
		if len(ranked) == 0 || ranked[0].score < minInferenceConfidence {
			continue
		}
		best := ranked[0]
		proposals[field] = TranslationResult{
			TargetField:  best.target,
			Confidence:   best.score,
			NeedsReview:  best.score < reviewThreshold,
			Reasons:      best.reasons,
			Alternatives: alternativesFrom(ranked),
		}
	}
	return proposals
}

// TranslateValue resolves a closed-vocabulary value literal. Resolution
// order: learned value mapping, builtin ordinal vocabularies, learned
// value patterns, similarity against known target values. The original
// value passes through at confidence zero when nothing matches.
func (s *InferenceService) TranslateValue(value, fieldName string, srcPlat, tgtPlat models.Platform, entity string) ValueTranslation {
	if m, ok := s.store.GetValueMapping(srcPlat, value, tgtPlat, fieldName); ok {
		now := time.Now().UTC()
		m.TimesUsed++
		m.LastUsed = &now
		return ValueTranslation{TargetValue: m.TargetValue, Confidence: m.Confidence}
	}

	if target, ok := s.builtinOrdinalValue(value, fieldName, srcPlat, tgtPlat); ok {
		now := time.Now().UTC()
		s.store.PutValueMapping(&models.ValueMapping{
			SourcePlatform: srcPlat,
			SourceValue:    value,
			TargetPlatform: tgtPlat,
			TargetValue:    target,
			FieldName:      fieldName,
			EntityType:     entity,
			Confidence:     1.0,
			Provenance:     models.ProvenanceBuiltin,
			TimesUsed:      1,
			CreatedAt:      now,
			LastUsed:       &now,
		})
		return ValueTranslation{TargetValue: target, Confidence: 1.0}
	}

	// Learned literal patterns. Substring containment is gated behind a
	// minimum length of 3 on both sides so short literals cannot match
	// accidentally.
	valueLower := strings.ToLower(value)
	for pattern, target := range s.store.ValuePatterns(srcPlat, fieldName) {
		patternLower := strings.ToLower(pattern)
		if patternLower == valueLower {
			return ValueTranslation{TargetValue: target, Confidence: 0.85}
		}
		if len(valueLower) >= 3 && len(patternLower) >= 3 &&
			(strings.Contains(valueLower, patternLower) || strings.Contains(patternLower, valueLower)) {
			return ValueTranslation{TargetValue: target, Confidence: 0.8}
		}
	}

	bestRatio := 0.0
	bestValue := ""
	for _, known := range s.store.KnownTargetValues(fieldName, tgtPlat) {
		if ratio := similarityRatio(valueLower, strings.ToLower(known)); ratio > bestRatio {
			bestRatio = ratio
			bestValue = known
		}
	}
	if bestRatio >= 0.7 {
		return ValueTranslation{TargetValue: bestValue, Confidence: min(bestRatio, 0.9)}
	}

	return ValueTranslation{TargetValue: value, Confidence: 0}
}

func (s *InferenceService) builtinOrdinalValue(value, fieldName string, srcPlat, tgtPlat models.Platform) (string, bool) {
	class := schema.VocabularyClassForField(fieldName)
	if class == "" {
		return "", false
	}
	srcVocab := s.store.Seed().Vocabulary(class, srcPlat)
	tgtVocab := s.store.Seed().Vocabulary(class, tgtPlat)
	for i, v := range srcVocab {
		if strings.EqualFold(v, value) && i < len(tgtVocab) {
			return tgtVocab[i], true
		}
	}
	return "", false
}

// rankedCandidate is one scored inference candidate after aggregation.
type rankedCandidate struct {
	target  string
	score   float64
	reasons []string
}

type strategyScore struct {
	score  float64
	reason string
}

// inferCandidates runs the S1-S6 strategies over every known target
// field and aggregates per-candidate scores: mean of contributing
// strategies, with an agreement bonus when more than one fires.
func (s *InferenceService) inferCandidates(field string, srcPlat, tgtPlat models.Platform, entity string, record map[string]any) []rankedCandidate {
	candidates := make(map[string][]strategyScore)
	fieldLower := strings.ToLower(field)
	fieldFeatures := ExtractFeatures(field)

	var valueKind ValueKind
	hasValue := false
	if record != nil {
		if v, ok := record[field]; ok {
			valueKind = ClassifyValue(v)
			hasValue = valueKind != ValueOther
		}
	}

	for _, candidate := range s.store.KnownTargetFields(tgtPlat, entity) {
		candidateLower := strings.ToLower(candidate)

		// S1: an exact name match stands alone; stacking the other
		// strategies on an identical name would only inflate it past
		// its intended 0.95.
		if candidateLower == fieldLower {
			candidates[candidate] = []strategyScore{{0.95, "Exact name match"}}
			continue
		}

		// S2: shared name features.
		if overlap := sharedFeatures(fieldFeatures, ExtractFeatures(candidate)); len(overlap) > 0 {
			score := min(0.7+0.05*float64(len(overlap)), 0.9)
			candidates[candidate] = append(candidates[candidate],
				strategyScore{score, "Shared patterns: " + strings.Join(overlap, ", ")})
		}

		// S3: string similarity.
		if ratio := similarityRatio(fieldLower, candidateLower); ratio >= 0.6 {
			candidates[candidate] = append(candidates[candidate],
				strategyScore{ratio * 0.85, fmt.Sprintf("String similarity %d%%", int(ratio*100))})
		}

		// S4: shared semantic group.
		if sameSemanticGroup(fieldLower, candidateLower) {
			candidates[candidate] = append(candidates[candidate],
				strategyScore{0.8, "Semantic similarity"})
		}

		// S6: value shape against the candidate name.
		if hasValue {
			if hint, ok := valueKindKeywords[valueKind]; ok {
				for _, kw := range hint.keywords {
					if strings.Contains(candidateLower, kw) {
						candidates[candidate] = append(candidates[candidate],
							strategyScore{hint.score, "Value type match for: " + hint.label})
						break
					}
				}
			}
		}
	}

	// S5: prior mappings between the same platform pair with a very
	// similar source field vouch for their target.
	for _, prior := range s.store.MappingsForPair(srcPlat, tgtPlat) {
		if prior.Confidence < 0.7 {
			continue
		}
		if strings.EqualFold(prior.SourceField, field) && prior.EntityType == entity {
			continue // the cache path already covers this entry
		}
		if existing := candidates[prior.TargetField]; len(existing) == 1 && existing[0].score == 0.95 &&
			existing[0].reason == "Exact name match" {
			continue // exact matches stand alone
		}
		ratio := similarityRatio(fieldLower, strings.ToLower(prior.SourceField))
		if ratio < 0.8 {
			continue
		}
		candidates[prior.TargetField] = append(candidates[prior.TargetField], strategyScore{
			ratio * prior.Confidence * 0.9,
			fmt.Sprintf("Similar to known mapping: %s -> %s", prior.SourceField, prior.TargetField),
		})
	}

	ranked := make([]rankedCandidate, 0, len(candidates))
	for target, scores := range candidates {
		sum := 0.0
		reasons := make([]string, 0, len(scores))
		for _, sc := range scores {
			sum += sc.score
			reasons = append(reasons, sc.reason)
		}
		avg := sum / float64(len(scores))
		if len(scores) > 1 {
			avg = min(avg*agreementBonus, confidenceCap)
		}
		ranked = append(ranked, rankedCandidate{target: target, score: avg, reasons: reasons})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].target < ranked[j].target
	})
	return ranked
}

// sharedFeatures returns the sorted intersection of two feature sets.
func sharedFeatures(a, b map[string]struct{}) []string {
	var shared []string
	for f := range a {
		if _, ok := b[f]; ok {
			shared = append(shared, f)
		}
	}
	sort.Strings(shared)
	return shared
}

// sameSemanticGroup reports whether both names intersect the same
// semantic group, after stripping locational prefixes.
func sameSemanticGroup(a, b string) bool {
	for _, group := range semanticGroups {
		if nameInGroup(a, group) && nameInGroup(b, group) {
			return true
		}
	}
	return false
}

func nameInGroup(name string, group []string) bool {
	norm := normalizeForSemantics(name)
	tokens := semanticTokens(name)
	for _, member := range group {
		if norm == member {
			return true
		}
		if _, ok := tokens[member]; ok {
			return true
		}
		// Compound names like "workemail" still carry the concept;
		// short members are excluded so "id" cannot match everywhere.
		if len(member) >= 4 && strings.Contains(norm, member) {
			return true
		}
	}
	return false
}

func normalizeForSemantics(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	norm := b.String()
	for _, p := range locationalPrefixes {
		if strings.HasPrefix(norm, p) && len(norm) > len(p) {
			return norm[len(p):]
		}
	}
	return norm
}

func semanticTokens(name string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, c := range splitComponents(name) {
		tokens[strings.ToLower(c)] = struct{}{}
	}
	return tokens
}

func alternativesFrom(ranked []rankedCandidate) []models.AlternativeMapping {
	var alts []models.AlternativeMapping
	for _, c := range ranked[1:] {
		if len(alts) == 3 {
			break
		}
		alts = append(alts, models.AlternativeMapping{FieldName: c.target, Confidence: c.score})
	}
	return alts
}
